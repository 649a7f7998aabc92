package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// NotificationSender delivers rendered emails.
type NotificationSender interface {
	Send(ctx context.Context, msg Message) error
	// Ping checks that the sender can reach its backend.
	Ping(ctx context.Context) error
}

// LogSender writes emails to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email notification",
		zap.String("from", msg.From),
		zap.String("to", strings.Join(msg.Recipients, ", ")),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

func (s *LogSender) Ping(context.Context) error { return nil }

// NewSender picks the sender named in cfg.
func NewSender(cfg Config, logger *zap.Logger) (NotificationSender, error) {
	switch strings.ToLower(cfg.Sender) {
	case "", SenderLog:
		return NewLogSender(logger), nil
	case SenderSMTP:
		return NewSMTPSender(cfg.SMTP)
	default:
		return nil, fmt.Errorf("unknown email sender %q", cfg.Sender)
	}
}
