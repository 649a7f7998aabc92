package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rpattn/iptvsync/internal/domain"
	"github.com/rpattn/iptvsync/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const consumerName = "notifications"

// Handler consumes notification events and emails the admin.
type Handler struct {
	cfg     Config
	sender  NotificationSender
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHandler creates a notification handler.
func NewHandler(cfg Config, sender NotificationSender, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Handler{cfg: cfg, sender: sender, metrics: metrics, logger: logger}
}

// HandleDelivery adapts HandleMessage to the bus subscriber.
func (h *Handler) HandleDelivery(ctx context.Context, delivery amqp.Delivery) error {
	return h.HandleMessage(ctx, delivery.Body)
}

// HandleMessage emails one notification. Malformed events are logged and
// dropped; a sender failure is returned so the delivery is rejected.
func (h *Handler) HandleMessage(ctx context.Context, payload []byte) error {
	started := time.Now()
	outcome := observability.OutcomeProcessed
	defer func() {
		h.metrics.Messages.WithLabelValues(consumerName, outcome).Inc()
		h.metrics.MessageDuration.WithLabelValues(consumerName).Observe(time.Since(started).Seconds())
	}()

	event, err := domain.DecodeNotificationEvent(payload)
	if err != nil {
		outcome = observability.OutcomeRejected
		h.logger.Warn("discarding invalid notification", zap.Error(err))
		return nil
	}

	logger := h.logger.With(
		zap.String("type", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.String("name", event.Name),
	)
	switch event.Type {
	case domain.NotificationAccountCreated:
		logger.Info("account created", zap.String("email", event.Email), zap.Time("processed_at", event.ProcessedAt))
	case domain.NotificationProcessingError:
		logger.Warn("account import failed", zap.String("error", event.Error))
	}

	if !h.cfg.Enabled {
		outcome = observability.OutcomeSkipped
		logger.Info("email notifications are disabled")
		return nil
	}

	msg, err := Render(event, h.cfg.From, h.cfg.Admin)
	if err != nil {
		outcome = observability.OutcomeFailed
		logger.Error("failed to render email", zap.Error(err))
		return err
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		outcome = observability.OutcomeFailed
		h.metrics.EmailFailures.Inc()
		logger.Error("failed to send email", zap.Error(err))
		return err
	}

	h.metrics.EmailsSent.Inc()
	logger.Info("notification email sent", zap.Strings("recipients", msg.Recipients))
	return nil
}

// CheckSender pings the sender and logs the outcome. It never fails startup.
func (h *Handler) CheckSender(ctx context.Context) bool {
	h.logger.Info("testing email configuration",
		zap.Bool("enabled", h.cfg.Enabled),
		zap.String("sender", h.cfg.Sender),
		zap.String("smtp_host", h.cfg.SMTP.Host),
		zap.Int("smtp_port", h.cfg.SMTP.Port),
		zap.String("admin", h.cfg.Admin),
	)
	if !h.cfg.Enabled {
		return true
	}
	if err := h.sender.Ping(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		h.logger.Warn("email configuration test failed", zap.Error(err))
		return false
	}
	h.logger.Info("email configuration test passed")
	return true
}
