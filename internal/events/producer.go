package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/iptvsync/internal/bus"
	"github.com/rpattn/iptvsync/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// messageNamespace scopes the deterministic message ids of this service.
var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:iptvsync:notifications"))

// MessagePublisher sends one message to the bus.
type MessagePublisher interface {
	Publish(ctx context.Context, msg bus.Message) error
}

// NotificationProducer publishes notification events keyed by their subject.
type NotificationProducer struct {
	publisher MessagePublisher
	logger    *zap.Logger
}

// NewNotificationProducer creates a producer on top of publisher.
func NewNotificationProducer(publisher MessagePublisher, logger *zap.Logger) *NotificationProducer {
	return &NotificationProducer{publisher: publisher, logger: logger}
}

// MessageID derives the bus message id for an event. Publishing the same
// event twice yields the same id.
func MessageID(event domain.NotificationEvent) string {
	return uuid.NewSHA1(messageNamespace, []byte(string(event.Type)+":"+event.SubjectID)).String()
}

// Publish validates, encodes and publishes event. Failures are returned as
// *domain.PublishError.
func (p *NotificationProducer) Publish(ctx context.Context, event domain.NotificationEvent) error {
	if err := event.Validate(); err != nil {
		return &domain.PublishError{SubjectID: event.SubjectID, Err: err}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return &domain.PublishError{SubjectID: event.SubjectID, Err: fmt.Errorf("failed to encode notification: %w", err)}
	}

	msg := bus.Message{
		RoutingKey: event.SubjectID,
		MessageID:  MessageID(event),
		Type:       string(event.Type),
		Body:       body,
		Timestamp:  event.ProcessedAt,
	}
	if err := p.publisher.Publish(ctx, msg); err != nil {
		return &domain.PublishError{SubjectID: event.SubjectID, Err: err}
	}

	p.logger.Debug("notification published",
		zap.String("type", string(event.Type)),
		zap.String("subject_id", event.SubjectID),
		zap.String("message_id", msg.MessageID),
	)
	return nil
}
