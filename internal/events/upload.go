package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/iptvsync/internal/bus"
	"github.com/rpattn/iptvsync/internal/domain"
)

// UploadPublisher announces uploaded files on the upload topic, the way the
// upload service does.
type UploadPublisher struct {
	publisher MessagePublisher
}

// NewUploadPublisher creates an upload publisher.
func NewUploadPublisher(publisher MessagePublisher) *UploadPublisher {
	return &UploadPublisher{publisher: publisher}
}

// Publish sends event keyed by its file id.
func (p *UploadPublisher) Publish(ctx context.Context, event domain.UploadEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode upload event: %w", err)
	}
	return p.publisher.Publish(ctx, bus.Message{
		RoutingKey: event.FileID,
		MessageID:  event.FileID,
		Type:       "file_uploaded",
		Body:       body,
		Timestamp:  event.UploadedAt,
	})
}
