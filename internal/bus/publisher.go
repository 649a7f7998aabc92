package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrNacked is returned when the broker refuses a confirmed publish.
var ErrNacked = errors.New("publish not acknowledged by broker")

// Message is one outgoing publish.
type Message struct {
	RoutingKey string
	// MessageID must be stable across retries so consumers can drop duplicates.
	MessageID string
	Type      string
	Body      []byte
	Timestamp time.Time
}

// confirmChannel is a channel in publisher-confirm mode.
type confirmChannel interface {
	// PublishConfirmed publishes and waits for the broker's confirm.
	PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type amqpConfirmChannel struct {
	ch *amqp.Channel
}

func (c amqpConfirmChannel) PublishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	confirm, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return ErrNacked
	}
	return nil
}

func (c amqpConfirmChannel) IsClosed() bool { return c.ch.IsClosed() }

func (c amqpConfirmChannel) Close() error { return c.ch.Close() }

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	Exchange     string        `mapstructure:"exchange"`
	ExchangeKind string        `mapstructure:"exchange_kind"`
	Declare      bool          `mapstructure:"declare"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
}

// Publisher publishes persistent messages to one exchange with publisher
// confirms. At most one publish is unconfirmed at any time.
type Publisher struct {
	cfg    PublisherConfig
	open   func(ctx context.Context) (confirmChannel, error)
	logger *zap.Logger

	mu sync.Mutex
	ch confirmChannel
}

// NewPublisher creates a publisher on conn.
func NewPublisher(conn *Connection, cfg PublisherConfig, logger *zap.Logger) *Publisher {
	open := func(ctx context.Context) (confirmChannel, error) {
		ch, err := conn.Channel(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.Declare {
			kind := cfg.ExchangeKind
			if kind == "" {
				kind = "topic"
			}
			if err := ch.ExchangeDeclare(cfg.Exchange, kind, true, false, false, false, nil); err != nil {
				_ = ch.Close()
				return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
			}
		}
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
		}
		return amqpConfirmChannel{ch: ch}, nil
	}
	return newPublisher(open, cfg, logger)
}

func newPublisher(open func(ctx context.Context) (confirmChannel, error), cfg PublisherConfig, logger *zap.Logger) *Publisher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Publisher{
		cfg:    cfg,
		open:   open,
		logger: logger.With(zap.String("exchange", cfg.Exchange)),
	}
}

// Publish sends msg and waits for the broker confirm, retrying on a fresh
// channel with the same message id.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Type:         msg.Type,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
	}

	delay := newBackoff(p.cfg.RetryDelay, 10*p.cfg.RetryDelay)
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		lastErr = p.publishOnce(ctx, msg.RoutingKey, publishing)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == p.cfg.MaxAttempts {
			break
		}

		wait := delay.Next()
		p.logger.Warn("publish failed, retrying",
			zap.String("message_id", msg.MessageID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(lastErr),
		)
		if err := sleep(ctx, wait); err != nil {
			break
		}
	}
	return fmt.Errorf("failed to publish message %s: %w", msg.MessageID, lastErr)
}

func (p *Publisher) publishOnce(ctx context.Context, key string, publishing amqp.Publishing) error {
	if p.ch == nil || p.ch.IsClosed() {
		ch, err := p.open(ctx)
		if err != nil {
			return err
		}
		p.ch = ch
	}

	if err := p.ch.PublishConfirmed(ctx, p.cfg.Exchange, key, publishing); err != nil {
		// The confirm state of a failed channel is unknown; start over on a new one.
		_ = p.ch.Close()
		p.ch = nil
		return err
	}
	return nil
}

// Close releases the publisher's channel.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
