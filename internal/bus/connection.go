package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrClosed is returned once the connection has been closed for good.
var ErrClosed = errors.New("bus connection closed")

// Connection owns the AMQP connection. Subscribers and publishers open their
// own channels on it; a dropped connection is redialed on the next Channel call.
type Connection struct {
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

// NewConnection creates a new Connection instance
func NewConnection(cfg Config, logger *zap.Logger) *Connection {
	return &Connection{cfg: cfg.withDefaults(), logger: logger}
}

// Connect dials the broker, retrying with exponential backoff.
func (c *Connection) Connect(ctx context.Context) error {
	delay := newBackoff(c.cfg.InitialBackoff, c.cfg.MaxBackoff)
	for attempt := 1; ; attempt++ {
		c.logger.Info("connecting to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxInitialAttempts),
		)

		c.mu.Lock()
		err := c.dialLocked()
		c.mu.Unlock()
		if err == nil {
			return nil
		}
		if attempt >= c.cfg.MaxInitialAttempts {
			return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempt, err)
		}

		wait := delay.Next()
		c.logger.Warn("connection to RabbitMQ failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
		)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Connection) dialLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Heartbeat: c.cfg.Heartbeat,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": c.cfg.ConnectionName,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	c.conn = conn

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closeCh; ok && err != nil {
			c.logger.Error("RabbitMQ connection closed",
				zap.Int("code", err.Code),
				zap.String("reason", err.Reason),
			)
		}
	}()

	c.logger.Info("connected to RabbitMQ",
		zap.String("connection_name", c.cfg.ConnectionName),
		zap.Duration("heartbeat", c.cfg.Heartbeat),
	)
	return nil
}

// Channel opens a channel, redialing first when the connection dropped.
func (c *Connection) Channel(ctx context.Context) (*amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.dialLocked(); err != nil {
		return nil, err
	}
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// IsHealthy reports whether the connection is open.
func (c *Connection) IsHealthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn != nil && !c.conn.IsClosed()
}

// Check is IsHealthy as an error, for readiness probes.
func (c *Connection) Check(context.Context) error {
	if !c.IsHealthy() {
		return errors.New("bus connection is down")
	}
	return nil
}

// Close closes the connection and stops redialing.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.logger.Info("RabbitMQ connection closed")
	return err
}
