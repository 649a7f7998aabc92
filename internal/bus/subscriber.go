package bus

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// State is the subscriber lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateRunning
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateRunning:
		return "running"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handler processes one delivery. A nil error acks the delivery; an error or
// a panic rejects it without requeue.
type Handler func(ctx context.Context, delivery amqp.Delivery) error

// ConsumerChannel is the part of *amqp.Channel a subscriber uses.
type ConsumerChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	Close() error
}

// Subscriber consumes one queue and hands deliveries to a Handler one at a
// time. It resubscribes when the broker drops the channel and stops taking new
// deliveries when its context is cancelled, letting the in-flight one finish.
type Subscriber struct {
	topic   TopicConfig
	open    func(ctx context.Context) (ConsumerChannel, error)
	handler Handler
	logger  *zap.Logger
	backoff *backoff
	state   atomic.Int32
}

// NewSubscriber creates a subscriber consuming topic over conn.
func NewSubscriber(conn *Connection, topic TopicConfig, handler Handler, logger *zap.Logger) *Subscriber {
	open := func(ctx context.Context) (ConsumerChannel, error) {
		ch, err := conn.Channel(ctx)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
	return newSubscriber(open, topic, handler, logger, conn.cfg.InitialBackoff, conn.cfg.MaxBackoff)
}

func newSubscriber(
	open func(ctx context.Context) (ConsumerChannel, error),
	topic TopicConfig,
	handler Handler,
	logger *zap.Logger,
	initialBackoff, maxBackoff time.Duration,
) *Subscriber {
	return &Subscriber{
		topic:   topic,
		open:    open,
		handler: handler,
		logger:  logger.With(zap.String("queue", topic.Queue)),
		backoff: newBackoff(initialBackoff, maxBackoff),
	}
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

func (s *Subscriber) setState(state State) {
	previous := State(s.state.Swap(int32(state)))
	if previous != state {
		s.logger.Debug("subscriber state changed",
			zap.Stringer("from", previous),
			zap.Stringer("to", state),
		)
	}
}

// Run consumes until ctx is cancelled. It returns nil on a clean shutdown.
func (s *Subscriber) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	for {
		s.setState(StateConnecting)
		ch, deliveries, err := s.subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := s.backoff.Next()
			s.logger.Warn("failed to subscribe, retrying", zap.Error(err), zap.Duration("backoff", wait))
			s.setState(StateDisconnected)
			if sleep(ctx, wait) != nil {
				return nil
			}
			continue
		}
		s.backoff.Reset()

		s.setState(StateRunning)
		s.logger.Info("subscriber running", zap.String("consumer_tag", s.topic.ConsumerTag))

		if dropped := s.consume(ctx, deliveries); !dropped {
			s.shutdown(ch)
			return nil
		}

		s.logger.Warn("delivery channel closed by broker, resubscribing")
		_ = ch.Close()
		s.setState(StateDisconnected)
	}
}

func (s *Subscriber) subscribe(ctx context.Context) (ConsumerChannel, <-chan amqp.Delivery, error) {
	ch, err := s.open(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := s.declare(ch); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	if err := ch.Qos(s.topic.prefetch(), 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(s.topic.Queue, s.topic.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	s.setState(StateSubscribed)
	return ch, deliveries, nil
}

func (s *Subscriber) declare(ch ConsumerChannel) error {
	if !s.topic.Declare {
		return nil
	}
	if err := ch.ExchangeDeclare(s.topic.Exchange, s.topic.kind(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", s.topic.Exchange, err)
	}
	if _, err := ch.QueueDeclare(s.topic.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", s.topic.Queue, err)
	}
	if err := ch.QueueBind(s.topic.Queue, s.topic.bindingKey(), s.topic.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", s.topic.Queue, err)
	}
	return nil
}

// consume handles deliveries until ctx is done (false) or the broker closes
// the delivery channel (true).
func (s *Subscriber) consume(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case delivery, ok := <-deliveries:
			if !ok {
				return true
			}
			// Shutdown must not interrupt a message that is already being handled.
			s.process(context.WithoutCancel(ctx), delivery)
		}
	}
}

func (s *Subscriber) shutdown(ch ConsumerChannel) {
	s.setState(StateDisconnecting)
	if err := ch.Cancel(s.topic.ConsumerTag, false); err != nil {
		s.logger.Warn("failed to cancel consumer", zap.Error(err))
	}
	if err := ch.Close(); err != nil {
		s.logger.Warn("failed to close channel", zap.Error(err))
	}
	s.logger.Info("subscriber stopped")
}

func (s *Subscriber) process(ctx context.Context, delivery amqp.Delivery) {
	logger := s.logger.With(
		zap.Uint64("delivery_tag", delivery.DeliveryTag),
		zap.String("message_id", delivery.MessageId),
		zap.String("routing_key", delivery.RoutingKey),
	)
	logger.Debug("received message", zap.Bool("redelivered", delivery.Redelivered))

	if err := s.handle(ctx, delivery); err != nil {
		logger.Error("failed to process message", zap.Error(err))
		reject(logger, delivery)
		return
	}

	if err := delivery.Ack(false); err != nil {
		logger.Error("failed to ack message", zap.Error(err))
	}
}

func (s *Subscriber) handle(ctx context.Context, delivery amqp.Delivery) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return s.handler(ctx, delivery)
}

// reject nacks without requeue so a dead-letter policy on the queue applies.
func reject(logger *zap.Logger, delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		logger.Error("failed to nack message", zap.Error(err))
	}
}
