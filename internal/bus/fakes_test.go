package bus

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
	done    chan ackRecord
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{done: make(chan ackRecord, 16)}
}

func (a *fakeAcknowledger) add(r ackRecord) error {
	a.mu.Lock()
	a.records = append(a.records, r)
	a.mu.Unlock()
	a.done <- r
	return nil
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	return a.add(ackRecord{tag: tag, ack: true})
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	return a.add(ackRecord{tag: tag, requeue: requeue})
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.add(ackRecord{tag: tag, requeue: requeue})
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body), MessageId: body}
}

type fakeConsumerChannel struct {
	mu         sync.Mutex
	deliveries chan amqp.Delivery
	declared   []string
	prefetch   int
	cancelled  bool
	closed     bool
}

func newFakeConsumerChannel() *fakeConsumerChannel {
	return &fakeConsumerChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (c *fakeConsumerChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, "exchange:"+name)
	return nil
}

func (c *fakeConsumerChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, "queue:"+name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeConsumerChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, "bind:"+exchange+"->"+name+":"+key)
	return nil
}

func (c *fakeConsumerChannel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeConsumerChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeConsumerChannel) Cancel(string, bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	return nil
}

func (c *fakeConsumerChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConsumerChannel) state() (cancelled, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled, c.closed
}

// channelQueue hands out prepared channels in order, failing when it has
// errors queued first.
type channelQueue struct {
	mu       sync.Mutex
	errs     []error
	channels []*fakeConsumerChannel
	opened   int
}

func (q *channelQueue) open(context.Context) (ConsumerChannel, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.errs) > 0 {
		err := q.errs[0]
		q.errs = q.errs[1:]
		return nil, err
	}
	ch := q.channels[q.opened]
	q.opened++
	return ch, nil
}

func (q *channelQueue) openedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.opened
}
