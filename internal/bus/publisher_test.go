package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConfirmChannel struct {
	owner  *confirmRecorder
	closed atomic.Bool
}

func (c *fakeConfirmChannel) PublishConfirmed(_ context.Context, exchange, key string, msg amqp.Publishing) error {
	return c.owner.publish(exchange, key, msg)
}

func (c *fakeConfirmChannel) IsClosed() bool { return c.closed.Load() }

func (c *fakeConfirmChannel) Close() error {
	c.closed.Store(true)
	return nil
}

type confirmRecorder struct {
	mu        sync.Mutex
	failures  int
	published []amqp.Publishing
	keys      []string
	opened    int
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (r *confirmRecorder) open(context.Context) (confirmChannel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened++
	return &fakeConfirmChannel{owner: r}, nil
}

func (r *confirmRecorder) publish(_, key string, msg amqp.Publishing) error {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		highest := r.maxFlight.Load()
		if n <= highest || r.maxFlight.CompareAndSwap(highest, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, msg)
	r.keys = append(r.keys, key)
	if r.failures > 0 {
		r.failures--
		return ErrNacked
	}
	return nil
}

func testPublisher(r *confirmRecorder, attempts int) *Publisher {
	return newPublisher(r.open, PublisherConfig{
		Exchange:    "file-processing-notifications",
		MaxAttempts: attempts,
		RetryDelay:  time.Millisecond,
	}, zap.NewNop())
}

func TestPublisherRetriesWithSameMessageID(t *testing.T) {
	r := &confirmRecorder{failures: 2}
	p := testPublisher(r, 3)

	err := p.Publish(context.Background(), Message{RoutingKey: "user-1", MessageID: "msg-1", Body: []byte(`{}`)})
	require.NoError(t, err)

	require.Len(t, r.published, 3)
	for _, msg := range r.published {
		assert.Equal(t, "msg-1", msg.MessageId)
		assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
		assert.Equal(t, "application/json", msg.ContentType)
	}
	assert.Equal(t, []string{"user-1", "user-1", "user-1"}, r.keys)
	assert.Equal(t, 3, r.opened, "a failed channel is replaced")
}

func TestPublisherGivesUpAfterMaxAttempts(t *testing.T) {
	r := &confirmRecorder{failures: 10}
	p := testPublisher(r, 2)

	err := p.Publish(context.Background(), Message{RoutingKey: "user-1", MessageID: "msg-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNacked))
	assert.Len(t, r.published, 2)
}

func TestPublisherKeepsOnePublishInFlight(t *testing.T) {
	r := &confirmRecorder{}
	p := testPublisher(r, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Publish(context.Background(), Message{RoutingKey: "k", MessageID: "m"}))
		}()
	}
	wg.Wait()

	assert.Len(t, r.published, 8)
	assert.EqualValues(t, 1, r.maxFlight.Load())
	assert.Equal(t, 1, r.opened, "healthy channel is reused")
	require.NoError(t, p.Close())
}
