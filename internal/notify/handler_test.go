package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rpattn/iptvsync/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubSender struct {
	sent    []Message
	err     error
	pingErr error
}

func (s *stubSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubSender) Ping(context.Context) error { return s.pingErr }

const createdPayload = `{"type":"account_created","userId":"u-1","name":"Jo","email":"jo@x.com","processedAt":"2025-03-01T12:00:00Z"}`

func enabledConfig() Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Admin = "ops@example.com"
	return cfg
}

func TestHandlerSendsAccountCreatedEmail(t *testing.T) {
	sender := &stubSender{}
	metrics := observability.NewMetrics()
	h := NewHandler(enabledConfig(), sender, metrics, zap.NewNop())

	require.NoError(t, h.HandleDelivery(context.Background(), amqp.Delivery{Body: []byte(createdPayload)}))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "IPTV Account Created - Welcome Jo", msg.Subject)
	assert.Equal(t, []string{"ops@example.com"}, msg.Recipients)
	assert.Equal(t, "notifications@example.com", msg.From)
	assert.Contains(t, msg.Body, "User ID: u-1")
	assert.Contains(t, msg.Body, "Email: jo@x.com")
	assert.Contains(t, msg.Body, "Created At: 2025-03-01 12:00:00 UTC")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EmailsSent))
}

func TestHandlerRendersProcessingError(t *testing.T) {
	sender := &stubSender{}
	h := NewHandler(enabledConfig(), sender, nil, zap.NewNop())

	payload := `{"type":"processing_error","userId":"f-1","name":"accounts.xlsx","error":"no accounts created","processedAt":"2025-03-01T12:00:00Z"}`
	require.NoError(t, h.HandleMessage(context.Background(), []byte(payload)))

	require.Len(t, sender.sent, 1)
	assert.True(t, strings.HasPrefix(sender.sent[0].Subject, "IPTV Account Import Failed"))
	assert.Contains(t, sender.sent[0].Body, "Error: no accounts created")
}

func TestHandlerDropsInvalidNotifications(t *testing.T) {
	sender := &stubSender{}
	h := NewHandler(enabledConfig(), sender, nil, zap.NewNop())

	for _, payload := range []string{
		"",
		"garbage",
		`{"type":"account_created","userId":"u-1","name":"Jo","processedAt":"2025-03-01T12:00:00Z"}`,
		`{"type":"mystery","userId":"u-1","name":"Jo","processedAt":"2025-03-01T12:00:00Z"}`,
	} {
		assert.NoError(t, h.HandleMessage(context.Background(), []byte(payload)), "payload %q", payload)
	}
	assert.Empty(t, sender.sent)
}

func TestHandlerDisabledEmail(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := &stubSender{}
	h := NewHandler(DefaultConfig(), sender, nil, zap.New(core))

	require.NoError(t, h.HandleMessage(context.Background(), []byte(createdPayload)))

	assert.Empty(t, sender.sent)
	assert.Equal(t, 1, logs.FilterMessage("email notifications are disabled").Len())
}

func TestHandlerReturnsSenderFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("relay refused")}
	metrics := observability.NewMetrics()
	h := NewHandler(enabledConfig(), sender, metrics, zap.NewNop())

	err := h.HandleMessage(context.Background(), []byte(createdPayload))
	assert.EqualError(t, err, "relay refused")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EmailFailures))
}

func TestCheckSender(t *testing.T) {
	ok := NewHandler(enabledConfig(), &stubSender{}, nil, zap.NewNop())
	assert.True(t, ok.CheckSender(context.Background()))

	failing := NewHandler(enabledConfig(), &stubSender{pingErr: errors.New("dial tcp: refused")}, nil, zap.NewNop())
	assert.False(t, failing.CheckSender(context.Background()))
}

func TestNewSender(t *testing.T) {
	sender, err := NewSender(Config{Sender: "log"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, sender)

	sender, err = NewSender(Config{Sender: "smtp", SMTP: SMTPConfig{Host: "localhost", Port: 2525}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, sender)

	_, err = NewSender(Config{Sender: "pigeon"}, zap.NewNop())
	assert.Error(t, err)
}
