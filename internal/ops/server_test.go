package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpattn/iptvsync/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serve(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	srv := NewServer(":0", nil, nil, zap.NewNop())
	rec := serve(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	broken := func(context.Context) error { return errors.New("connection closed") }

	srv := NewServer(":0", map[string]Check{"storage": healthy, "bus": healthy}, nil, zap.NewNop())
	rec := serve(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	srv = NewServer(":0", map[string]Check{"storage": healthy, "bus": broken}, nil, zap.NewNop())
	rec = serve(t, srv, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["storage"])
	assert.Equal(t, "connection closed", body.Checks["bus"])
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.AccountsCreated.Add(3)

	srv := NewServer(":0", nil, metrics.Handler(), zap.NewNop())
	rec := serve(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "iptvsync_accounts_created_total 3"), rec.Body.String())
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", nil, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
