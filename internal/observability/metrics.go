package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "iptvsync"

// Message outcomes recorded by the upload and notification consumers.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Metrics holds the pipeline's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Messages            *prometheus.CounterVec
	MessageDuration     *prometheus.HistogramVec
	RowsParsed          prometheus.Counter
	RowsSkipped         *prometheus.CounterVec
	AccountsCreated     prometheus.Counter
	RowFailures         *prometheus.CounterVec
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	EmailsSent          prometheus.Counter
	EmailFailures       prometheus.Counter
}

// NewMetrics creates and registers the collectors. Each call uses a fresh
// registry so tests and multiple binaries never collide.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Bus messages handled, by consumer and outcome.",
		}, []string{"consumer", "outcome"}),
		MessageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_handling_seconds",
			Help:      "Time spent handling one bus message.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"consumer"}),
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Spreadsheet rows accepted by the parser.",
		}),
		RowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Spreadsheet rows dropped by the parser, by reason.",
		}, []string{"reason"}),
		AccountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_created_total",
			Help:      "Accounts persisted from uploads.",
		}),
		RowFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "row_failures_total",
			Help:      "Parsed rows that were not persisted, by conflicting field.",
		}, []string{"field"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Notification events published, by type.",
		}, []string{"type"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Notification events that could not be published, by type.",
		}, []string{"type"}),
		EmailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Notification emails handed to the sender.",
		}),
		EmailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_failures_total",
			Help:      "Notification emails the sender rejected.",
		}),
	}

	registry.MustRegister(
		m.Messages,
		m.MessageDuration,
		m.RowsParsed,
		m.RowsSkipped,
		m.AccountsCreated,
		m.RowFailures,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.EmailsSent,
		m.EmailFailures,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
