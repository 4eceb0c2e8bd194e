// Package metrics exposes Prometheus counters for the ingestion
// engine. All methods are nil-safe so the engine can run unmetered.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Suppression reasons recorded by the message handler.
const (
	ReasonDuplicate = "duplicate"
	ReasonEmpty     = "empty"
	ReasonSelf      = "self"
)

// Metrics holds the relay's counters, labeled by account.
type Metrics struct {
	delivered  *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec
	pollErrors *prometheus.CounterVec
	reconnects *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers the relay metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statusrelay_messages_delivered_total",
			Help: "Inbound messages forwarded to the event sink.",
		}, []string{"account"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statusrelay_messages_suppressed_total",
			Help: "Inbound messages discarded by the handler (duplicate, empty, self).",
		}, []string{"account", "reason"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statusrelay_sink_errors_total",
			Help: "Accepted messages the event sink failed to deliver.",
		}, []string{"account"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statusrelay_poll_errors_total",
			Help: "Failed chat-list or message fetches during poll ticks.",
		}, []string{"account"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statusrelay_stream_reconnects_total",
			Help: "Scheduled reconnect attempts for the signals stream.",
		}, []string{"account"}),
		registry: reg,
	}
	reg.MustRegister(m.delivered, m.suppressed, m.sinkErrors, m.pollErrors, m.reconnects)
	return m
}

// Handler returns an HTTP handler serving the metrics exposition.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Delivered(account string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(account).Inc()
}

func (m *Metrics) Suppressed(account, reason string) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(account, reason).Inc()
}

func (m *Metrics) SinkError(account string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(account).Inc()
}

func (m *Metrics) PollError(account string) {
	if m == nil {
		return
	}
	m.pollErrors.WithLabelValues(account).Inc()
}

func (m *Metrics) Reconnect(account string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(account).Inc()
}
