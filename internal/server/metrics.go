package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajsharma/neon_playground/internal/bridge"
)

// Metrics holds the server's Prometheus collectors. Each instance owns its
// registry so several servers can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	Renders         *prometheus.CounterVec
	RenderDuration  prometheus.Histogram
	Diagnostics     *prometheus.CounterVec
	DroppedMessages prometheus.Counter

	WSConnections prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neon_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "neon_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neon_renders_total",
				Help: "Preview renders by outcome",
			},
			[]string{"surface", "outcome"},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "neon_render_duration_seconds",
				Help:    "Server-side sandbox render latencies in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		Diagnostics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "neon_diagnostics_total",
				Help: "Diagnostics appended to host logs, by severity",
			},
			[]string{"severity"},
		),
		DroppedMessages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "neon_dropped_messages_total",
				Help: "Messages ignored by receivers because they lacked the protocol marker",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "neon_ws_connections",
				Help: "Open bridge websocket connections",
			},
		),
	}
}

// ObservePool exports sandbox pool occupancy read from stats at scrape time.
func (m *Metrics) ObservePool(stats func() map[string]interface{}) {
	factory := promauto.With(m.Registry)
	for _, key := range []string{"size", "in_use", "available"} {
		key := key
		factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "neon_sandbox_pool_" + key,
				Help: "Sandbox pool runtimes: " + key,
			},
			func() float64 {
				n, _ := stats()[key].(int)
				return float64(n)
			},
		)
	}
}

// RecordHTTPRequest records one handled request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordEntry counts one diagnostic.
func (m *Metrics) RecordEntry(e bridge.Entry) {
	sev := string(e.Severity)
	if !e.Severity.Known() {
		sev = "other"
	}
	m.Diagnostics.WithLabelValues(sev).Inc()
}

// RecordRender counts one render.
func (m *Metrics) RecordRender(surface string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Renders.WithLabelValues(surface, outcome).Inc()
}
