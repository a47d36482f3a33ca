package checker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the checker.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RowsTotal       *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	RowsRemaining   prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checker_requests_total",
			Help: "Total HTTP requests issued by the checker.",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checker_request_duration_seconds",
			Help:    "HTTP request latency for search and product-page requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checker_rows_total",
			Help: "Rows classified, by availability status.",
		},
		[]string{"status"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checker_errors_total",
			Help: "Total number of checker errors by type.",
		},
		[]string{"error_type"},
	)
	remaining := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "checker_rows_remaining",
			Help: "Rows of the current batch not yet classified.",
		},
	)

	registry.MustRegister(requests, requestDuration, rows, errorsTotal, remaining)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RowsTotal:       rows,
		ErrorsTotal:     errorsTotal,
		RowsRemaining:   remaining,
	}
}

// IncRequest increments the requests counter for a request kind.
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncRow increments the classified rows counter.
func (m *Metrics) IncRow(status string) {
	if m == nil {
		return
	}
	m.RowsTotal.WithLabelValues(status).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetRemaining sets the number of rows still to classify.
func (m *Metrics) SetRemaining(n int) {
	if m == nil {
		return
	}
	m.RowsRemaining.Set(float64(n))
}
