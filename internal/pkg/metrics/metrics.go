package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Identity metrics
	AuthOperationsTotal *prometheus.CounterVec

	// Notification metrics
	EmailDeliveriesTotal *prometheus.CounterVec

	// Ingestion metrics
	SensorReadingsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energia_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "energia_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energia_auth_operations_total",
				Help: "Identity operations by outcome",
			},
			[]string{"operation", "outcome"},
		),

		EmailDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energia_email_deliveries_total",
				Help: "Outbound email deliveries by kind and status",
			},
			[]string{"kind", "status"},
		),

		SensorReadingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "energia_sensor_readings_total",
				Help: "Sensor readings received by the ingestion worker",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthOperationsTotal,
		m.EmailDeliveriesTotal,
		m.SensorReadingsTotal,
	)

	return m
}

// NewDefault creates metrics on a fresh registry that also exports Go runtime and process collectors
func NewDefault() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetrics(registry)
}

// Handler returns the HTTP handler exposing the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a served request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAuth records an identity operation outcome
func (m *Metrics) RecordAuth(operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.AuthOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordEmail records an outbound email attempt
func (m *Metrics) RecordEmail(kind string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.EmailDeliveriesTotal.WithLabelValues(kind, status).Inc()
}

// RecordReading records an ingested (stored, dropped or failed) reading
func (m *Metrics) RecordReading(status string) {
	if m == nil {
		return
	}
	m.SensorReadingsTotal.WithLabelValues(status).Inc()
}
