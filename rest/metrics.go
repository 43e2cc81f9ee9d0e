package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of a Handler.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	CompileErrorsTotal *prometheus.CounterVec
	StorageErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the handler metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restgen_requests_total",
				Help: "Total number of list requests",
			},
			[]string{"resource", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "restgen_request_duration_seconds",
				Help:    "List request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource"},
		),
		CompileErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restgen_compile_errors_total",
				Help: "Total number of rejected query strings",
			},
			[]string{"resource", "type"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restgen_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"resource", "type"},
		),
	}
	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.CompileErrorsTotal,
		m.StorageErrorsTotal,
	)
	return m
}

// MetricsHandler returns the HTTP handler exposing the metrics of registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(resource string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(resource, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeCompileError(resource string, e *Error) {
	if m == nil {
		return
	}
	m.CompileErrorsTotal.WithLabelValues(resource, e.Type).Inc()
}

func (m *Metrics) observeStorageError(resource string, e *Error) {
	if m == nil {
		return
	}
	m.StorageErrorsTotal.WithLabelValues(resource, e.Type).Inc()
}
