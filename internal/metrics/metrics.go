// Package metrics provides Prometheus metrics for the validation service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Registry metrics
	RegistrationsTotal *prometheus.CounterVec

	// Pipeline metrics
	JobsTotal         *prometheus.CounterVec
	FilesRoutedTotal  *prometheus.CounterVec
	FilesSkippedTotal prometheus.Counter
	JobDuration       *prometheus.HistogramVec

	// Broker metrics
	RetriesTotal     prometheus.Counter
	DeadLettersTotal prometheus.Counter

	// Storage metrics
	StorageOperations *prometheus.CounterVec
	StorageErrors     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	// Request metrics
	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasieve_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datasieve_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasieve_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Registry metrics
	m.RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasieve_schema_registrations_total",
			Help: "Total number of schema registrations",
		},
		[]string{"status"},
	)

	// Pipeline metrics
	m.JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasieve_jobs_total",
			Help: "Total number of validation jobs by outcome",
		},
		[]string{"outcome"},
	)

	m.FilesRoutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasieve_files_routed_total",
			Help: "Total number of files routed by destination bucket",
		},
		[]string{"destination"},
	)

	m.FilesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datasieve_files_skipped_total",
			Help: "Total number of files skipped as unparsable or unsupported",
		},
	)

	m.JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datasieve_job_duration_seconds",
			Help:    "Validation job latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Broker metrics
	m.RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datasieve_broker_retries_total",
			Help: "Total number of messages sent to the retry queue",
		},
	)

	m.DeadLettersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datasieve_broker_dead_letters_total",
			Help: "Total number of messages that reached the terminal queue",
		},
	)

	// Storage metrics
	m.StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasieve_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"backend", "operation"},
	)

	m.StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasieve_storage_errors_total",
			Help: "Total number of storage errors",
		},
		[]string{"backend", "operation"},
	)

	// Register all collectors
	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.RegistrationsTotal,
		m.JobsTotal,
		m.FilesRoutedTotal,
		m.FilesSkippedTotal,
		m.JobDuration,
		m.RetriesTotal,
		m.DeadLettersTotal,
		m.StorageOperations,
		m.StorageErrors,
	)

	// Also register the default collectors (go runtime, process info)
	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Middleware returns HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip the scrape endpoint itself
		if r.URL.Path == "/prometheus" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		m.RequestsInFlight.Inc()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.RequestsInFlight.Dec()
		duration := time.Since(start).Seconds()

		// Normalize path for metrics (avoid high cardinality)
		path := normalizePath(r.URL.Path)

		m.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes a URL path to reduce cardinality.
func normalizePath(path string) string {
	switch {
	case startsWith(path, "/schema/namespace/"):
		return "/schema/namespace/{namespace}"
	case startsWith(path, "/job/validate/namespace/"):
		return "/job/validate/namespace/{namespace}"
	case startsWith(path, "/schema/") && path != "/schema/all":
		return "/schema/{namespace}"
	}
	return path
}

func startsWith(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// RecordSchemaRegistration records a schema registration attempt.
func (m *Metrics) RecordSchemaRegistration(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.RegistrationsTotal.WithLabelValues(status).Inc()
}

// RecordJob records a completed validation job.
func (m *Metrics) RecordJob(outcome string, duration time.Duration) {
	m.JobsTotal.WithLabelValues(outcome).Inc()
	m.JobDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordFileRouted records a blob landing in its destination bucket.
func (m *Metrics) RecordFileRouted(destination string) {
	m.FilesRoutedTotal.WithLabelValues(destination).Inc()
}

// RecordFileSkipped records a blob left in staging as unprocessable.
func (m *Metrics) RecordFileSkipped() {
	m.FilesSkippedTotal.Inc()
}

// RecordRetry records a message sent to the retry queue.
func (m *Metrics) RecordRetry() {
	m.RetriesTotal.Inc()
}

// RecordDeadLetter records a message that exhausted its retry budget.
func (m *Metrics) RecordDeadLetter() {
	m.DeadLettersTotal.Inc()
}

// RecordStorageOperation records a storage operation.
func (m *Metrics) RecordStorageOperation(backend, operation string, err error) {
	m.StorageOperations.WithLabelValues(backend, operation).Inc()
	if err != nil {
		m.StorageErrors.WithLabelValues(backend, operation).Inc()
	}
}
