package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Backend operation metrics
	BackendOps      *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	BackendErrors   *prometheus.CounterVec

	// Sandbox metrics
	SandboxesActive    prometheus.Gauge
	SandboxesTotal     prometheus.Counter
	SandboxExecutions  *prometheus.CounterVec
	SandboxExecSeconds prometheus.Histogram

	// Search metrics
	SearchMatches prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64
	TotalErrors     int64
	ActiveSandboxes int64
	TotalDuration   float64 // sum of all request durations
	RequestCount    int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfs_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentfs_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentfs_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentfs_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Backend operation metrics
		BackendOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfs_backend_ops_total",
				Help: "Total number of backend operations",
			},
			[]string{"backend", "op", "status"},
		),
		BackendDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentfs_backend_op_duration_seconds",
				Help:    "Backend operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"backend", "op"},
		),
		BackendErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfs_backend_errors_total",
				Help: "Total number of backend operation errors",
			},
			[]string{"backend", "op", "error_type"},
		),

		// Sandbox metrics
		SandboxesActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentfs_sandboxes_active",
				Help: "Number of live sandboxes",
			},
		),
		SandboxesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentfs_sandboxes_total",
				Help: "Total number of sandboxes created",
			},
		),
		SandboxExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfs_sandbox_executions_total",
				Help: "Total number of sandbox command executions",
			},
			[]string{"outcome"},
		),
		SandboxExecSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentfs_sandbox_execution_seconds",
				Help:    "Sandbox command execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
		),

		// Search metrics
		SearchMatches: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentfs_search_matches_total",
				Help: "Total number of grep matches returned",
			},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentfs_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordBackendOp records a backend operation
func (m *Metrics) RecordBackendOp(backend, op, status string, duration time.Duration) {
	m.BackendOps.WithLabelValues(backend, op, status).Inc()
	m.BackendDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordBackendError records a backend operation error
func (m *Metrics) RecordBackendError(backend, op, errorType string) {
	m.BackendErrors.WithLabelValues(backend, op, errorType).Inc()
}

// RecordExecution records one sandbox command execution
func (m *Metrics) RecordExecution(outcome string, duration time.Duration) {
	m.SandboxExecutions.WithLabelValues(outcome).Inc()
	m.SandboxExecSeconds.Observe(duration.Seconds())
}

// AddSearchMatches adds to the grep match counter
func (m *Metrics) AddSearchMatches(n int) {
	m.SearchMatches.Add(float64(n))
}

// SetSandboxesActive sets the number of live sandboxes
func (m *Metrics) SetSandboxesActive(count int) {
	m.SandboxesActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSandboxes = int64(count)
	m.mu.Unlock()
}

// IncSandboxesTotal increments the total sandboxes counter
func (m *Metrics) IncSandboxesTotal() {
	m.SandboxesTotal.Inc()
}

// Snapshot returns current aggregate values for the JSON stats endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
