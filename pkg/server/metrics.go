package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics for a landkeeper process. One
// instance is created per process role (gameserver, matchmaking) with
// labels distinguishing the two in a shared scrape target.
type Metrics struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	activeLands    prometheus.Gauge
	activeSessions prometheus.Gauge
	activeTickets  prometheus.Gauge

	joins       *prometheus.CounterVec
	dispatchErr *prometheus.CounterVec
	assignments prometheus.Counter

	tickDuration     prometheus.Histogram
	dispatchDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates and registers the landkeeper Prometheus metrics.
// role labels every series so a single Grafana dashboard can split
// gameserver from matchmaking instances.
func NewMetrics(role string) *Metrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"role": role}

	m := &Metrics{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "landkeeper_http_requests_total",
				Help:        "Total number of HTTP requests processed by method and status",
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "landkeeper_http_request_duration_seconds",
				Help:        "HTTP request duration in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
			[]string{"method", "endpoint"},
		),
		activeLands: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "landkeeper_lands_active",
				Help:        "Number of live land instances",
				ConstLabels: constLabels,
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "landkeeper_sessions_active",
				Help:        "Number of active player sessions",
				ConstLabels: constLabels,
			},
		),
		activeTickets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "landkeeper_matchmaking_tickets_queued",
				Help:        "Number of tickets currently queued",
				ConstLabels: constLabels,
			},
		),
		joins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "landkeeper_joins_total",
				Help:        "Total number of land joins by land type and status",
				ConstLabels: constLabels,
			},
			[]string{"land_type", "status"},
		),
		dispatchErr: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "landkeeper_dispatch_errors_total",
				Help:        "Total number of action dispatch errors by land type",
				ConstLabels: constLabels,
			},
			[]string{"land_type"},
		),
		assignments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "landkeeper_match_assignments_total",
				Help:        "Total number of matchmaking groups assigned",
				ConstLabels: constLabels,
			},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "landkeeper_matchmaking_tick_duration_seconds",
				Help:        "Matching tick duration in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "landkeeper_dispatch_duration_seconds",
				Help:        "Action dispatch duration in seconds",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: constLabels,
			},
		),
		registry: registry,
	}

	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.activeLands,
		m.activeSessions,
		m.activeTickets,
		m.joins,
		m.dispatchErr,
		m.assignments,
		m.tickDuration,
		m.dispatchDuration,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics in Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	m.requestCount.WithLabelValues(method, endpoint, status).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordJoin records a land join attempt.
func (m *Metrics) RecordJoin(landType, status string) {
	m.joins.WithLabelValues(landType, status).Inc()
}

// RecordDispatchError records an action dispatch failure.
func (m *Metrics) RecordDispatchError(landType string) {
	m.dispatchErr.WithLabelValues(landType).Inc()
}

// RecordDispatchDuration records how long an action dispatch took.
func (m *Metrics) RecordDispatchDuration(d time.Duration) {
	m.dispatchDuration.Observe(d.Seconds())
}

// RecordAssignment records a matchmaking group being assigned.
func (m *Metrics) RecordAssignment() {
	m.assignments.Inc()
}

// RecordTickDuration records how long a matching tick took.
func (m *Metrics) RecordTickDuration(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// SetActiveLands sets the active land instance gauge.
func (m *Metrics) SetActiveLands(count int) {
	m.activeLands.Set(float64(count))
}

// SetActiveSessions sets the active session gauge.
func (m *Metrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// SetActiveTickets sets the queued ticket gauge.
func (m *Metrics) SetActiveTickets(count int) {
	m.activeTickets.Set(float64(count))
}

// Middleware wraps next recording request count and latency per
// method and sanitized endpoint.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.Method, sanitizeEndpoint(r.URL.Path), rec.statusCode, time.Since(start))
	})
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func sanitizeEndpoint(path string) string {
	switch {
	case path == "/healthz":
		return "healthz"
	case path == "/metrics":
		return "metrics"
	case len(path) > 32:
		return "other"
	default:
		return path
	}
}
