package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsTotal *prometheus.CounterVec
	LoginsTotal       *prometheus.CounterVec

	// Privileged mutation metrics
	OverridesTotal      *prometheus.CounterVec
	RoleChangesTotal    *prometheus.CounterVec
	APIKeyEventsTotal   *prometheus.CounterVec
	AuditRecordsTotal   *prometheus.CounterVec
	RateLimitedTotal    *prometheus.CounterVec
	SessionsPurgedTotal prometheus.Counter

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertdesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alertdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alertdesk_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertdesk_auth_attempts_total",
				Help: "Credential resolution attempts by scheme and outcome",
			},
			[]string{"scheme", "outcome"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertdesk_logins_total",
				Help: "Password logins by outcome",
			},
			[]string{"outcome"},
		),

		OverridesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertdesk_risk_overrides_total",
				Help: "Risk score override requests by outcome",
			},
			[]string{"outcome"},
		),
		RoleChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertdesk_role_changes_total",
				Help: "Role change requests by outcome",
			},
			[]string{"outcome"},
		),
		APIKeyEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertdesk_api_key_events_total",
				Help: "API key lifecycle events",
			},
			[]string{"action"},
		),
		AuditRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertdesk_audit_records_total",
				Help: "Audit rows committed by trail",
			},
			[]string{"trail"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alertdesk_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"tier"},
		),
		SessionsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "alertdesk_sessions_purged_total",
				Help: "Expired session rows removed by housekeeping",
			},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alertdesk_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alertdesk_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alertdesk_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthAttemptsTotal,
		m.LoginsTotal,
		m.OverridesTotal,
		m.RoleChangesTotal,
		m.APIKeyEventsTotal,
		m.AuditRecordsTotal,
		m.RateLimitedTotal,
		m.SessionsPurgedTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
	)

	return m
}

// RecordAuth counts a credential resolution attempt
func (m *Metrics) RecordAuth(scheme, outcome string) {
	if m == nil {
		return
	}
	m.AuthAttemptsTotal.WithLabelValues(scheme, outcome).Inc()
}

// RecordLogin counts a password login attempt
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// RecordOverride counts a risk override request
func (m *Metrics) RecordOverride(outcome string) {
	if m == nil {
		return
	}
	m.OverridesTotal.WithLabelValues(outcome).Inc()
}

// RecordRoleChange counts a role change request
func (m *Metrics) RecordRoleChange(outcome string) {
	if m == nil {
		return
	}
	m.RoleChangesTotal.WithLabelValues(outcome).Inc()
}

// RecordAPIKeyEvent counts a committed API key lifecycle event
func (m *Metrics) RecordAPIKeyEvent(action string) {
	if m == nil {
		return
	}
	m.APIKeyEventsTotal.WithLabelValues(action).Inc()
}

// RecordAudit counts a committed audit row
func (m *Metrics) RecordAudit(trail string) {
	if m == nil {
		return
	}
	m.AuditRecordsTotal.WithLabelValues(trail).Inc()
}

// RecordRateLimited counts a request rejected by the limiter
func (m *Metrics) RecordRateLimited(tier string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(tier).Inc()
}

// RecordSessionsPurged adds to the housekeeping counter
func (m *Metrics) RecordSessionsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsPurgedTotal.Add(float64(n))
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux path template so that ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
