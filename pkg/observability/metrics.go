package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	LoginAttemptsTotal    *prometheus.CounterVec
	ReconciliationsTotal  *prometheus.CounterVec
	TokenValidationsTotal *prometheus.CounterVec

	// Authorization metrics
	PermissionChecksTotal   *prometheus.CounterVec
	DecisionCacheHitsTotal  prometheus.Counter
	DecisionCacheMissTotal  prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "meridian_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_login_attempts_total",
				Help: "Login attempts by method (local, google) and outcome",
			},
			[]string{"method", "outcome"},
		),
		ReconciliationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_identity_reconciliations_total",
				Help: "Identity reconciliation calls by outcome",
			},
			[]string{"outcome"},
		),
		TokenValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_token_validations_total",
				Help: "Access token validations by outcome",
			},
			[]string{"outcome"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meridian_permission_checks_total",
				Help: "Permission checks by outcome (allowed, denied)",
			},
			[]string{"outcome"},
		),
		DecisionCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "meridian_decision_cache_hits_total",
				Help: "Permission decision cache hits",
			},
		),
		DecisionCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "meridian_decision_cache_misses_total",
				Help: "Permission decision cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "meridian_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "meridian_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttemptsTotal,
		m.ReconciliationsTotal,
		m.TokenValidationsTotal,
		m.PermissionChecksTotal,
		m.DecisionCacheHitsTotal,
		m.DecisionCacheMissTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a completed HTTP request
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveLogin records a login attempt
func (m *Metrics) ObserveLogin(method, outcome string) {
	m.LoginAttemptsTotal.WithLabelValues(method, outcome).Inc()
}

// ObserveReconciliation records an identity reconciliation outcome
func (m *Metrics) ObserveReconciliation(outcome string) {
	m.ReconciliationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTokenValidation records a bearer token validation outcome
func (m *Metrics) ObserveTokenValidation(valid bool) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.TokenValidationsTotal.WithLabelValues(outcome).Inc()
}

// ObservePermissionCheck records a permission check outcome
func (m *Metrics) ObservePermissionCheck(allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.PermissionChecksTotal.WithLabelValues(outcome).Inc()
}
