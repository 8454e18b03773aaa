package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the catalog service
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access control metrics
	PermissionChecksTotal *prometheus.CounterVec
	ScopeResolutionsTotal *prometheus.CounterVec

	// Ordering metrics
	OrdersSubmittedTotal       prometheus.Counter
	ProvisioningDispatchTotal  *prometheus.CounterVec
	ProvisioningDispatchErrors prometheus.Counter

	// Fulfillment metrics
	FulfillmentEventsTotal   *prometheus.CounterVec
	FulfillmentEventDuration prometheus.Histogram
	UnmatchedTaskRefsTotal   prometheus.Counter

	// Cache metrics
	EntitlementCacheHits   *prometheus.CounterVec
	EntitlementCacheMisses *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_permission_checks_total",
				Help: "Permission gate decisions by resource type, action, and outcome",
			},
			[]string{"resource_type", "action", "outcome"},
		),
		ScopeResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_scope_resolutions_total",
				Help: "Access scope resolutions by resource type and tier",
			},
			[]string{"resource_type", "tier"},
		),
		OrdersSubmittedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_orders_submitted_total",
				Help: "Orders submitted for provisioning",
			},
		),
		ProvisioningDispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_provisioning_dispatch_total",
				Help: "Provisioning dispatch calls by outcome",
			},
			[]string{"outcome"},
		),
		ProvisioningDispatchErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_provisioning_dispatch_errors_total",
				Help: "Provisioning dispatch calls that failed",
			},
		),
		FulfillmentEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_fulfillment_events_total",
				Help: "Fulfillment task events processed by resulting transition",
			},
			[]string{"transition"},
		),
		FulfillmentEventDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_fulfillment_event_duration_seconds",
				Help:    "Time spent processing a single fulfillment event",
				Buckets: prometheus.DefBuckets,
			},
		),
		UnmatchedTaskRefsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_unmatched_task_refs_total",
				Help: "Fulfillment events whose task reference matched no order item",
			},
		),
		EntitlementCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_entitlement_cache_hits_total",
				Help: "Entitlement cache hits by cache level",
			},
			[]string{"level"},
		),
		EntitlementCacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_entitlement_cache_misses_total",
				Help: "Entitlement cache misses by cache level",
			},
			[]string{"level"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_db_connections_idle",
				Help: "Idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.ScopeResolutionsTotal,
		m.OrdersSubmittedTotal,
		m.ProvisioningDispatchTotal,
		m.ProvisioningDispatchErrors,
		m.FulfillmentEventsTotal,
		m.FulfillmentEventDuration,
		m.UnmatchedTaskRefsTotal,
		m.EntitlementCacheHits,
		m.EntitlementCacheMisses,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry in Prometheus format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
