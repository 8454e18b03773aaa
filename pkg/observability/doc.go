// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown for the catalog service.
//
// # Logging
//
// Logger wraps stdlib slog with a JSON handler and chained field helpers:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("order_item_id", item.ID).Info("order item dispatched")
//
// # Metrics
//
// NewMetrics registers counters and histograms for HTTP traffic, permission
// checks, provisioning dispatches, and fulfillment event processing:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.FulfillmentEventsTotal.WithLabelValues("completed").Inc()
//
// # Health
//
// HealthChecker exposes liveness and readiness probes backed by database and
// Redis pings, suitable for k8s probe endpoints.
//
// # Shutdown
//
// ShutdownManager coordinates SIGINT/SIGTERM handling, HTTP server drain, and
// registered cleanup functions with a bounded timeout.
package observability
