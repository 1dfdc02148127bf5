// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.ParseLogLevel("info"), os.Stdout)
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).WithField("organization_id", id).Info("sso enrollment")
//
// FromContext adds the request ID, user ID and, when a span is recording,
// the trace and span IDs.
//
// # Metrics
//
// Metrics implements the recorders of the sso and enrollment packages:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	observability.RegisterMetricsEndpoint(router, registry)
//
// With OpenTelemetry enabled the same counters are mirrored to OTLP through
// Metrics.WithOTel.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(router, checker)
//
// A failing database makes the service unhealthy; a failing login cache
// only degrades it.
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, server, 30*time.Second)
//	sm.RegisterShutdownFunc("notifications", runner.Close)
//	sm.RegisterShutdownFunc("otel", providers.Shutdown)
//	return sm.WaitForShutdown(ctx)
package observability
