// Package observability provides structured logging, Prometheus metrics, health
// checks and OpenTelemetry tracing for subledger.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("subscription_id", id).Info("period advanced")
//
// Request-scoped loggers carry the request id and, when a span is recording,
// the trace and span ids:
//
//	observability.FromContext(ctx).Warn("plan not found")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveAdvancement(periods, created, hitLimit)
//
// The helper methods are nil-safe, so a nil *Metrics disables collection.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(healthMux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
//	ctx, span := observability.StartSpan(ctx, "billing.advance")
//	defer func() { observability.EndSpan(span, err) }()
package observability
