// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes, and graceful shutdown for alertdesk.
//
// # Structured Logging
//
// Logging is backed by logrus. JSON output is the default; text output is
// used for local development:
//
//	logger := observability.NewLoggerWithFormat(observability.InfoLevel, observability.FormatText, os.Stdout)
//	logger.WithField("user_id", 7).Info("role changed")
//
// Request handlers use the logger stored on the request context:
//
//	observability.FromContext(r.Context()).WithError(err).Error("override failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordAuth("api_key", "invalid")
//
// A nil *Metrics is accepted everywhere and records nothing, so services can
// be constructed in tests without a registry.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(serveMux, checker) // /healthz, /readyz
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer providers.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "apikeys.rotate")
//	defer func() { observability.EndSpan(span, err) }()
package observability
