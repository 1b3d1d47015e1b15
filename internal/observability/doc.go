// Package observability provides logging, metrics, and tracing for keygate.
//
// Logging is structured and backed by zap. Fields are built with the
// helpers in this package so callers never import zap directly:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	logger.Info("started", observability.String("address", addr))
//
// Metrics are exposed from a dedicated Prometheus registry. Tracing uses
// OpenTelemetry with an optional OTLP gRPC exporter.
package observability
