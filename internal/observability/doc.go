// Package observability groups the service's logging, metrics and tracing.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics for the preview pipeline
//   - tracing: OpenTelemetry tracer provider and HTTP middleware
//
// Example usage:
//
//	import (
//	    "centscape-preview/internal/observability/logging"
//	    "centscape-preview/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.RecordPreviewResult("success", metrics.SourceFetched)
//	}
package observability
