// Package metrics provides Prometheus metrics for the preview pipeline.
//
// This package centralizes domain metrics including:
//   - Preview outcomes by result kind
//   - Upstream fetch duration and size
//   - Winning extraction strategy and field coverage
//   - Retries, open breakers and rate limit rejections
//
// HTTP request metrics live with the HTTP middleware. All metrics are
// registered with the Prometheus default registry and exposed via /metrics.
//
// Example usage:
//
//	import "centscape-preview/internal/observability/metrics"
//
//	func preview(ctx context.Context) {
//	    start := time.Now()
//	    // ... fetch ...
//	    metrics.RecordFetch("success", time.Since(start), len(html))
//	    metrics.RecordPreviewResult("success", metrics.SourceFetched)
//	}
package metrics
