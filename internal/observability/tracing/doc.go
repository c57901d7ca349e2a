// Package tracing provides OpenTelemetry tracing integration.
//
// Init installs the SDK tracer provider at startup. Middleware opens a server
// span per HTTP request and Route renames it after the matched mux pattern.
// The preview service adds child spans for the fetch and extraction stages. Spans are kept in-process; no exporter is
// configured.
//
// Example usage:
//
//	shutdown := tracing.Init(1.0)
//	defer func() { _ = shutdown(context.Background()) }()
//
//	func preview(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "preview.fetch")
//	    defer span.End()
//	}
package tracing
