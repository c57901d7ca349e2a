package tracing

import (
	"net/http"

	"centscape-preview/internal/handler/http/requestid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader carries the trace ID back to the client.
const TraceIDHeader = "X-Trace-Id"

// unmatchedRoute names spans of requests no registered route claimed.
const unmatchedRoute = "unmatched"

// statusWriter remembers the response status and body size.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Middleware starts the server span of each request, continuing a W3C
// traceparent sent by the caller, and echoes the trace ID in X-Trace-Id.
//
// The span is named "<METHOD> unmatched" until Route renames it after the
// ServeMux pattern that handled the request, so raw paths never become span
// names. Status, response size and the request ID are recorded when the
// handler returns; 5xx responses mark the span as failed.
//
//	mux := http.NewServeMux()
//	mux.Handle("POST /preview", tracing.Route(previewHandler))
//	handler := requestid.Middleware(tracing.Middleware(mux))
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := GetTracer().Start(ctx, r.Method+" "+unmatchedRoute,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		w.Header().Set(TraceIDHeader, span.SpanContext().TraceID().String())

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		span.SetAttributes(
			attribute.Int("http.response.status_code", sw.status),
			attribute.Int("http.response.body.size", sw.bytes),
		)
		if id := requestid.FromContext(r.Context()); id != "" {
			span.SetAttributes(attribute.String("preview.request_id", id))
		}
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
	})
}

// Route renames the current server span after the ServeMux pattern that
// matched the request and records it as http.route. Wrap handlers as they
// are registered; the mux sets r.Pattern only on the request it hands them.
func Route(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Pattern != "" {
			span := trace.SpanFromContext(r.Context())
			span.SetName(r.Pattern)
			span.SetAttributes(attribute.String("http.route", r.Pattern))
		}
		next.ServeHTTP(w, r)
	})
}
