package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_InstallsProviderAndPropagator(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown := Init(1.0, sdktrace.WithSyncer(exporter))
	defer func() {
		_ = shutdown(context.Background())
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	}()

	_, span := GetTracer().Start(context.Background(), "preview.fetch")
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].InstrumentationScope.Name != TracerName {
		t.Errorf("expected scope %q, got %q", TracerName, spans[0].InstrumentationScope.Name)
	}

	fields := otel.GetTextMapPropagator().Fields()
	found := false
	for _, f := range fields {
		if f == "traceparent" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected traceparent in propagator fields, got %v", fields)
	}
}

func TestInit_ZeroRatioDropsRootSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown := Init(0, sdktrace.WithSyncer(exporter))
	defer func() {
		_ = shutdown(context.Background())
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	}()

	_, span := GetTracer().Start(context.Background(), "dropped")
	span.End()

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("expected no sampled spans, got %d", n)
	}
}
