package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracer_NilProvider(t *testing.T) {
	tracer := Tracer(nil)
	if tracer == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestTracer_WithProvider(t *testing.T) {
	tp := noop.NewTracerProvider()
	tracer := Tracer(tp)
	if tracer == nil {
		t.Fatal("expected non-nil tracer")
	}
}

func TestNewTracerProvider(t *testing.T) {
	// Store original propagator to restore after test.
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)

	// Exporter creation is lazy; an unreachable endpoint must not error here.
	tp, err := NewTracerProvider(t.Context(), "http://localhost:0/v1/traces", "voxmux-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = tp.Shutdown(t.Context()) }()

	var _ trace.TracerProvider = tp

	// Construction installs the composite propagator; W3C traceparent
	// must be among its fields.
	fields := otel.GetTextMapPropagator().Fields()
	found := false
	for _, f := range fields {
		if f == "traceparent" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected propagator to handle 'traceparent', got fields: %v", fields)
	}
}

func TestSpanAttributeKeys(t *testing.T) {
	if got := string(AttrCapability); got != "voxmux.capability" {
		t.Errorf("capability key = %q", got)
	}
	kv := AttrCacheHit.Bool(true)
	if !kv.Value.AsBool() {
		t.Error("cache hit attribute lost its value")
	}
}
