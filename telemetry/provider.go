// Package telemetry wires voxmux into OpenTelemetry: an OTLP-exporting
// TracerProvider and the span attribute keys the router emits.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/propagators/aws/xray"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// instrumentationName is the OTel instrumentation scope name.
	instrumentationName = "github.com/voxmux/voxmux"

	// instrumentationVersion is the OTel instrumentation scope version.
	instrumentationVersion = "1.0.0"
)

// Span attribute keys for routed requests.
const (
	AttrCapability = attribute.Key("voxmux.capability")
	AttrBackend    = attribute.Key("voxmux.backend")
	AttrCacheHit   = attribute.Key("voxmux.cache_hit")
)

// Tracer returns the voxmux-scoped tracer from the given provider, or
// from the global provider when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))
}

// NewTracerProvider creates a TracerProvider exporting spans to an
// OTLP/HTTP endpoint and installs the global text-map propagator (W3C
// TraceContext, W3C Baggage, AWS X-Ray). The caller owns Shutdown.
func NewTracerProvider(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTextMapPropagator(newPropagator())
	return tp, nil
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		xray.Propagator{},
	)
}
