package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracerName identifies this package's spans in whatever backend the
// process is configured to export to.
const tracerName = "github.com/luthien-control/core"

// Setup installs a process-global TracerProvider. No exporter is wired by
// default (spec §9: "a no-op tracer is the default") — spans are recorded
// but never exported unless the caller's environment configures one via the
// OTel SDK's own environment-variable exporter hooks before calling Setup.
// The returned shutdown func flushes and releases the provider; call it
// once during process shutdown.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// StartSpan starts a span named name under this package's tracer, propagating
// whatever parent span ctx carries (spec's "orchestrator span per request,
// child span per policy apply").
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}
