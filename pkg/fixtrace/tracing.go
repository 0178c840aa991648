// Package fixtrace wires the default OpenTelemetry tracer provider
// fixsession spans land in when a caller doesn't supply its own
// trace.Tracer. Adapted from the teacher's
// services/marketfeeds/common/otel package, trimmed to tracing only:
// fixgo's metrics are Prometheus (pkg/fixmetrics), not an OTel meter.
package fixtrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs a stdout-exporting tracer provider as the global
// default and returns a shutdown func the caller must run before exit
// to flush pending spans.
func Setup(ctx context.Context) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(0)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Shutdown, nil
}
