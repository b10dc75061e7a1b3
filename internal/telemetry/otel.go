// Package telemetry installs the process-wide trace pipeline. The hub starts
// its spans from the global provider, so nothing else needs wiring.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/multierr"
)

type Options struct {
	ServiceName string
	// Endpoint is the OTLP/HTTP traces URL. Empty disables tracing.
	Endpoint string
	// SampleRatio is the share of root traces kept, from 0 to 1.
	SampleRatio float64
}

type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Setup registers a batching OTLP exporter as the global tracer provider and
// returns the function that flushes it. Without an endpoint it registers
// nothing and the hub's spans are dropped by the default no-op provider.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if opts.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(opts.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName)),
		resource.WithProcessPID(),
		resource.WithHost(),
	)
	if err != nil {
		return noop, multierr.Append(fmt.Errorf("trace resource: %w", err), exporter.Shutdown(ctx))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(opts.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// Sampler keeps every trace at ratio 1 and none at 0. Child spans follow
// their parent's decision either way.
func Sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
