// Package telemetry sets up OpenTelemetry tracing for sandboxops.
// Spans are exported as JSON through the stdout trace exporter to a writer,
// typically a rotated file next to the server log.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "sandboxops"

// Options configures InitTracing.
type Options struct {
	Writer  io.Writer // span destination
	Version string    // service.version
	Sync    bool      // export each span synchronously instead of batching
}

// InitTracing installs a global tracer provider exporting to opts.Writer and
// returns a shutdown function that flushes pending spans.
func InitTracing(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Writer == nil {
		return nil, fmt.Errorf("telemetry: writer is required")
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	spanOpt := sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second))
	if opts.Sync {
		spanOpt = sdktrace.WithSyncer(exp)
	}
	tp := sdktrace.NewTracerProvider(spanOpt, sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
