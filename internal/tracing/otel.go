package tracing

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var global struct {
	once sync.Once
	mu   sync.RWMutex
	tp   *sdktrace.TracerProvider
	err  error
}

// InitOpenTelemetry installs a process-wide tracer provider for the
// named service. Repeat calls are no-ops returning the first result.
// Sampling defaults to everything; TOOLMUX_TRACE_SAMPLE=parent switches
// to parent-based sampling for high-volume deployments.
func InitOpenTelemetry(serviceName string) error {
	global.once.Do(func() {
		res, err := resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion("0.1.0"),
			),
		)
		if err != nil {
			global.err = err
			return
		}

		sampler := sdktrace.AlwaysSample()
		if os.Getenv("TOOLMUX_TRACE_SAMPLE") == "parent" {
			sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sampler),
			sdktrace.WithResource(res),
		)

		global.mu.Lock()
		global.tp = tp
		global.mu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return global.err
}

// ShutdownOpenTelemetry flushes and shuts down the global tracer
// provider. Safe to call when tracing was never initialized.
func ShutdownOpenTelemetry(ctx context.Context) error {
	global.mu.RLock()
	tp := global.tp
	global.mu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span and mirrors its trace ID into the context so
// GetTraceID and log enrichment see the same ID the span carries.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		if sc := span.SpanContext(); sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
