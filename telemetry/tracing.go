package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer(meterName)

// StartSpan opens a span named op, labeled with the same key-value pairs
// Counter/Histogram take, and returns the derived context plus a func to
// defer that ends the span. Until ConfigureSDK installs a real
// TracerProvider, tracer is the otel no-op delegate and this is free.
func StartSpan(ctx context.Context, op string, labels ...string) (context.Context, func()) {
	spanCtx, span := tracer.Start(ctx, op, trace.WithAttributes(toOtelAttrs(labelsToAttrs(labels))...))
	return spanCtx, func() { span.End() }
}
