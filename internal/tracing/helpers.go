package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UpstreamPeer is the peer.service attribute recorded on upstream spans.
const UpstreamPeer = "lens-api"

// StartUpstreamSpan creates a client span for a call to the rankings API.
// Returns the new context and a function to end the span.
//
// Example usage:
//
//	ctx, endSpan := tracing.StartUpstreamSpan(ctx, "global_rankings", target)
//	defer endSpan(err)
func StartUpstreamSpan(ctx context.Context, operation, target string) (context.Context, func(error)) {
	tracer := otel.Tracer("lensrank/upstream")

	ctx, span := tracer.Start(ctx, "lens-api "+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("peer.service", UpstreamPeer),
			attribute.String("lensrank.operation", operation),
		),
	)

	if target != "" {
		span.SetAttributes(attribute.String("url.full", target))
	}

	return ctx, endFunc(span)
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("lensrank")

	ctx, span := tracer.Start(ctx, name)

	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
