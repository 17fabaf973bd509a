package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the namereg tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("namereg")

// SpanManager handles trace span lifecycle for suspending calls.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartAcquireSpan starts a span for an exclusive registration attempt.
	StartAcquireSpan(ctx context.Context, key string, ownerID string) (context.Context, trace.Span)

	// StartWaitSpan starts a span for a wait-put or wait-del call.
	StartWaitSpan(ctx context.Context, op string, key string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartAcquireSpan starts a span for an exclusive registration attempt.
func (m *otelSpanManager) StartAcquireSpan(ctx context.Context, key string, ownerID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "namereg.acquire",
		trace.WithAttributes(
			attribute.String("key", key),
			attribute.String("owner.id", ownerID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartWaitSpan starts a span for a wait call.
func (m *otelSpanManager) StartWaitSpan(ctx context.Context, op string, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "namereg."+op,
		trace.WithAttributes(
			attribute.String("key", key),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
