package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs a span-recording tracer provider and
// returns the recorder plus a cleanup function.
func setupTracingTest(t *testing.T) (*tracetest.SpanRecorder, func()) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)

	cleanup := func() {
		otel.SetTracerProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}
	return recorder, cleanup
}

func attrValue(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

func TestStartAcquireSpan(t *testing.T) {
	recorder, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()
	_, span := m.StartAcquireSpan(context.Background(), "leader", "own-1234")
	m.EndSpanWithError(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "namereg.acquire", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	key, ok := attrValue(spans[0].Attributes(), "key")
	require.True(t, ok)
	assert.Equal(t, "leader", key)

	owner, ok := attrValue(spans[0].Attributes(), "owner.id")
	require.True(t, ok)
	assert.Equal(t, "own-1234", owner)
}

func TestStartWaitSpan(t *testing.T) {
	recorder, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()
	_, span := m.StartWaitSpan(context.Background(), "wait_put", "svc")
	m.EndSpanWithError(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "namereg.wait_put", spans[0].Name())
}

func TestEndSpanWithError(t *testing.T) {
	recorder, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()
	_, span := m.StartWaitSpan(context.Background(), "wait_del", "svc")
	m.EndSpanWithError(span, errors.New("wait timed out"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "wait timed out", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1) // recorded error event
}

func TestEndSpanWithErrorNilSpan(t *testing.T) {
	m := NewSpanManager()
	assert.NotPanics(t, func() {
		m.EndSpanWithError(nil, nil)
	})
}
