package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records registry metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRequest records one request processed by the coordinator.
	RecordRequest(ctx context.Context, op string)

	// RecordRegistration records an installed registration entry.
	RecordRegistration(ctx context.Context, kind string)

	// RecordWait records a completed suspending call with its outcome
	// ("ok", "timeout", "conflict", "cancelled", "stopped").
	RecordWait(ctx context.Context, op string, duration time.Duration, outcome string)

	// RecordPurge records an owner purge and how many entries it removed.
	RecordPurge(ctx context.Context, entries int)

	// AddWaiters adjusts the parked-waiter gauge.
	AddWaiters(ctx context.Context, delta int)

	// AddOwners adjusts the registered-owner gauge.
	AddOwners(ctx context.Context, delta int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	requests      metric.Int64Counter
	registrations metric.Int64Counter
	waitLatency   metric.Float64Histogram
	purgedEntries metric.Int64Counter
	waiters       metric.Int64UpDownCounter
	owners        metric.Int64UpDownCounter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("namereg")

	requests, err := meter.Int64Counter("namereg.requests",
		metric.WithDescription("Number of requests processed by the coordinator"),
	)
	if err != nil {
		return nil, err
	}

	registrations, err := meter.Int64Counter("namereg.registrations",
		metric.WithDescription("Number of registration entries installed"),
	)
	if err != nil {
		return nil, err
	}

	waitLatency, err := meter.Float64Histogram("namereg.wait.latency_ms",
		metric.WithDescription("Suspending call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	purgedEntries, err := meter.Int64Counter("namereg.purged.entries",
		metric.WithDescription("Number of entries removed by owner purges"),
	)
	if err != nil {
		return nil, err
	}

	waiters, err := meter.Int64UpDownCounter("namereg.waiters",
		metric.WithDescription("Number of currently parked waiters"),
	)
	if err != nil {
		return nil, err
	}

	owners, err := meter.Int64UpDownCounter("namereg.owners",
		metric.WithDescription("Number of owners with live registrations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		requests:      requests,
		registrations: registrations,
		waitLatency:   waitLatency,
		purgedEntries: purgedEntries,
		waiters:       waiters,
		owners:        owners,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordRequest records one processed request.
func (m *otelMetrics) RecordRequest(ctx context.Context, op string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
	))
}

// RecordRegistration records an installed entry.
func (m *otelMetrics) RecordRegistration(ctx context.Context, kind string) {
	m.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

// RecordWait records a completed suspending call.
func (m *otelMetrics) RecordWait(ctx context.Context, op string, duration time.Duration, outcome string) {
	m.waitLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// RecordPurge records an owner purge.
func (m *otelMetrics) RecordPurge(ctx context.Context, entries int) {
	m.purgedEntries.Add(ctx, int64(entries))
}

// AddWaiters adjusts the parked-waiter gauge.
func (m *otelMetrics) AddWaiters(ctx context.Context, delta int) {
	m.waiters.Add(ctx, int64(delta))
}

// AddOwners adjusts the registered-owner gauge.
func (m *otelMetrics) AddOwners(ctx context.Context, delta int) {
	m.owners.Add(ctx, int64(delta))
}
