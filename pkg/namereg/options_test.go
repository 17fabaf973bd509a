package namereg

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/namereg/pkg/namereg/config"
	"github.com/randalmurphal/namereg/pkg/namereg/event"
	"github.com/randalmurphal/namereg/pkg/namereg/journal"
	"github.com/randalmurphal/namereg/pkg/namereg/observability"
)

func TestDefaultSettings(t *testing.T) {
	s := defaultSettings()
	assert.Nil(t, s.logger)
	assert.Equal(t, 64, s.buffer)
	assert.False(t, s.metricsEnabled)
	assert.False(t, s.tracingEnabled)
	assert.IsType(t, observability.NoopMetrics{}, s.metrics)
	assert.IsType(t, observability.NoopSpanManager{}, s.spans)
}

func TestWithLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s := defaultSettings()
	WithLogger(logger)(&s)
	assert.Same(t, logger, s.logger)
}

func TestWithMetrics(t *testing.T) {
	s := defaultSettings()
	WithMetrics(true)(&s)
	assert.True(t, s.metricsEnabled)
	assert.NotNil(t, s.metrics)

	WithMetrics(false)(&s)
	assert.False(t, s.metricsEnabled)
	assert.IsType(t, observability.NoopMetrics{}, s.metrics)
}

func TestWithTracing(t *testing.T) {
	s := defaultSettings()
	WithTracing(true)(&s)
	assert.True(t, s.tracingEnabled)

	WithTracing(false)(&s)
	assert.False(t, s.tracingEnabled)
	assert.IsType(t, observability.NoopSpanManager{}, s.spans)
}

func TestWithRequestBuffer(t *testing.T) {
	s := defaultSettings()
	WithRequestBuffer(128)(&s)
	assert.Equal(t, 128, s.buffer)

	// Non-positive values keep the current size.
	WithRequestBuffer(0)(&s)
	assert.Equal(t, 128, s.buffer)
	WithRequestBuffer(-1)(&s)
	assert.Equal(t, 128, s.buffer)
}

func TestWithEventBusAndJournal(t *testing.T) {
	bus := event.NewBus(event.BusConfig{})
	defer bus.Close()
	store := journal.NewMemoryStore()

	s := defaultSettings()
	WithEventBus(bus)(&s)
	WithJournal(store)(&s)
	assert.Same(t, bus, s.bus)
	assert.Equal(t, journal.Store(store), s.journal)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.New(map[string]any{
		"request_buffer": 32,
		"metrics":        true,
		"tracing":        true,
	})

	s := defaultSettings()
	for _, opt := range OptionsFromConfig(cfg) {
		opt(&s)
	}
	assert.Equal(t, 32, s.buffer)
	assert.True(t, s.metricsEnabled)
	assert.True(t, s.tracingEnabled)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindValue, "value"},
		{KindExclusive, "exclusive"},
		{KindWaitPut, "wait-put"},
		{KindWaitDel, "wait-del"},
		{KindWaitHandover, "wait-handover"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestOpCodeString(t *testing.T) {
	tests := []struct {
		op   opCode
		want string
	}{
		{opPut, "put"},
		{opDel, "del"},
		{opDelAll, "del_all"},
		{opReg, "reg"},
		{opWaitPut, "wait_put"},
		{opWaitDel, "wait_del"},
		{opCancel, "cancel"},
		{opCode(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}
