package namereg

import (
	"log/slog"

	"github.com/randalmurphal/namereg/pkg/namereg/config"
	"github.com/randalmurphal/namereg/pkg/namereg/event"
	"github.com/randalmurphal/namereg/pkg/namereg/journal"
	"github.com/randalmurphal/namereg/pkg/namereg/observability"
)

// settings holds registry configuration.
type settings struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	buffer  int
	bus     *event.Bus
	journal journal.Store

	metricsEnabled bool
	tracingEnabled bool
}

// defaultSettings returns the default registry configuration.
func defaultSettings() settings {
	return settings{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		buffer:  64,
	}
}

// Option configures a registry.
type Option func(*settings)

// WithLogger sets the structured logger used for warnings and debug
// output. A nil logger disables logging entirely.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics enables or disables OpenTelemetry metrics.
// Default: disabled (no-op recorder).
//
// The recorder uses the global OTel meter provider; configure it before
// creating the registry.
func WithMetrics(enabled bool) Option {
	return func(s *settings) {
		s.metricsEnabled = enabled
		if enabled {
			s.metrics = observability.NewMetricsRecorder()
		} else {
			s.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables or disables OpenTelemetry tracing of suspending
// calls. Default: disabled (no-op span manager).
func WithTracing(enabled bool) Option {
	return func(s *settings) {
		s.tracingEnabled = enabled
		if enabled {
			s.spans = observability.NewSpanManager()
		} else {
			s.spans = observability.NoopSpanManager{}
		}
	}
}

// WithRequestBuffer sets the coordinator request channel buffer size.
// Default: 64
func WithRequestBuffer(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithEventBus attaches an event bus; the coordinator publishes a
// notification for every applied transition.
func WithEventBus(bus *event.Bus) Option {
	return func(s *settings) {
		s.bus = bus
	}
}

// WithJournal attaches a journal store; the coordinator appends a
// record for every applied transition. Append failures are logged and
// never fail the transition itself.
func WithJournal(store journal.Store) Option {
	return func(s *settings) {
		s.journal = store
	}
}

// OptionsFromConfig builds registry options from a config map.
//
// Recognized keys: "request_buffer" (int), "metrics" (bool),
// "tracing" (bool).
func OptionsFromConfig(cfg config.Config) []Option {
	return []Option{
		WithRequestBuffer(cfg.Int("request_buffer", 64)),
		WithMetrics(cfg.Bool("metrics", false)),
		WithTracing(cfg.Bool("tracing", false)),
	}
}
