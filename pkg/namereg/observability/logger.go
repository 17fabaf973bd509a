// Package observability provides structured logging, metrics, and
// tracing for namereg: slog for logs, OpenTelemetry for metrics and
// spans. Everything is opt-in and no-op capable, so the registry core
// never pays for instrumentation that isn't configured.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds owner context to a logger.
func EnrichLogger(logger *slog.Logger, ownerID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("owner_id", ownerID))
}

// LogRegistryStart logs coordinator startup.
func LogRegistryStart(logger *slog.Logger, buffer int) {
	if logger == nil {
		return
	}
	logger.Info("registry starting",
		slog.Int("request_buffer", buffer),
	)
}

// LogRegistryStop logs coordinator shutdown.
func LogRegistryStop(logger *slog.Logger, parked int) {
	if logger == nil {
		return
	}
	logger.Info("registry stopped",
		slog.Int("parked_waiters_resolved", parked),
	)
}

// LogPurge logs an owner purge.
func LogPurge(logger *slog.Logger, ownerID string, entries int) {
	if logger == nil {
		return
	}
	logger.Debug("owner purged",
		slog.String("owner_id", ownerID),
		slog.Int("entries_removed", entries),
	)
}

// LogUnknownRequest logs a malformed request reaching the coordinator.
// The coordinator logs and ignores it; it must never terminate on bad
// input, since that would drop every pending waiter.
func LogUnknownRequest(logger *slog.Logger, op string) {
	if logger == nil {
		return
	}
	logger.Warn("ignoring unknown request",
		slog.String("op", op),
	)
}

// LogDroppedRequest logs a request dropped because the registry
// already stopped.
func LogDroppedRequest(logger *slog.Logger, op string) {
	if logger == nil {
		return
	}
	logger.Warn("request dropped, registry stopped",
		slog.String("op", op),
	)
}

// LogInvalidRequest logs a request rejected before reaching the
// coordinator.
func LogInvalidRequest(logger *slog.Logger, op string, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("ignoring invalid request",
		slog.String("op", op),
		slog.String("reason", reason),
	)
}

// LogHandover logs promotion of a handover waiter.
func LogHandover(logger *slog.Logger, key string, ownerID string) {
	if logger == nil {
		return
	}
	logger.Debug("exclusive handover",
		slog.String("key", key),
		slog.String("owner_id", ownerID),
	)
}

// LogGrantRevoked logs rollback of a grant that raced a timeout.
func LogGrantRevoked(logger *slog.Logger, key string, ownerID string) {
	if logger == nil {
		return
	}
	logger.Debug("grant revoked after timeout",
		slog.String("key", key),
		slog.String("owner_id", ownerID),
	)
}

// LogJournalError logs a failed journal append (non-fatal).
func LogJournalError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal append failed",
		slog.String("error", err.Error()),
	)
}

// LogDroppedEvent logs an event dropped by a slow subscriber.
func LogDroppedEvent(logger *slog.Logger, eventType string, subscriberID string) {
	if logger == nil {
		return
	}
	logger.Warn("event dropped",
		slog.String("event_type", eventType),
		slog.String("subscriber_id", subscriberID),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
