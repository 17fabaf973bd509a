package namereg

import (
	"errors"
	"fmt"
)

// Sentinel errors. A timeout is a normal, expected outcome of a
// suspending call, not a fault.
var (
	// ErrTimeout indicates a suspending call exceeded its deadline.
	ErrTimeout = errors.New("wait timed out")

	// ErrConflict indicates an exclusive registration found an
	// incompatible existing holder. Returned wrapped in ConflictError.
	ErrConflict = errors.New("key exclusively held")

	// ErrCancelled indicates a parked registration was discarded
	// because its owner was purged while waiting.
	ErrCancelled = errors.New("registration cancelled")

	// ErrStopped indicates the registry has been closed.
	ErrStopped = errors.New("registry stopped")

	// ErrNilOwner indicates a nil owner handle was passed to an
	// operation that requires one.
	ErrNilOwner = errors.New("owner cannot be nil")
)

// ConflictError reports a failed fail-fast exclusive registration,
// carrying the current holder so the caller can decide to wait or retry.
type ConflictError struct {
	// Key is the contested key.
	Key any
	// Holder is the owner currently holding the exclusive registration.
	Holder *Owner
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("key %v exclusively held by %s", e.Key, e.Holder)
}

// Unwrap returns ErrConflict for errors.Is support.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}
