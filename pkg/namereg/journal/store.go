// Package journal provides an append-only audit trail of registry
// transitions for post-hoc diagnostics. It records what happened, not
// registry state: a registry always starts empty regardless of what
// the journal holds.
package journal

import (
	"errors"
	"time"
)

// Record is one journaled registry transition. Keys and values are
// stored in their coerced string form.
type Record struct {
	ID      string
	Type    string
	Key     string
	OwnerID string
	Value   string
	Time    time.Time
}

// Store persists registry transition records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a record to the journal.
	Append(rec Record) error

	// ListByKey returns all records for a key, oldest first.
	// Returns empty slice (not error) if the key has no records.
	ListByKey(key string) ([]Record, error)

	// ListByOwner returns all records for an owner, oldest first.
	// Returns empty slice (not error) if the owner has no records.
	ListByOwner(ownerID string) ([]Record, error)

	// Prune removes records older than the cutoff.
	Prune(before time.Time) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
