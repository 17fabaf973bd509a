// Package event provides in-process pub/sub notification of registry
// transitions. Subscribers observe puts, deletes, exclusive grants,
// handovers, and owner purges without polling the registry.
//
// Delivery is non-blocking: each subscription has a buffered channel
// drained by its own goroutine, and events that would block are
// dropped (with an optional callback), so a slow subscriber can never
// stall the coordinator.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies a registry transition.
type Type string

// Event types.
const (
	// TypePut is a multi-owner value registration.
	TypePut Type = "put"

	// TypeDel is removal of a value registration.
	TypeDel Type = "del"

	// TypeGranted is an exclusive registration installed directly.
	TypeGranted Type = "granted"

	// TypeHandover is an exclusive registration transferred to a
	// FIFO-queued waiter after the previous holder released it.
	TypeHandover Type = "handover"

	// TypeReleased is removal of an exclusive registration by its
	// holder. Followed by a TypeHandover if a waiter was queued.
	TypeReleased Type = "released"

	// TypeRevoked is rollback of a grant that raced a timeout.
	TypeRevoked Type = "revoked"

	// TypePurged is removal of all entries of a terminated owner.
	TypePurged Type = "purged"
)

// Event is one observed registry transition.
type Event struct {
	// ID uniquely identifies this event.
	ID string

	// Type is the transition kind.
	Type Type

	// Key is the registry key the transition applies to.
	// Nil for owner-wide transitions (TypePurged).
	Key any

	// Value is the registered value, when the transition carries one.
	Value any

	// OwnerID identifies the owner involved.
	OwnerID string

	// Time is when the coordinator applied the transition.
	Time time.Time
}

// New creates an event with a fresh id and the current time.
func New(typ Type, key, value any, ownerID string) Event {
	return Event{
		ID:      fmt.Sprintf("evt-%s", uuid.New().String()[:8]),
		Type:    typ,
		Key:     key,
		Value:   value,
		OwnerID: ownerID,
		Time:    time.Now(),
	}
}
