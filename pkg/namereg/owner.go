package namereg

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Owner is a handle identifying a concurrently executing unit of work.
// Owners are unique, comparable (by handle identity) and observable for
// termination: the registry watches an owner from its first registration
// and purges everything it holds when Terminate is called.
//
// An Owner is typically created alongside the goroutine doing the work
// and terminated when that goroutine exits:
//
//	owner := namereg.NewOwner("ingest-worker")
//	go func() {
//	    defer owner.Terminate()
//	    // ... register and work ...
//	}()
type Owner struct {
	id   string
	name string
	done chan struct{}
	once sync.Once
}

// NewOwner creates an owner handle with an optional display name.
func NewOwner(name string) *Owner {
	return &Owner{
		id:   fmt.Sprintf("own-%s", uuid.New().String()[:8]),
		name: name,
		done: make(chan struct{}),
	}
}

// ID returns the unique owner id.
func (o *Owner) ID() string { return o.id }

// Name returns the display name given at creation (may be empty).
func (o *Owner) Name() string { return o.name }

// String returns the display name if set, otherwise the id.
func (o *Owner) String() string {
	if o.name != "" {
		return o.name
	}
	return o.id
}

// Done returns a channel closed when the owner terminates.
func (o *Owner) Done() <-chan struct{} { return o.done }

// Terminate signals that the owner is gone. Every registry observing
// this owner purges all of its entries before serving later requests.
// Safe to call more than once.
func (o *Owner) Terminate() {
	o.once.Do(func() { close(o.done) })
}

// Terminated reports whether Terminate has been called.
func (o *Owner) Terminated() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// newGen returns a waiter generation id.
func newGen() string {
	return fmt.Sprintf("gen-%s", uuid.New().String()[:8])
}
