/*
Package namereg provides a local name-registration and coordination
service: an in-memory directory mapping caller-chosen keys to values
owned by concurrently executing workers, with blocking rendezvous and
exclusive handover built in.

# Overview

A Registry holds two independent registration modes per key:

  - Value registrations (Put): any number of owners may register a
    value under the same key. Lookup returns them in registration
    order.
  - Exclusive registrations (RegisterExclusive): at most one owner
    holds a key exclusively at any instant. Contenders queue FIFO and
    are promoted one at a time as holders release the key.

Every mutation flows through a single coordinator goroutine, so
compound checks like "is the key free, and if so install my entry" are
atomic with respect to all other requests. When an owner terminates,
everything it holds is purged before any later request is served, so a
crashed worker can never leave a key stuck.

# Basic Usage

Create a registry, an owner per worker, and register away:

	reg := namereg.New[string, string]()
	defer reg.Close()

	owner := namereg.NewOwner("ingest-worker")
	go func() {
	    defer owner.Terminate()
	    reg.Put("service/ingest", "addr:9001", owner)
	    // ... work ...
	}()

	value, _, err := reg.WaitPut(ctx, "service/ingest", 5*time.Second)

# Exclusive Registration

RegisterExclusive gives mutual exclusion with FIFO handover. A timeout
of 0 fails fast with a ConflictError naming the current holder, a
positive timeout bounds the wait, and a negative timeout waits with no
deadline:

	err := reg.RegisterExclusive(ctx, "leader", "me", owner, 2*time.Second)
	switch {
	case err == nil:
	    // acquired; release with reg.Del("leader", owner) or Terminate
	case errors.Is(err, namereg.ErrTimeout):
	    // still held after 2s; this caller will never be promoted later
	case errors.Is(err, namereg.ErrConflict):
	    // fail-fast path only
	}

The lock subpackage wraps this pattern with retries and a
callback-scoped release.

# Observability and Events

Structured logging (WithLogger), OpenTelemetry metrics (WithMetrics)
and tracing (WithTracing) are opt-in. An event.Bus (WithEventBus)
publishes every applied transition to in-process subscribers, and a
journal.Store (WithJournal) appends an audit record per transition,
either in memory or in SQLite. The registration tables themselves are
always in-memory only; a restarted process starts empty.
*/
package namereg
