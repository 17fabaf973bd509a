package namereg

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/randalmurphal/namereg/pkg/namereg/config"
	"github.com/randalmurphal/namereg/pkg/namereg/observability"
)

// Registry is a local name-registration and coordination service: an
// in-memory directory mapping caller-chosen keys to values owned by
// concurrently executing workers.
//
// Two registration modes coexist independently per key: any number of
// owners may register values under a key (Put), and at most one owner
// may hold the key exclusively (RegisterExclusive), with FIFO handover
// to waiting contenders when the holder releases it. When an owner
// terminates, everything it holds is purged automatically.
//
// Every mutation is serialized through a single coordinator goroutine,
// so compound checks ("is the key free AND install the entry") are
// atomic with respect to all other requests. Non-suspending reads
// (Lookup, folds, Size) are served directly from the tables as
// snapshots and never route through the coordinator.
type Registry[K comparable, V any] struct {
	cfg settings

	// names and owners are mutated only by the coordinator; the mutex
	// exists so snapshot reads can run concurrently with it.
	mu     sync.RWMutex
	names  map[K][]entry[V]
	owners map[*Owner]map[indexKey[K]]struct{}

	// watched is touched only by the coordinator goroutine.
	watched map[*Owner]struct{}

	reqCh     chan request[K, V]
	purgeCh   chan *Owner
	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a registry and starts its coordinator.
// Call Close to stop it and resolve any parked waiters with ErrStopped.
func New[K comparable, V any](opts ...Option) *Registry[K, V] {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Registry[K, V]{
		cfg:     cfg,
		names:   make(map[K][]entry[V]),
		owners:  make(map[*Owner]map[indexKey[K]]struct{}),
		watched: make(map[*Owner]struct{}),
		reqCh:   make(chan request[K, V], cfg.buffer),
		purgeCh: make(chan *Owner, 16),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	observability.LogRegistryStart(cfg.logger, cfg.buffer)
	go r.run()
	return r
}

// Close stops the coordinator. Parked waiters are resolved with
// ErrStopped; requests sent afterwards are dropped. Safe to call more
// than once.
func (r *Registry[K, V]) Close() {
	r.closeOnce.Do(func() { close(r.stopCh) })
	<-r.done
}

// ---------------------------------------------------------------------------
// Asynchronous operations (fire-and-forget)
// ---------------------------------------------------------------------------

// Put registers value under key for owner. Any number of owners may
// register under the same key; a second Put by the same owner replaces
// its value. Callers parked in WaitPut on the key are woken with
// (value, owner).
//
// Put is fire-and-forget: it returns once the request is queued, not
// once it is applied. A Lookup issued immediately afterwards by a
// different caller may race with it.
func (r *Registry[K, V]) Put(key K, value V, owner *Owner) {
	if owner == nil {
		observability.LogInvalidRequest(r.cfg.logger, "put", "nil owner")
		return
	}
	r.send(request[K, V]{op: opPut, key: key, value: value, owner: owner})
}

// Del removes owner's entries under key: its value registration and,
// if it holds one, its exclusive registration (which releases the key
// to the next FIFO handover waiter). Fire-and-forget like Put.
func (r *Registry[K, V]) Del(key K, owner *Owner) {
	if owner == nil {
		observability.LogInvalidRequest(r.cfg.logger, "del", "nil owner")
		return
	}
	r.send(request[K, V]{op: opDel, key: key, owner: owner})
}

// DelAll removes every entry held by owner, exactly as if it had
// terminated. Fire-and-forget.
func (r *Registry[K, V]) DelAll(owner *Owner) {
	if owner == nil {
		observability.LogInvalidRequest(r.cfg.logger, "del_all", "nil owner")
		return
	}
	r.send(request[K, V]{op: opDelAll, owner: owner})
}

func (r *Registry[K, V]) send(req request[K, V]) bool {
	select {
	case r.reqCh <- req:
		return true
	case <-r.stopCh:
		observability.LogDroppedRequest(r.cfg.logger, req.op.String())
		return false
	}
}

// ---------------------------------------------------------------------------
// Synchronous operations (block until answered or timed out)
// ---------------------------------------------------------------------------

// RegisterExclusive registers value under key exclusively for owner.
//
// If no exclusive registration exists, it is installed and the call
// returns nil immediately. Re-registration by the current holder
// refreshes the value and succeeds idempotently.
//
// If another owner holds the key: with timeout 0 the call fails fast
// with a ConflictError carrying the current holder; with timeout > 0
// the caller joins the key's FIFO handover queue and blocks until
// promoted or the deadline expires (ErrTimeout); with timeout < 0 it
// waits with no deadline. A timed-out caller is never promoted later.
func (r *Registry[K, V]) RegisterExclusive(ctx context.Context, key K, value V, owner *Owner, timeout time.Duration) error {
	if owner == nil {
		return ErrNilOwner
	}
	ctx, span := r.cfg.spans.StartAcquireSpan(ctx, config.Str(key), owner.ID())
	elapsed := observability.TimedOperation()

	err := r.registerExclusive(ctx, key, value, owner, timeout)

	r.cfg.metrics.RecordWait(ctx, "reg", elapsed(), waitOutcome(err))
	r.cfg.spans.EndSpanWithError(span, err)
	return err
}

func (r *Registry[K, V]) registerExclusive(ctx context.Context, key K, value V, owner *Owner, timeout time.Duration) error {
	w := newWaiter(owner, value)
	req := request[K, V]{
		op:       opReg,
		key:      key,
		value:    value,
		owner:    owner,
		w:        w,
		failFast: timeout == 0,
	}

	select {
	case r.reqCh <- req:
	case <-r.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	res, err := r.await(ctx, key, w, timeout)
	if err != nil {
		return err
	}
	switch {
	case res.granted:
		return nil
	case res.stopped:
		return ErrStopped
	case res.purged:
		return ErrCancelled
	default:
		return &ConflictError{Key: key, Holder: res.holder}
	}
}

// WaitPut returns the (value, owner) of an existing value registration
// under key, or blocks until one appears. timeout > 0 sets a deadline
// (ErrTimeout on expiry); timeout <= 0 waits with no deadline.
func (r *Registry[K, V]) WaitPut(ctx context.Context, key K, timeout time.Duration) (V, *Owner, error) {
	ctx, span := r.cfg.spans.StartWaitSpan(ctx, "wait_put", config.Str(key))
	elapsed := observability.TimedOperation()

	value, owner, err := r.waitPut(ctx, key, timeout)

	r.cfg.metrics.RecordWait(ctx, "wait_put", elapsed(), waitOutcome(err))
	r.cfg.spans.EndSpanWithError(span, err)
	return value, owner, err
}

func (r *Registry[K, V]) waitPut(ctx context.Context, key K, timeout time.Duration) (V, *Owner, error) {
	var zero V
	w := newWaiter(nil, zero)
	req := request[K, V]{op: opWaitPut, key: key, w: w}

	select {
	case r.reqCh <- req:
	case <-r.stopCh:
		return zero, nil, ErrStopped
	case <-ctx.Done():
		return zero, nil, ctx.Err()
	}

	res, err := r.await(ctx, key, w, timeout)
	if err != nil {
		return zero, nil, err
	}
	if res.stopped {
		return zero, nil, ErrStopped
	}
	return res.value, res.owner, nil
}

// WaitDel returns immediately if key has no value registrations, or
// blocks until the last one is removed. timeout > 0 sets a deadline
// (ErrTimeout on expiry); timeout <= 0 waits with no deadline.
func (r *Registry[K, V]) WaitDel(ctx context.Context, key K, timeout time.Duration) error {
	ctx, span := r.cfg.spans.StartWaitSpan(ctx, "wait_del", config.Str(key))
	elapsed := observability.TimedOperation()

	err := r.waitDel(ctx, key, timeout)

	r.cfg.metrics.RecordWait(ctx, "wait_del", elapsed(), waitOutcome(err))
	r.cfg.spans.EndSpanWithError(span, err)
	return err
}

func (r *Registry[K, V]) waitDel(ctx context.Context, key K, timeout time.Duration) error {
	var zero V
	w := newWaiter(nil, zero)
	req := request[K, V]{op: opWaitDel, key: key, w: w}

	select {
	case r.reqCh <- req:
	case <-r.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	res, err := r.await(ctx, key, w, timeout)
	if err != nil {
		return err
	}
	if res.stopped {
		return ErrStopped
	}
	return nil
}

// await blocks until the waiter is resolved, the deadline expires, or
// the context or registry is done. On deadline/context expiry the
// waiter is cancelled synchronously so it can never be resolved later.
func (r *Registry[K, V]) await(ctx context.Context, key K, w *waiter[V], timeout time.Duration) (waitResult[V], error) {
	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case res := <-w.res:
		return res, nil

	case <-timerC:
		r.cancelWaiter(key, w)
		return waitResult[V]{}, ErrTimeout

	case <-ctx.Done():
		r.cancelWaiter(key, w)
		return waitResult[V]{}, ctx.Err()

	case <-r.done:
		// Shutdown resolves every parked waiter before closing done.
		select {
		case res := <-w.res:
			return res, nil
		default:
			return waitResult[V]{}, ErrStopped
		}
	}
}

// cancelWaiter removes a parked waiter, or rolls back a grant that
// raced the deadline. It returns only after the coordinator has
// settled the cancellation, so a late resolution can never reach an
// already-timed-out caller.
func (r *Registry[K, V]) cancelWaiter(key K, w *waiter[V]) {
	ack := make(chan struct{}, 1)
	req := request[K, V]{op: opCancel, key: key, w: w, ack: ack}

	select {
	case r.reqCh <- req:
		select {
		case <-ack:
		case <-r.done:
		}
	case <-r.stopCh:
	}

	// Drain a result that raced the deadline so the grant (already
	// rolled back) is not mistaken for success by anyone.
	select {
	case <-w.res:
	default:
	}
}

// ---------------------------------------------------------------------------
// Non-suspending reads (snapshots, never route through the coordinator)
// ---------------------------------------------------------------------------

// Lookup returns the current (value, owner) pairs registered under key
// via Put, in registration order. The exclusive registration, if any,
// is not included; see LookupExclusive.
func (r *Registry[K, V]) Lookup(key K) []Registration[V] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Registration[V]
	for _, e := range r.names[key] {
		if e.kind == KindValue {
			out = append(out, Registration[V]{Value: e.value, Owner: e.owner})
		}
	}
	return out
}

// LookupExclusive returns the exclusive registration for key, if any.
func (r *Registry[K, V]) LookupExclusive(key K) (Registration[V], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.names[key] {
		if e.kind == KindExclusive {
			return Registration[V]{Value: e.value, Owner: e.owner}, true
		}
	}
	return Registration[V]{}, false
}

// Size returns the number of distinct owners currently holding at
// least one live (value or exclusive) registration.
func (r *Registry[K, V]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, idx := range r.owners {
		for ik := range idx {
			if ik.kind == KindValue || ik.kind == KindExclusive {
				n++
				break
			}
		}
	}
	return n
}

// FoldByKey folds fn over a snapshot of every key's live registrations
// (values and the exclusive entry, in list order). The snapshot is
// taken under the read lock; fn runs without it, so it may call back
// into the registry.
func (r *Registry[K, V]) FoldByKey(seed any, fn func(acc any, key K, regs []Registration[V]) any) any {
	r.mu.RLock()
	snapshot := make(map[K][]Registration[V], len(r.names))
	for key, entries := range r.names {
		var regs []Registration[V]
		for _, e := range entries {
			if e.kind == KindValue || e.kind == KindExclusive {
				regs = append(regs, Registration[V]{Value: e.value, Owner: e.owner})
			}
		}
		if len(regs) > 0 {
			snapshot[key] = regs
		}
	}
	r.mu.RUnlock()

	acc := seed
	for key, regs := range snapshot {
		acc = fn(acc, key, regs)
	}
	return acc
}

// FoldByOwner folds fn over a snapshot of every owner's (kind, key)
// entries. Like FoldByKey, fn runs without the lock held.
func (r *Registry[K, V]) FoldByOwner(seed any, fn func(acc any, owner *Owner, entries []OwnerEntry[K]) any) any {
	r.mu.RLock()
	snapshot := make(map[*Owner][]OwnerEntry[K], len(r.owners))
	for o, idx := range r.owners {
		list := make([]OwnerEntry[K], 0, len(idx))
		for ik := range idx {
			list = append(list, OwnerEntry[K]{Kind: ik.kind, Key: ik.key})
		}
		snapshot[o] = list
	}
	r.mu.RUnlock()

	acc := seed
	for o, list := range snapshot {
		acc = fn(acc, o, list)
	}
	return acc
}

// waitOutcome maps a suspending call result to a metrics label.
func waitOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrStopped):
		return "stopped"
	default:
		return "error"
	}
}
