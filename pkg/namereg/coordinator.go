package namereg

import (
	"context"

	"github.com/randalmurphal/namereg/pkg/namereg/config"
	"github.com/randalmurphal/namereg/pkg/namereg/event"
	"github.com/randalmurphal/namereg/pkg/namereg/journal"
	"github.com/randalmurphal/namereg/pkg/namereg/observability"
)

// opCode identifies a coordinator request.
type opCode uint8

const (
	opPut opCode = iota
	opDel
	opDelAll
	opReg
	opWaitPut
	opWaitDel
	opCancel
)

// String returns the wire-style operation name.
func (o opCode) String() string {
	switch o {
	case opPut:
		return "put"
	case opDel:
		return "del"
	case opDelAll:
		return "del_all"
	case opReg:
		return "reg"
	case opWaitPut:
		return "wait_put"
	case opWaitDel:
		return "wait_del"
	case opCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// request is one message to the coordinator.
type request[K comparable, V any] struct {
	op       opCode
	key      K
	value    V
	owner    *Owner
	w        *waiter[V]
	failFast bool          // opReg: fail immediately instead of queueing
	ack      chan struct{} // opCancel: signalled once settled
}

// promotion describes the outcome of releasing an exclusive entry:
// at most one waiter promoted, plus any dead-owner waiters dropped
// while scanning for it.
type promotion[V any] struct {
	promoted *waiter[V]
	dropped  []*waiter[V]
}

// keyPromotion pairs a promotion with the key it happened on, for
// purges that release several keys in one step.
type keyPromotion[K comparable, V any] struct {
	key  K
	prom promotion[V]
}

// run is the coordinator loop: the only goroutine that mutates the
// tables. It parks suspended callers and immediately continues serving
// other requests; it never blocks on a caller.
func (r *Registry[K, V]) run() {
	defer close(r.done)
	for {
		// Owner purges jump the queue: a termination must be applied
		// before any request issued after the signal is served.
		select {
		case o := <-r.purgeCh:
			r.applyPurge(o)
			continue
		default:
		}

		select {
		case o := <-r.purgeCh:
			r.applyPurge(o)
		case req := <-r.reqCh:
			r.apply(req)
		case <-r.stopCh:
			r.shutdown()
			return
		}
	}
}

func (r *Registry[K, V]) apply(req request[K, V]) {
	r.cfg.metrics.RecordRequest(context.Background(), req.op.String())

	switch req.op {
	case opPut:
		r.applyPut(req)
	case opDel:
		r.applyDel(req)
	case opDelAll:
		r.applyPurge(req.owner)
	case opReg:
		r.applyReg(req)
	case opWaitPut:
		r.applyWaitPut(req)
	case opWaitDel:
		r.applyWaitDel(req)
	case opCancel:
		r.applyCancel(req)
	default:
		// Never terminate on bad input: that would drop every pending
		// waiter service-wide.
		observability.LogUnknownRequest(r.cfg.logger, req.op.String())
	}
}

// ---------------------------------------------------------------------------
// Mutations (each runs as one indivisible step relative to other requests)
// ---------------------------------------------------------------------------

func (r *Registry[K, V]) applyPut(req request[K, V]) {
	ctx := context.Background()

	r.mu.Lock()
	entries := r.names[req.key]
	replaced := false
	for i := range entries {
		if entries[i].kind == KindValue && entries[i].owner == req.owner {
			entries[i].value = req.value
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry[V]{kind: KindValue, value: req.value, owner: req.owner})
		r.indexLocked(req.owner, KindValue, req.key)
	}
	var woken []*waiter[V]
	entries = takeWaiters(entries, KindWaitPut, &woken)
	r.storeLocked(req.key, entries)
	r.watchLocked(req.owner)
	r.mu.Unlock()

	for _, w := range woken {
		w.reply(waitResult[V]{granted: true, value: req.value, owner: req.owner})
	}
	if len(woken) > 0 {
		r.cfg.metrics.AddWaiters(ctx, -len(woken))
	}
	r.cfg.metrics.RecordRegistration(ctx, KindValue.String())
	r.emit(event.TypePut, req.key, req.value, req.owner.ID())
}

func (r *Registry[K, V]) applyDel(req request[K, V]) {
	ctx := context.Background()

	r.mu.Lock()
	entries, ok := r.names[req.key]
	if !ok {
		r.mu.Unlock()
		return
	}

	removedValue := false
	removedExclusive := false
	n := 0
	for _, e := range entries {
		switch {
		case e.kind == KindValue && e.owner == req.owner:
			removedValue = true
			r.unindexLocked(req.owner, KindValue, req.key)
		case e.kind == KindExclusive && e.owner == req.owner:
			removedExclusive = true
			r.unindexLocked(req.owner, KindExclusive, req.key)
		default:
			entries[n] = e
			n++
		}
	}
	clearTail(entries, n)
	entries = entries[:n]

	var prom promotion[V]
	if removedExclusive {
		entries, prom = r.promoteLocked(req.key, entries)
	}
	var woken []*waiter[V]
	if removedValue && !hasKind(entries, KindValue) {
		entries = takeWaiters(entries, KindWaitDel, &woken)
	}
	r.storeLocked(req.key, entries)
	r.mu.Unlock()

	for _, w := range woken {
		w.reply(waitResult[V]{granted: true})
	}
	if len(woken) > 0 {
		r.cfg.metrics.AddWaiters(ctx, -len(woken))
	}
	if removedValue {
		r.emit(event.TypeDel, req.key, nil, req.owner.ID())
	}
	if removedExclusive {
		r.emit(event.TypeReleased, req.key, nil, req.owner.ID())
	}
	r.finishPromotion(req.key, prom)
}

func (r *Registry[K, V]) applyReg(req request[K, V]) {
	ctx := context.Background()

	r.mu.Lock()
	entries := r.names[req.key]
	var ex *entry[V]
	for i := range entries {
		if entries[i].kind == KindExclusive {
			ex = &entries[i]
			break
		}
	}

	switch {
	case ex == nil:
		entries = append(entries, entry[V]{kind: KindExclusive, value: req.value, owner: req.owner})
		r.indexLocked(req.owner, KindExclusive, req.key)
		r.storeLocked(req.key, entries)
		r.watchLocked(req.owner)
		r.mu.Unlock()

		req.w.reply(waitResult[V]{granted: true})
		r.cfg.metrics.RecordRegistration(ctx, KindExclusive.String())
		r.emit(event.TypeGranted, req.key, req.value, req.owner.ID())

	case ex.owner == req.owner:
		// Re-registration by the current holder refreshes the value;
		// no duplicate entry is created.
		ex.value = req.value
		r.mu.Unlock()
		req.w.reply(waitResult[V]{granted: true})

	case req.failFast:
		holder := ex.owner
		r.mu.Unlock()
		req.w.reply(waitResult[V]{granted: false, holder: holder})

	default:
		// Tail of the key's waiter queue; promotion always takes the
		// head, so competing waiters are served in arrival order.
		entries = append(entries, entry[V]{kind: KindWaitHandover, owner: req.owner, w: req.w})
		r.indexLocked(req.owner, KindWaitHandover, req.key)
		r.storeLocked(req.key, entries)
		r.watchLocked(req.owner)
		r.mu.Unlock()
		r.cfg.metrics.AddWaiters(ctx, 1)
	}
}

func (r *Registry[K, V]) applyWaitPut(req request[K, V]) {
	r.mu.Lock()
	entries := r.names[req.key]
	for _, e := range entries {
		if e.kind == KindValue {
			value, owner := e.value, e.owner
			r.mu.Unlock()
			req.w.reply(waitResult[V]{granted: true, value: value, owner: owner})
			return
		}
	}
	entries = append(entries, entry[V]{kind: KindWaitPut, w: req.w})
	r.storeLocked(req.key, entries)
	r.mu.Unlock()
	r.cfg.metrics.AddWaiters(context.Background(), 1)
}

func (r *Registry[K, V]) applyWaitDel(req request[K, V]) {
	r.mu.Lock()
	entries := r.names[req.key]
	if !hasKind(entries, KindValue) {
		r.mu.Unlock()
		req.w.reply(waitResult[V]{granted: true})
		return
	}
	entries = append(entries, entry[V]{kind: KindWaitDel, w: req.w})
	r.storeLocked(req.key, entries)
	r.mu.Unlock()
	r.cfg.metrics.AddWaiters(context.Background(), 1)
}

func (r *Registry[K, V]) applyCancel(req request[K, V]) {
	ctx := context.Background()
	w := req.w

	r.mu.Lock()
	entries := r.names[req.key]
	removedWaiter := false
	revokedOwner := ""
	var prom promotion[V]
	for i := range entries {
		e := entries[i]
		if e.w == w {
			// Still parked: remove it so it can never be promoted
			// after its deadline.
			if e.kind == KindWaitHandover {
				r.unindexLocked(e.owner, KindWaitHandover, req.key)
			}
			entries = removeAt(entries, i)
			removedWaiter = true
			break
		}
		if e.kind == KindExclusive && e.originGen == w.gen {
			// The grant raced the deadline. The caller never observed
			// success, so roll it back and hand the key to the next
			// waiter as if the grant had not happened.
			r.unindexLocked(e.owner, KindExclusive, req.key)
			revokedOwner = e.owner.ID()
			entries = removeAt(entries, i)
			entries, prom = r.promoteLocked(req.key, entries)
			break
		}
	}
	r.storeLocked(req.key, entries)
	r.mu.Unlock()

	if removedWaiter {
		r.cfg.metrics.AddWaiters(ctx, -1)
	}
	if revokedOwner != "" {
		observability.LogGrantRevoked(r.cfg.logger, config.Str(req.key), revokedOwner)
		r.emit(event.TypeRevoked, req.key, nil, revokedOwner)
	}
	r.finishPromotion(req.key, prom)

	if req.ack != nil {
		req.ack <- struct{}{}
	}
}

// applyPurge removes every entry held by an owner: value entries,
// the exclusive entry (triggering handover), and parked handover
// waiters. Invoked for DelAll and for owner termination.
func (r *Registry[K, V]) applyPurge(o *Owner) {
	if o == nil {
		return
	}
	ctx := context.Background()

	r.mu.Lock()
	// A terminated owner is done for good: stop tracking its handle so
	// churning owners don't accumulate. After DelAll the owner is still
	// live and its watch goroutine still running, so the entry stays.
	if o.Terminated() {
		delete(r.watched, o)
	}
	idx, ok := r.owners[o]
	if !ok {
		r.mu.Unlock()
		return
	}

	seen := make(map[K]struct{}, len(idx))
	var promotions []keyPromotion[K, V]
	var delWoken []*waiter[V]
	var cancelled []*waiter[V]
	removed := 0

	for ik := range idx {
		if _, dup := seen[ik.key]; dup {
			continue
		}
		seen[ik.key] = struct{}{}

		entries := r.names[ik.key]
		removedValue := false
		removedExclusive := false
		n := 0
		for _, e := range entries {
			if e.owner == o {
				removed++
				switch e.kind {
				case KindValue:
					removedValue = true
				case KindExclusive:
					removedExclusive = true
				case KindWaitHandover:
					cancelled = append(cancelled, e.w)
				}
				continue
			}
			entries[n] = e
			n++
		}
		clearTail(entries, n)
		entries = entries[:n]

		if removedExclusive {
			var prom promotion[V]
			entries, prom = r.promoteLocked(ik.key, entries)
			if prom.promoted != nil || len(prom.dropped) > 0 {
				promotions = append(promotions, keyPromotion[K, V]{key: ik.key, prom: prom})
			}
		}
		if removedValue && !hasKind(entries, KindValue) {
			entries = takeWaiters(entries, KindWaitDel, &delWoken)
		}
		r.storeLocked(ik.key, entries)
	}
	delete(r.owners, o)
	r.cfg.metrics.AddOwners(ctx, -1)
	r.mu.Unlock()

	observability.LogPurge(r.cfg.logger, o.ID(), removed)
	r.cfg.metrics.RecordPurge(ctx, removed)
	r.emit(event.TypePurged, nil, nil, o.ID())

	for _, w := range cancelled {
		w.reply(waitResult[V]{purged: true})
	}
	for _, w := range delWoken {
		w.reply(waitResult[V]{granted: true})
	}
	if delta := len(cancelled) + len(delWoken); delta > 0 {
		r.cfg.metrics.AddWaiters(ctx, -delta)
	}
	for _, kp := range promotions {
		r.finishPromotion(kp.key, kp.prom)
	}
}

// shutdown resolves every parked waiter with a stopped result before
// the registry reports done.
func (r *Registry[K, V]) shutdown() {
	r.mu.Lock()
	parked := 0
	for key, entries := range r.names {
		n := 0
		for _, e := range entries {
			if e.w != nil {
				e.w.reply(waitResult[V]{stopped: true})
				parked++
				if e.kind == KindWaitHandover {
					r.unindexLocked(e.owner, KindWaitHandover, key)
				}
				continue
			}
			entries[n] = e
			n++
		}
		clearTail(entries, n)
		r.storeLocked(key, entries[:n])
	}
	r.mu.Unlock()

	if parked > 0 {
		r.cfg.metrics.AddWaiters(context.Background(), -parked)
	}
	observability.LogRegistryStop(r.cfg.logger, parked)
}

// ---------------------------------------------------------------------------
// Helpers (Locked suffix: caller holds r.mu)
// ---------------------------------------------------------------------------

// promoteLocked promotes the head of the key's handover queue to an
// exclusive entry, skipping (and dropping) waiters whose owner has
// already terminated.
func (r *Registry[K, V]) promoteLocked(key K, entries []entry[V]) ([]entry[V], promotion[V]) {
	var prom promotion[V]
	for i := 0; i < len(entries); {
		e := entries[i]
		if e.kind != KindWaitHandover {
			i++
			continue
		}
		if e.owner.Terminated() {
			r.unindexLocked(e.owner, KindWaitHandover, key)
			entries = removeAt(entries, i)
			prom.dropped = append(prom.dropped, e.w)
			continue
		}
		r.unindexLocked(e.owner, KindWaitHandover, key)
		entries = removeAt(entries, i)
		entries = append(entries, entry[V]{
			kind:      KindExclusive,
			value:     e.w.value,
			owner:     e.owner,
			originGen: e.w.gen,
		})
		r.indexLocked(e.owner, KindExclusive, key)
		prom.promoted = e.w
		break
	}
	return entries, prom
}

// finishPromotion delivers replies and telemetry for a promotion,
// outside the table lock.
func (r *Registry[K, V]) finishPromotion(key K, prom promotion[V]) {
	ctx := context.Background()

	for _, w := range prom.dropped {
		w.reply(waitResult[V]{purged: true})
	}
	if delta := len(prom.dropped); delta > 0 {
		r.cfg.metrics.AddWaiters(ctx, -delta)
	}
	if prom.promoted == nil {
		return
	}

	w := prom.promoted
	w.reply(waitResult[V]{granted: true})
	r.cfg.metrics.AddWaiters(ctx, -1)
	r.cfg.metrics.RecordRegistration(ctx, KindExclusive.String())
	observability.LogHandover(r.cfg.logger, config.Str(key), w.owner.ID())
	r.emit(event.TypeHandover, key, w.value, w.owner.ID())
}

func (r *Registry[K, V]) indexLocked(o *Owner, kind Kind, key K) {
	idx, ok := r.owners[o]
	if !ok {
		idx = make(map[indexKey[K]]struct{})
		r.owners[o] = idx
		r.cfg.metrics.AddOwners(context.Background(), 1)
	}
	idx[indexKey[K]{kind: kind, key: key}] = struct{}{}
}

func (r *Registry[K, V]) unindexLocked(o *Owner, kind Kind, key K) {
	idx, ok := r.owners[o]
	if !ok {
		return
	}
	delete(idx, indexKey[K]{kind: kind, key: key})
	if len(idx) == 0 {
		delete(r.owners, o)
		r.cfg.metrics.AddOwners(context.Background(), -1)
	}
}

// storeLocked writes a key's record back, dropping empty records so
// unused keys don't accumulate.
func (r *Registry[K, V]) storeLocked(key K, entries []entry[V]) {
	if len(entries) == 0 {
		delete(r.names, key)
		return
	}
	r.names[key] = entries
}

// watchLocked begins observing an owner's termination, once.
func (r *Registry[K, V]) watchLocked(o *Owner) {
	if _, ok := r.watched[o]; ok {
		return
	}
	r.watched[o] = struct{}{}
	go r.watch(o)
}

func (r *Registry[K, V]) watch(o *Owner) {
	select {
	case <-o.Done():
		select {
		case r.purgeCh <- o:
		case <-r.stopCh:
		}
	case <-r.stopCh:
	}
}

// emit publishes an event and appends a journal record for an applied
// transition. Both are optional and neither can fail the transition.
func (r *Registry[K, V]) emit(typ event.Type, key any, value any, ownerID string) {
	if r.cfg.bus == nil && r.cfg.journal == nil {
		return
	}
	evt := event.New(typ, key, value, ownerID)
	if r.cfg.bus != nil {
		r.cfg.bus.Publish(evt)
	}
	if r.cfg.journal != nil {
		err := r.cfg.journal.Append(journal.Record{
			ID:      evt.ID,
			Type:    string(evt.Type),
			Key:     config.Str(key),
			OwnerID: ownerID,
			Value:   config.Str(value),
			Time:    evt.Time,
		})
		if err != nil {
			observability.LogJournalError(r.cfg.logger, err)
		}
	}
}

// takeWaiters removes all entries of the given pending kind, appending
// their waiters to out and reusing the backing array.
func takeWaiters[V any](entries []entry[V], kind Kind, out *[]*waiter[V]) []entry[V] {
	n := 0
	for _, e := range entries {
		if e.kind == kind {
			*out = append(*out, e.w)
			continue
		}
		entries[n] = e
		n++
	}
	clearTail(entries, n)
	return entries[:n]
}

func hasKind[V any](entries []entry[V], kind Kind) bool {
	for _, e := range entries {
		if e.kind == kind {
			return true
		}
	}
	return false
}

// removeAt removes the element at i preserving order, reusing the
// backing array.
func removeAt[V any](entries []entry[V], i int) []entry[V] {
	copy(entries[i:], entries[i+1:])
	entries[len(entries)-1] = entry[V]{} // avoid holding waiter refs
	return entries[:len(entries)-1]
}

// clearTail zeroes trailing elements after an in-place filter to avoid
// holding waiter references.
func clearTail[V any](entries []entry[V], n int) {
	for i := n; i < len(entries); i++ {
		entries[i] = entry[V]{}
	}
}
