package namereg

// Kind identifies what a registration entry represents.
// A key's record holds live registrations and parked waiters in one
// ordered list; waiters keep their arrival position, which is what
// makes exclusive handover strictly FIFO.
type Kind uint8

// Entry kinds.
const (
	// KindValue is a multi-owner registration. Any number of owners may
	// hold a KindValue entry under the same key.
	KindValue Kind = iota

	// KindExclusive is a single-owner registration. At most one
	// KindExclusive entry exists per key at any instant.
	KindExclusive

	// KindWaitPut is a caller parked until a value registration appears.
	KindWaitPut

	// KindWaitDel is a caller parked until the last value registration
	// is removed.
	KindWaitDel

	// KindWaitHandover is a caller parked until the exclusive
	// registration is released and handed over to it.
	KindWaitHandover
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindExclusive:
		return "exclusive"
	case KindWaitPut:
		return "wait-put"
	case KindWaitDel:
		return "wait-del"
	case KindWaitHandover:
		return "wait-handover"
	default:
		return "unknown"
	}
}

// Registration is a snapshot of one live (value, owner) pair.
type Registration[V any] struct {
	Value V
	Owner *Owner
}

// OwnerEntry describes one entry held by an owner, as seen by
// FoldByOwner.
type OwnerEntry[K comparable] struct {
	Kind Kind
	Key  K
}

// indexKey is the owner table index: one bit of reverse lookup per
// (kind, key) pair an owner holds.
type indexKey[K comparable] struct {
	kind Kind
	key  K
}

// entry is one element of a key's record. For live registrations
// (KindValue, KindExclusive) value and owner are set. For parked
// waiters w is set; owner is the waiter's owner for KindWaitHandover
// and nil for KindWaitPut/KindWaitDel, which carry no owner handle.
type entry[V any] struct {
	kind  Kind
	value V
	owner *Owner
	w     *waiter[V]

	// originGen records, for a KindExclusive entry installed by
	// promotion, the generation id of the waiter it was promoted from.
	// A timed-out caller uses it to roll the grant back.
	originGen string
}

// waitResult is the single message a parked caller receives.
type waitResult[V any] struct {
	granted bool
	holder  *Owner // current exclusive holder, fail-fast conflict only
	value   V      // wait-put: value that appeared
	owner   *Owner // wait-put: owner of that value
	purged  bool   // waiter discarded because its owner was purged
	stopped bool   // registry shut down
}

// waiter is a parked caller: a buffered reply destination plus a
// generation id checked at promotion and cancellation time, so a
// waiter whose deadline has passed can never be promoted afterwards.
type waiter[V any] struct {
	gen   string
	owner *Owner // handover only
	value V      // handover: value installed on promotion
	res   chan waitResult[V]
}

func newWaiter[V any](owner *Owner, value V) *waiter[V] {
	return &waiter[V]{
		gen:   newGen(),
		owner: owner,
		value: value,
		res:   make(chan waitResult[V], 1),
	}
}

// reply delivers a result without ever blocking the coordinator.
// The channel is buffered and each waiter is resolved at most once.
func (w *waiter[V]) reply(res waitResult[V]) {
	select {
	case w.res <- res:
	default:
	}
}
