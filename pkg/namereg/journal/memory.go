package journal

import (
	"sync"
	"time"
)

// MemoryStore keeps the journal in memory. Suitable for tests and for
// short-lived processes where the trail only needs to outlive the
// registry, not the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemoryStore creates a new in-memory journal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.records = append(s.records, rec)
	return nil
}

// ListByKey implements Store.
func (s *MemoryStore) ListByKey(key string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	out := []Record{}
	for _, rec := range s.records {
		if rec.Key == key {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListByOwner implements Store.
func (s *MemoryStore) ListByOwner(ownerID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	out := []Record{}
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	kept := s.records[:0]
	for _, rec := range s.records {
		if !rec.Time.Before(before) {
			kept = append(kept, rec)
		}
	}
	// Clear trailing records to avoid memory leak.
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = Record{}
	}
	s.records = kept
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
