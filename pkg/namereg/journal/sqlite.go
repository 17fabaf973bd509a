package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists the journal to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite journal store.
// The path should be a file path (e.g., "./namereg-journal.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transitions (
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			key TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			value TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transitions_key
		ON transitions(key)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create key index: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_transitions_owner
		ON transitions(owner_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create owner index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO transitions (id, type, key, owner_id, value, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Type, rec.Key, rec.OwnerID, rec.Value,
		rec.Time.UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ListByKey implements Store.
func (s *SQLiteStore) ListByKey(key string) ([]Record, error) {
	return s.list(`
		SELECT id, type, key, owner_id, value, timestamp
		FROM transitions
		WHERE key = ?
		ORDER BY rowid
	`, key)
}

// ListByOwner implements Store.
func (s *SQLiteStore) ListByOwner(ownerID string) ([]Record, error) {
	return s.list(`
		SELECT id, type, key, owner_id, value, timestamp
		FROM transitions
		WHERE owner_id = ?
		ORDER BY rowid
	`, ownerID)
}

func (s *SQLiteStore) list(query string, arg any) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		var timestamp string
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Key, &rec.OwnerID, &rec.Value, &timestamp); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Time, _ = time.Parse(time.RFC3339Nano, timestamp)
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return out, nil
}

// Prune implements Store.
func (s *SQLiteStore) Prune(before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		DELETE FROM transitions WHERE timestamp < ?
	`, before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("prune records: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
