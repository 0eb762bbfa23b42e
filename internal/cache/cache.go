// Package cache provides a time-bounded key-value store for enrichment
// payloads, persisted in SQLite so lookups survive restarts.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the injected key-value capability the enrichment service depends
// on. Implementations expire entries after a retention window; stale entries
// are purged on read, not proactively.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, payload []byte, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

// SQLite is the Store implementation backed by a local SQLite file.
type SQLite struct {
	conn *sql.DB
	now  func() time.Time
}

// Verify *SQLite satisfies Store at compile time.
var _ Store = (*SQLite)(nil)

// Open creates (if needed) and opens the cache database at path.
func Open(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS enrichment_cache (
			key        TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}

	return &SQLite{conn: conn, now: time.Now}, nil
}

// Get returns the payload for key if present and unexpired. An expired entry
// is deleted and reported as a miss.
func (s *SQLite) Get(key string) ([]byte, bool, error) {
	var payload []byte
	var expiresAt int64
	err := s.conn.QueryRow(
		`SELECT payload, expires_at FROM enrichment_cache WHERE key = ?`, key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	if s.now().UnixMilli() > expiresAt {
		if err := s.Delete(key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return payload, true, nil
}

// Set stores payload under key with the given retention window.
func (s *SQLite) Set(key string, payload []byte, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl).UnixMilli()
	_, err := s.conn.Exec(`
		INSERT INTO enrichment_cache (key, payload, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload    = excluded.payload,
			expires_at = excluded.expires_at
	`, key, payload, expiresAt)
	if err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Delete evicts one entry.
func (s *SQLite) Delete(key string) error {
	if _, err := s.conn.Exec(`DELETE FROM enrichment_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
