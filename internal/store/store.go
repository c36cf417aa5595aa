// Package store is the durable, deduplicated event log. It owns the
// schema lifecycle of a single SQLite file shared with read-only tools.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle. One ingesting instance per database is
// assumed; the mutex serializes cursor updates, batch inserts and sync
// marks between the ingestion and sync-worker goroutines.
type Store struct {
	db *sql.DB
	mu sync.Mutex

	userName string
}

// Open opens (creating if needed) the store read-write and brings the
// schema up to date before returning. Migrations are idempotent and keyed
// off the introspected table shape, so an interrupted run is safe to
// repeat.
func Open(dbPath, userName string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db, userName: userName}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.importLegacyState(filepath.Join(dir, "state.json")); err != nil {
		// One-time convenience, never worth failing startup over.
		log.Printf("warning: legacy state import: %v", err)
	}

	return s, nil
}

// OpenReadOnly opens an existing store for querying without touching the
// schema. This is the mode external tools use while ingestion runs.
func OpenReadOnly(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db read-only: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schemaEvents); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	if err := s.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if _, err := s.db.Exec(schemaIndexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	if _, err := s.db.Exec(schemaCursors); err != nil {
		return fmt.Errorf("create cursor table: %w", err)
	}
	if _, err := s.db.Exec(schemaSearch); err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	if err := s.populateSearchIndex(); err != nil {
		return fmt.Errorf("populate search index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Raw exposes the handle for read-side queries by external tools.
func (s *Store) Raw() *sql.DB {
	return s.db
}
