// Package store persists dependency facts in an embedded SQLite database.
//
// The store is a single table of (servicename, dependency, version) rows with
// a uniqueness constraint over the full triple. Writes are insert-if-absent,
// so re-extracting a project never duplicates rows, and reads are full scans
// in insertion order.
//
// Architecture:
//   - Database file: dependencies.db by default, configurable per run
//   - Driver: ncruces/go-sqlite3 (WASM build, no cgo)
//   - WAL mode with a busy timeout for the occasional concurrent reader
//   - ":memory:" opens a private in-memory database for tests
//
// Every failure to open, read or write the database wraps ErrStoreUnavailable.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/svcdeps/svcdeps/internal/fact"
)

// ErrStoreUnavailable is returned when the fact database cannot be opened,
// read or written. The underlying cause is wrapped alongside it.
var ErrStoreUnavailable = errors.New("fact store unavailable")

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store wraps the SQLite connection holding the fact table.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
	closed bool
}

// Open opens (creating if needed) the fact database at path.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open("dependencies.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string, logger *log.Logger) (*Store, error) {
	return OpenContext(context.Background(), path, logger)
}

// OpenContext opens the fact database with context support.
// If logger is nil, a default logger writing to stderr is used.
func OpenContext(ctx context.Context, path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	memory := path == MemoryPath
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create database directory: %w", ErrStoreUnavailable, err)
		}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStoreUnavailable, err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrStoreUnavailable, err)
	}

	if memory {
		// Each pooled connection would otherwise see its own empty database.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(4)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &Store{
		conn:   conn,
		path:   path,
		logger: logger,
	}

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := s.conn.ExecContext(ctx, p); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%w: failed to apply %q: %w", ErrStoreUnavailable, p, err)
		}
	}

	if err := s.InitSchemaContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the location the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the connection. Calls on a closed
// store fail with ErrStoreUnavailable.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != MemoryPath {
		if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
		}
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// InitSchemaContext creates the fact table and its indexes. Idempotent.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS service_dependencies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		servicename TEXT NOT NULL,
		dependency TEXT NOT NULL,
		version TEXT NOT NULL DEFAULT '',
		UNIQUE(servicename, dependency, version)
	);

	CREATE INDEX IF NOT EXISTS idx_service_dependencies_dependency
	    ON service_dependencies(dependency);
	CREATE INDEX IF NOT EXISTS idx_service_dependencies_servicename
	    ON service_dependencies(servicename);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %w", ErrStoreUnavailable, err)
	}
	return nil
}

const insertFactQuery = `
	INSERT OR IGNORE INTO service_dependencies (servicename, dependency, version)
	VALUES (?, ?, ?)
`

// InsertFactIfAbsent records f unless the identical triple already exists.
// It reports whether a new row was written.
func (s *Store) InsertFactIfAbsent(ctx context.Context, f fact.Fact) (bool, error) {
	if err := f.Validate(); err != nil {
		return false, fmt.Errorf("invalid fact: %w", err)
	}

	res, err := s.conn.ExecContext(ctx, insertFactQuery, f.Service, f.Dependency, f.Version)
	if err != nil {
		return false, fmt.Errorf("%w: failed to insert fact %s: %w", ErrStoreUnavailable, f, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to read insert result: %w", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// InsertFacts records every fact in a single transaction and returns how
// many rows were new. Either all facts are applied or none are.
func (s *Store) InsertFacts(ctx context.Context, facts []fact.Fact) (int, error) {
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return 0, fmt.Errorf("invalid fact %s: %w", f, err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %w", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertFactQuery)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prepare insert: %w", ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, f := range facts {
		res, err := stmt.ExecContext(ctx, f.Service, f.Dependency, f.Version)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to insert fact %s: %w", ErrStoreUnavailable, f, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit transaction: %w", ErrStoreUnavailable, err)
	}

	s.logger.Printf("Inserted %d new fact(s) of %d", inserted, len(facts))
	return inserted, nil
}

// LoadAllFacts returns every fact in insertion order.
func (s *Store) LoadAllFacts(ctx context.Context) ([]fact.Fact, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT servicename, dependency, version
	FROM service_dependencies
	ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query facts: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	facts := []fact.Fact{}
	for rows.Next() {
		var f fact.Fact
		if err := rows.Scan(&f.Service, &f.Dependency, &f.Version); err != nil {
			return nil, fmt.Errorf("%w: failed to scan fact: %w", ErrStoreUnavailable, err)
		}
		facts = append(facts, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating facts: %w", ErrStoreUnavailable, err)
	}

	return facts, nil
}

// FactCount returns the number of stored facts.
func (s *Store) FactCount(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM service_dependencies").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get fact count: %w", ErrStoreUnavailable, err)
	}
	return count, nil
}

// ServiceCount returns the number of distinct services with recorded facts.
func (s *Store) ServiceCount(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(DISTINCT servicename) FROM service_dependencies").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get service count: %w", ErrStoreUnavailable, err)
	}
	return count, nil
}
