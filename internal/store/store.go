// Package store executes compiled featherlog statements against SQLite.
// A Store owns the database handle and the relation catalog; all algebra
// operations run inside a scoped Context obtained from Store.Do.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"featherlog/internal/config"
	"featherlog/internal/datalog"
	"featherlog/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// catalogTable persistently records every declared relation: its name,
// kind (base or derived) and column schema. It backs name-collision
// detection across contexts and across re-opens of the same database.
// Base and derived tables share the catalog's single namespace.
const catalogTable = "featherlog_catalog"

const catalogDDL = `
CREATE TABLE IF NOT EXISTS featherlog_catalog (
	name TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	columns TEXT NOT NULL
)`

// Store wraps the backing SQLite database. It is safe for use from
// multiple goroutines only in the sense that contexts are serialized; the
// fixpoint core itself is single-threaded by design.
type Store struct {
	db        *sql.DB
	mu        sync.Mutex
	path      string
	maxPasses int

	// relations caches the catalog. Guarded by mu; updated only after a
	// declaring transaction commits.
	relations map[string]*datalog.Relation
}

// Open initializes the SQLite database at the given path with default
// configuration. Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	return OpenWithConfig(path, config.DefaultConfig())
}

// OpenWithConfig initializes the SQLite database at the given path.
func OpenWithConfig(path string, cfg *config.Config) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "OpenStore")
	defer timer.Stop()

	logging.Store("Opening store at path: %s", path)

	if !isMemoryPath(path) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busyTimeout := cfg.Database.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout)); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if !isMemoryPath(path) {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
		if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
			logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
		}
	}

	maxPasses := cfg.Engine.MaxPasses
	if maxPasses <= 0 {
		maxPasses = 1000
	}

	s := &Store{
		db:        db,
		path:      path,
		maxPasses: maxPasses,
		relations: make(map[string]*datalog.Relation),
	}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize catalog: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("Store open (catalog: %d relations)", len(s.relations))
	return s, nil
}

// initialize creates the catalog table and rehydrates the relation cache.
func (s *Store) initialize() error {
	if _, err := s.db.Exec(catalogDDL); err != nil {
		return fmt.Errorf("failed to create catalog table: %w", err)
	}

	rows, err := s.db.Query("SELECT name, kind, columns FROM " + catalogTable)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind, colsJSON string
		if err := rows.Scan(&name, &kind, &colsJSON); err != nil {
			return fmt.Errorf("failed to scan catalog row: %w", err)
		}
		var cols []datalog.Column
		if err := json.Unmarshal([]byte(colsJSON), &cols); err != nil {
			return fmt.Errorf("corrupt catalog entry for %q: %w", name, err)
		}
		rel, err := rebuildRelation(name, kind, cols)
		if err != nil {
			return err
		}
		s.relations[name] = rel
	}
	return rows.Err()
}

func rebuildRelation(name, kind string, cols []datalog.Column) (*datalog.Relation, error) {
	switch kind {
	case "base":
		return datalog.NewRelation(name, cols...)
	case "derived":
		return datalog.NewRelationSet(name, cols...)
	default:
		return nil, fmt.Errorf("corrupt catalog entry for %q: unknown kind %q", name, kind)
	}
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// MaxPasses returns the configured fixpoint pass bound.
func (s *Store) MaxPasses() int { return s.maxPasses }

// Relation returns the cataloged relation with the given name, if any.
func (s *Store) Relation(name string) (*datalog.Relation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[name]
	return rel, ok
}

// Stats returns per-relation row counts for every cataloged relation.
func (s *Store) Stats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Stats")
	defer timer.Stop()

	s.mu.Lock()
	names := make([]string, 0, len(s.relations))
	for name := range s.relations {
		names = append(names, name)
	}
	s.mu.Unlock()

	stats := make(map[string]int64, len(names))
	for _, name := range names {
		var count int64
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + name).Scan(&count)
		if err != nil {
			logging.StoreDebug("Count for %s failed (table may not exist yet): %v", name, err)
			continue
		}
		stats[name] = count
	}
	return stats, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store database connection")
	return s.db.Close()
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
