// Package db is the SQLite mirror of the markdown systems of record.
//
// The store is an embedded SQLite database in WAL mode. All access goes
// through one connection, so concurrent callers (watcher callbacks, the
// periodic full sync, HTTP and MCP triggers) are serialized by the pool.
//
// Tables and their column names are the compatibility surface for other
// readers of the database file:
//
//   - tasks, job_pipeline, content_pipeline, goals, cv_history: upserted by
//     natural key, never deleted
//   - memory_highlights: replaced per file_source on every sync
//   - daily_notes: one row per date
//   - sync_log: append-only audit of every per-file sync attempt
//
// Example:
//
//	store, err := db.Open(".mirror/mirror.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	if err := store.InitSchema(); err != nil {
//	    return err
//	}
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DefaultDriver is the pure-Go SQLite driver registered by ncruces/go-sqlite3.
const DefaultDriver = "sqlite3"

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("record not found")

// drivers maps supported database/sql driver names to DSN builders.
// Optional drivers add themselves from build-constrained files.
var drivers = map[string]func(path string) string{
	DefaultDriver: func(path string) string { return "file:" + path },
}

// Drivers returns the names of the drivers compiled into this binary.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DB wraps the mirror's database connection.
type DB struct {
	conn   *sqlx.DB
	path   string
	driver string
}

// Open opens (creating if needed) the database at path with the default
// driver. The caller must call Close.
func Open(path string) (*DB, error) {
	return OpenDriver(DefaultDriver, path)
}

// OpenDriver opens the database at path with a named driver from Drivers.
func OpenDriver(driver, path string) (*DB, error) {
	dsn, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q (available: %v)", driver, Drivers())
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sqlx.Open(driver, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: writers never contend with each other, and the
	// per-connection pragmas below apply to every query.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: path, driver: driver}

	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if err := db.pragma(context.Background(), p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

// pragma runs a PRAGMA statement, discarding the value some pragmas return.
func (db *DB) pragma(ctx context.Context, stmt string) error {
	rows, err := db.conn.QueryContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to run %q: %w", stmt, err)
	}
	for rows.Next() {
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to run %q: %w", stmt, err)
	}
	return rows.Err()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// RawDB returns the underlying *sql.DB.
func (db *DB) RawDB() *sql.DB {
	if db.conn == nil {
		return nil
	}
	return db.conn.DB
}

// Ping checks that the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return errors.New("database is closed")
	}
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the connection. Safe to call twice.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if err := db.pragma(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}
