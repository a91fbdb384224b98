// Package sqlstore centralizes the embedded-SQLite connection setup shared
// by the ID store, upload store, and conversion cache: WAL mode, a 30s
// busy timeout, and a single *sql.DB per file opened with
// modernc.org/sqlite (pure Go, no cgo).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// BusyTimeout is the SQL busy timeout applied to every opened database.
const BusyTimeout = 30 * time.Second

// Open opens (creating parent directories and the file if needed) a
// WAL-mode SQLite database at path with the shared busy timeout applied.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: create dir %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}

	// A single writer connection at a time lets us issue a real "BEGIN
	// IMMEDIATE" per Tx below without a second connection racing ahead of
	// it; readers still proceed concurrently under WAL, and across
	// processes SQLite's own locking provides the serialization.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: set WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", BusyTimeout.Milliseconds())); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: set busy_timeout: %w", err)
	}

	return db, nil
}

// Tx wraps a single SQLite connection holding a BEGIN IMMEDIATE
// transaction. database/sql's *sql.Tx always issues a plain BEGIN under
// the hood, which only acquires SQLite's write lock lazily on first
// write; BEGIN IMMEDIATE acquires it up front, which is what makes ID
// assignment and upload claims linearizable under concurrent writers.
// We get that by borrowing a raw *sql.Conn and issuing the BEGIN
// ourselves.
type Tx struct {
	conn *sql.Conn
	done bool
}

// BeginImmediate starts a write transaction via BEGIN IMMEDIATE.
func BeginImmediate(ctx context.Context, db *sql.DB) (*Tx, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: begin immediate: %w", err)
	}
	return &Tx{conn: conn}, nil
}

// ExecContext runs a statement within the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query within the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query within the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.conn.QueryRowContext(ctx, query, args...)
}

// Commit commits the transaction and releases the connection.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	_, err := t.conn.ExecContext(ctx, "COMMIT")
	t.conn.Close()
	return err
}

// Rollback rolls back the transaction and releases the connection. Safe
// to call after a successful Commit (no-op).
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	_, err := t.conn.ExecContext(ctx, "ROLLBACK")
	t.conn.Close()
	return err
}
