// Package upload implements the upload coordinator:
// ensuring each (image ID, terminal ID) pair is, from the terminal's
// point of view, in exactly one of {no record, UPLOADING, UPLOADED,
// DIRTY}, serializing concurrent attempts to upload the same ID, and
// tracking per-(ID, terminal) freshness so re-displays skip
// re-transmission.
package upload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kittyplace/imgplace/pkg/ikerr"
	"github.com/kittyplace/imgplace/pkg/sqlstore"
)

// Status is an upload record's lifecycle state.
type Status string

const (
	StatusUploading Status = "UPLOADING"
	StatusUploaded  Status = "UPLOADED"
	StatusDirty     Status = "DIRTY"
)

// Record is one UploadRecord row: a durable statement "terminal T has
// data for image ID I in state S at time T0 with description D."
type Record struct {
	ImageID     uint32
	TerminalID  string
	UploadTime  time.Time
	SizeBytes   int64
	Status      Status
	Description string
}

// Store is the durable per-(image ID, terminal ID) upload record
// table, sharing the session database file idstore.Store opened.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger attaches a structured logger; nil uses slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open opens (or creates) the session database at path and ensures the
// uploads table exists. Most callers share a single *sql.DB across
// idstore.Store and upload.Store via NewStore(idstoreInstance.DB())
// instead, since both tables live in the same session file.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sqlstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return NewStore(db, opts...)
}

// NewStore wraps an already-open database handle.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS uploads (
			image_id INTEGER NOT NULL,
			terminal_id TEXT NOT NULL,
			upload_time TIMESTAMP NOT NULL,
			size_bytes INTEGER NOT NULL,
			status TEXT NOT NULL,
			description TEXT NOT NULL,
			PRIMARY KEY (image_id, terminal_id)
		)`,
		`CREATE INDEX IF NOT EXISTS uploads_terminal_time ON uploads(terminal_id, upload_time)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("upload: ensure schema: %w", err)
		}
	}
	return nil
}

// Get returns the record for (id, terminalID), or NotFoundInDB.
func (s *Store) Get(ctx context.Context, id uint32, terminalID string) (Record, error) {
	return s.getTx(ctx, s.db, id, terminalID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) getTx(ctx context.Context, q querier, id uint32, terminalID string) (Record, error) {
	row := q.QueryRowContext(ctx,
		`SELECT image_id, terminal_id, upload_time, size_bytes, status, description FROM uploads WHERE image_id=? AND terminal_id=?`,
		int64(id), terminalID)
	var rec Record
	var rawID int64
	var status string
	if err := row.Scan(&rawID, &rec.TerminalID, &rec.UploadTime, &rec.SizeBytes, &status, &rec.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ikerr.New(ikerr.NotFoundInDB, "upload.Store.Get")
		}
		return Record{}, ikerr.Wrap(ikerr.IOError, "upload.Store.Get", err)
	}
	rec.ImageID = uint32(rawID)
	rec.Status = Status(status)
	return rec, nil
}

func (s *Store) upsertTx(ctx context.Context, q querier, rec Record) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO uploads (image_id, terminal_id, upload_time, size_bytes, status, description)
		 VALUES (?,?,?,?,?,?)
		 ON CONFLICT(image_id, terminal_id) DO UPDATE SET
		   upload_time=excluded.upload_time, size_bytes=excluded.size_bytes,
		   status=excluded.status, description=excluded.description`,
		int64(rec.ImageID), rec.TerminalID, rec.UploadTime, rec.SizeBytes, string(rec.Status), rec.Description)
	return err
}

// BytesAgo sums size_bytes of records newer than rec (inclusive) on
// the same terminal.
func (s *Store) BytesAgo(ctx context.Context, rec Record) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size_bytes) FROM uploads WHERE terminal_id=? AND upload_time>=?`,
		rec.TerminalID, rec.UploadTime).Scan(&total)
	if err != nil {
		return 0, ikerr.Wrap(ikerr.IOError, "upload.Store.BytesAgo", err)
	}
	return total.Int64, nil
}

// UploadsAgo counts records newer than rec (inclusive) on the same
// terminal.
func (s *Store) UploadsAgo(ctx context.Context, rec Record) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM uploads WHERE terminal_id=? AND upload_time>=?`,
		rec.TerminalID, rec.UploadTime).Scan(&n)
	if err != nil {
		return 0, ikerr.Wrap(ikerr.IOError, "upload.Store.UploadsAgo", err)
	}
	return n, nil
}

// MarkDirty forces an existing record's status to DIRTY, making the
// next display of the ID retransmit regardless of freshness.
func (s *Store) MarkDirty(ctx context.Context, id uint32, terminalID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE uploads SET status=? WHERE image_id=? AND terminal_id=?`,
		string(StatusDirty), int64(id), terminalID)
	if err != nil {
		return ikerr.Wrap(ikerr.IOError, "upload.Store.MarkDirty", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ikerr.New(ikerr.NotFoundInDB, "upload.Store.MarkDirty")
	}
	return nil
}

// Cleanup removes records older than the retention window.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	_, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE upload_time < ?`, cutoff)
	return ikerr.Wrap(ikerr.IOError, "upload.Store.Cleanup", err)
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
