// Package convcache implements the conversion cache:
// given a source image and a target (exact dimensions or a byte-size
// budget), it returns a path to an on-disk artifact matching the
// target, creating and persisting it on a miss.
package convcache

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kittyplace/imgplace/pkg/ikerr"
	"github.com/kittyplace/imgplace/pkg/imaging"
	"github.com/kittyplace/imgplace/pkg/sqlstore"
)

// Store is the durable conversion cache for one cache_dir.
type Store struct {
	db       *sql.DB
	cacheDir string
	log      *slog.Logger
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

// Open opens (or creates) conversion_cache.db under cacheDir and ensures
// the artifact subdirectory tree and schema exist.
func Open(cacheDir string, opts ...Option) (*Store, error) {
	dbPath := filepath.Join(cacheDir, "conversion_cache.db")
	db, err := sqlstore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("convcache: %w", err)
	}
	s := &Store{db: db, cacheDir: cacheDir, log: slog.Default()}
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
		`CREATE TABLE IF NOT EXISTS entries (
			src_path TEXT NOT NULL,
			src_mtime INTEGER NOT NULL,
			dst_format TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL,
			artifact_path TEXT NOT NULL,
			atime INTEGER NOT NULL,
			PRIMARY KEY (src_path, src_mtime, dst_format, width, height)
		)`,
		`CREATE TABLE IF NOT EXISTS samples (
			src_path TEXT NOT NULL,
			src_mtime INTEGER NOT NULL,
			dst_format TEXT NOT NULL,
			area INTEGER NOT NULL,
			size_bytes INTEGER NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS samples_key ON samples(src_path, src_mtime, dst_format, ts)`,
		`CREATE INDEX IF NOT EXISTS entries_atime ON entries(atime)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("convcache: ensure schema: %w", err)
		}
	}
	return nil
}

// entryKey identifies one cache entry.
type entryKey struct {
	srcPath   string
	srcMtime  int64
	dstFormat string
	width     int
	height    int
}

// lookup returns an existing entry's artifact path and size, verifying
// the file still matches on disk; a stale row is deleted and treated as
// a miss.
func (s *Store) lookup(ctx context.Context, key entryKey) (artifactPath string, sizeBytes int64, hit bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT artifact_path, size_bytes FROM entries WHERE src_path=? AND src_mtime=? AND dst_format=? AND width=? AND height=?`,
		key.srcPath, key.srcMtime, key.dstFormat, key.width, key.height)
	if err := row.Scan(&artifactPath, &sizeBytes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", 0, false, nil
		}
		return "", 0, false, err
	}

	info, statErr := os.Stat(artifactPath)
	if statErr != nil || info.Size() != sizeBytes {
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM entries WHERE src_path=? AND src_mtime=? AND dst_format=? AND width=? AND height=?`,
			key.srcPath, key.srcMtime, key.dstFormat, key.width, key.height)
		return "", 0, false, nil
	}
	_, _ = s.db.ExecContext(ctx,
		`UPDATE entries SET atime=? WHERE src_path=? AND src_mtime=? AND dst_format=? AND width=? AND height=?`,
		time.Now().Unix(), key.srcPath, key.srcMtime, key.dstFormat, key.width, key.height)
	return artifactPath, sizeBytes, true, nil
}

// store inserts a new entry and writes its artifact file, or, if a
// concurrent writer already inserted an equivalent entry under the
// same key, discards data and reuses the existing row.
func (s *Store) store(ctx context.Context, key entryKey, data []byte) (artifactPath string, sizeBytes int64, err error) {
	candidatePath, err := s.newArtifactPath(key.dstFormat)
	if err != nil {
		return "", 0, err
	}

	tx, err := sqlstore.BeginImmediate(ctx, s.db)
	if err != nil {
		return "", 0, ikerr.Wrap(ikerr.IOError, "convcache.store", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO entries (src_path, src_mtime, dst_format, width, height, size_bytes, artifact_path, atime) VALUES (?,?,?,?,?,?,?,?)`,
		key.srcPath, key.srcMtime, key.dstFormat, key.width, key.height, len(data), candidatePath, now)
	if err != nil {
		return "", 0, ikerr.Wrap(ikerr.IOError, "convcache.store", err)
	}
	rows, _ := res.RowsAffected()

	if rows == 0 {
		// Another writer beat us to this key; reuse its row.
		var existingPath string
		var existingSize int64
		row := tx.QueryRowContext(ctx,
			`SELECT artifact_path, size_bytes FROM entries WHERE src_path=? AND src_mtime=? AND dst_format=? AND width=? AND height=?`,
			key.srcPath, key.srcMtime, key.dstFormat, key.width, key.height)
		if err := row.Scan(&existingPath, &existingSize); err != nil {
			return "", 0, ikerr.Wrap(ikerr.IOError, "convcache.store", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return "", 0, ikerr.Wrap(ikerr.IOError, "convcache.store", err)
		}
		return existingPath, existingSize, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return "", 0, ikerr.Wrap(ikerr.IOError, "convcache.store", err)
	}

	if err := os.MkdirAll(filepath.Dir(candidatePath), 0o755); err != nil {
		return "", 0, ikerr.Wrap(ikerr.IOError, "convcache.store", err)
	}
	if err := os.WriteFile(candidatePath, data, 0o644); err != nil {
		return "", 0, ikerr.Wrap(ikerr.IOError, "convcache.store", err)
	}
	return candidatePath, int64(len(data)), nil
}

// copyIntoCache copies srcPath verbatim into a new artifact slot, used
// when the requested dimensions and format already match the source.
func (s *Store) copyIntoCache(ctx context.Context, key entryKey, srcPath string) (artifactPath string, sizeBytes int64, err error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", 0, ikerr.Wrap(ikerr.IOError, "convcache.copyIntoCache", err)
	}
	return s.store(ctx, key, data)
}

// newArtifactPath generates a fresh <cache_dir>/<2-hex>/<30-hex>.<ext>
// path.
func (s *Store) newArtifactPath(format string) (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", ikerr.Wrap(ikerr.IOError, "convcache.newArtifactPath", err)
	}
	hexStr := hex.EncodeToString(raw[:])
	ext := format
	if f, err := imaging.ParseFormat(format); err == nil {
		ext = f.Ext()
	}
	return filepath.Join(s.cacheDir, hexStr[:2], fmt.Sprintf("%s.%s", hexStr[2:], ext)), nil
}

// sampleModel loads prior (area, size) samples for (srcPath, srcMtime,
// dstFormat), oldest first.
func (s *Store) sampleModel(ctx context.Context, key entryKey) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT area, size_bytes FROM samples WHERE src_path=? AND src_mtime=? AND dst_format=? ORDER BY ts ASC`,
		key.srcPath, key.srcMtime, key.dstFormat)
	if err != nil {
		return nil, ikerr.Wrap(ikerr.IOError, "convcache.sampleModel", err)
	}
	defer rows.Close()
	var out []Sample
	for rows.Next() {
		var smp Sample
		if err := rows.Scan(&smp.Area, &smp.SizeBytes); err != nil {
			return nil, ikerr.Wrap(ikerr.IOError, "convcache.sampleModel", err)
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

func (s *Store) saveSamples(ctx context.Context, key entryKey, samples []Sample, already int) error {
	now := time.Now().UnixNano()
	for i := already; i < len(samples); i++ {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO samples (src_path, src_mtime, dst_format, area, size_bytes, ts) VALUES (?,?,?,?,?,?)`,
			key.srcPath, key.srcMtime, key.dstFormat, samples[i].Area, samples[i].SizeBytes, now+int64(i)); err != nil {
			return ikerr.Wrap(ikerr.IOError, "convcache.saveSamples", err)
		}
	}
	return nil
}

// Cleanup deletes entries by ascending atime until both the image
// count and total size are within their targets, once either cap is
// exceeded. A zero cap is treated as unlimited.
func (s *Store) Cleanup(ctx context.Context, maxImages int, maxTotalSizeBytes int64, targetImages int, targetSizeBytes int64) error {
	if maxImages <= 0 {
		maxImages = int(^uint(0) >> 1)
	}
	if maxTotalSizeBytes <= 0 {
		maxTotalSizeBytes = int64(^uint64(0) >> 1)
	}

	var count int
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes),0) FROM entries`).Scan(&count, &total); err != nil {
		return ikerr.Wrap(ikerr.IOError, "convcache.Cleanup", err)
	}
	if count <= maxImages && total <= maxTotalSizeBytes {
		return nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT src_path, src_mtime, dst_format, width, height, size_bytes, artifact_path FROM entries ORDER BY atime ASC`)
	if err != nil {
		return ikerr.Wrap(ikerr.IOError, "convcache.Cleanup", err)
	}
	type row struct {
		key  entryKey
		size int64
		path string
	}
	var ordered []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key.srcPath, &r.key.srcMtime, &r.key.dstFormat, &r.key.width, &r.key.height, &r.size, &r.path); err != nil {
			rows.Close()
			return ikerr.Wrap(ikerr.IOError, "convcache.Cleanup", err)
		}
		ordered = append(ordered, r)
	}
	rows.Close()

	for _, r := range ordered {
		if count <= targetImages && total <= targetSizeBytes {
			break
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM entries WHERE src_path=? AND src_mtime=? AND dst_format=? AND width=? AND height=?`,
			r.key.srcPath, r.key.srcMtime, r.key.dstFormat, r.key.width, r.key.height); err != nil {
			return ikerr.Wrap(ikerr.IOError, "convcache.Cleanup", err)
		}
		_ = os.Remove(r.path)
		count--
		total -= r.size
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
