// Package idstore implements the durable ID allocator: one SQLite
// table per idspace.FeatureSpace, holding rows (id, description,
// atime), with get/set/del operations serialized by a BEGIN IMMEDIATE
// write transaction per call.
package idstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/kittyplace/imgplace/pkg/idspace"
	"github.com/kittyplace/imgplace/pkg/ikerr"
	"github.com/kittyplace/imgplace/pkg/sqlstore"
)

// DefaultMaxIDsPerSubspace bounds how many rows a single subspace may
// hold before reclamation kicks in.
const DefaultMaxIDsPerSubspace = 1 << 20

// smallSubspaceCeiling bounds the "small subspace" allocation path
// (subspaces no larger than min(1024, cap) are enumerated in full).
const smallSubspaceCeiling = 1024

// rejectionSampleTries is the number of random probes tried per attempt
// in the large-subspace path before falling back to cleanup.
const rejectionSampleTries = 8

// cleanupFractions are the population targets (as a fraction of cap)
// tried in order when rejection sampling fails.
var cleanupFractions = []float64{0.75, 0.60, 0.50, 0}

// Store is the durable ID allocator for a single session database.
type Store struct {
	db                *sql.DB
	maxIDsPerSubspace int
	rng               *rand.Rand
	log               *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxIDsPerSubspace overrides DefaultMaxIDsPerSubspace.
func WithMaxIDsPerSubspace(n int) Option {
	return func(s *Store) { s.maxIDsPerSubspace = n }
}

// WithLogger attaches a structured logger; nil uses slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRand overrides the random source used for ID selection (tests only).
func WithRand(r *rand.Rand) Option {
	return func(s *Store) { s.rng = r }
}

// Open opens (or creates) the session database at path and ensures the
// four feature-space tables exist.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sqlstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("idstore: %w", err)
	}
	return NewStore(db, opts...)
}

// NewStore wraps an already-open database handle (shared with
// pkg/upload's uploads table) and ensures schema.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:                db,
		maxIDsPerSubspace: DefaultMaxIDsPerSubspace,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		log:               slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle so pkg/upload can share the same
// session database file.
func (s *Store) DB() *sql.DB { return s.db }

func tableName(fs idspace.FeatureSpace) string {
	switch fs {
	case idspace.Color8:
		return "ids_color8"
	case idspace.Color24:
		return "ids_color24"
	case idspace.Color8Plus4th:
		return "ids_color8_4th"
	case idspace.Color24Plus4th:
		return "ids_color24_4th"
	default:
		return "ids_unknown"
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, fs := range idspace.All {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			atime TIMESTAMP NOT NULL
		)`, tableName(fs))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("idstore: create table %s: %w", tableName(fs), err)
		}
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_description ON %s(description)`, tableName(fs), tableName(fs))
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("idstore: create index on %s: %w", tableName(fs), err)
		}
	}
	return nil
}

// GetID finds or assigns an ID for description within (fs, sub).
func (s *Store) GetID(ctx context.Context, description string, fs idspace.FeatureSpace, sub idspace.Subspace, updateAtime bool) (uint32, error) {
	tx, err := sqlstore.BeginImmediate(ctx, s.db)
	if err != nil {
		return 0, ikerr.Wrap(ikerr.IOError, "idstore.GetID", err)
	}
	defer tx.Rollback(ctx)

	table := tableName(fs)
	mask := fs.Mask(sub)
	maskedValue := fs.MaskedValue(sub)
	now := time.Now().UTC()

	// Lookup by description within the subspace first.
	if id, found, err := lookupByDescription(ctx, tx, table, description, mask, maskedValue); err != nil {
		return 0, ikerr.Wrap(ikerr.IOError, "idstore.GetID", err)
	} else if found {
		if updateAtime {
			if err := touchAtime(ctx, tx, table, id, now); err != nil {
				return 0, ikerr.Wrap(ikerr.IOError, "idstore.GetID", err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return 0, ikerr.Wrap(ikerr.IOError, "idstore.GetID", err)
		}
		return id, nil
	}

	n := fs.SubspaceSize(sub)
	if n == 0 {
		return 0, ikerr.New(ikerr.ExhaustedIDSpace, "idstore.GetID")
	}
	cap64 := uint64(s.maxIDsPerSubspace)
	ceiling := cap64
	if smallSubspaceCeiling < ceiling {
		ceiling = smallSubspaceCeiling
	}

	var id uint32
	if n <= ceiling {
		id, err = s.assignSmallSubspace(ctx, tx, table, fs, sub, description, now)
	} else {
		id, err = s.assignLargeSubspace(ctx, tx, table, fs, sub, description, now, cap64)
	}
	if err != nil {
		return 0, err
	}

	// Enforce max_ids_per_subspace: a fresh assignment that pushed the
	// subspace past the cap evicts its least-recently-touched rows, so
	// the rows present are always the cap-many newest assignments. The
	// row just written carries the newest atime and survives.
	if cap64 > 0 && cap64 < n {
		if err := s.cleanupLocked(ctx, tx, table, mask, maskedValue, int(cap64)); err != nil {
			return 0, ikerr.Wrap(ikerr.IOError, "idstore.GetID", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, ikerr.Wrap(ikerr.IOError, "idstore.GetID", err)
	}
	return id, nil
}

func lookupByDescription(ctx context.Context, tx *sqlstore.Tx, table, description string, mask, maskedValue uint32) (uint32, bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE description = ?", table), description)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var rawID int64
		if err := rows.Scan(&rawID); err != nil {
			return 0, false, err
		}
		id := uint32(rawID)
		if id&mask == maskedValue {
			return id, true, rows.Err()
		}
	}
	return 0, false, rows.Err()
}

func touchAtime(ctx context.Context, tx *sqlstore.Tx, table string, id uint32, now time.Time) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET atime = ? WHERE id = ?", table), now, int64(id))
	return err
}

func upsert(ctx context.Context, tx *sqlstore.Tx, table string, id uint32, description string, now time.Time) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, description, atime) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET description=excluded.description, atime=excluded.atime",
		table), int64(id), description, now)
	return err
}

func countInSubspace(ctx context.Context, tx *sqlstore.Tx, table string, mask, maskedValue uint32) (int, []uint32, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s", table))
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()
	var ids []uint32
	for rows.Next() {
		var rawID int64
		if err := rows.Scan(&rawID); err != nil {
			return 0, nil, err
		}
		id := uint32(rawID)
		if id&mask == maskedValue {
			ids = append(ids, id)
		}
	}
	return len(ids), ids, rows.Err()
}

func oldestInSubspace(ctx context.Context, tx *sqlstore.Tx, table string, mask, maskedValue uint32) (uint32, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s ORDER BY atime ASC", table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var rawID int64
		if err := rows.Scan(&rawID); err != nil {
			return 0, err
		}
		id := uint32(rawID)
		if id&mask == maskedValue {
			return id, rows.Err()
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("idstore: subspace unexpectedly empty")
}

// assignSmallSubspace enumerates the whole subspace: overwrite the
// oldest row when full, otherwise pick a free ID uniformly at random.
func (s *Store) assignSmallSubspace(ctx context.Context, tx *sqlstore.Tx, table string, fs idspace.FeatureSpace, sub idspace.Subspace, description string, now time.Time) (uint32, error) {
	mask := fs.Mask(sub)
	maskedValue := fs.MaskedValue(sub)
	n := fs.SubspaceSize(sub)

	count, existing, err := countInSubspace(ctx, tx, table, mask, maskedValue)
	if err != nil {
		return 0, ikerr.Wrap(ikerr.IOError, "idstore.assignSmallSubspace", err)
	}

	if uint64(count) >= n {
		id, err := oldestInSubspace(ctx, tx, table, mask, maskedValue)
		if err != nil {
			return 0, ikerr.Wrap(ikerr.IOError, "idstore.assignSmallSubspace", err)
		}
		if err := upsert(ctx, tx, table, id, description, now); err != nil {
			return 0, ikerr.Wrap(ikerr.IOError, "idstore.assignSmallSubspace", err)
		}
		return id, nil
	}

	used := make(map[uint32]bool, len(existing))
	for _, id := range existing {
		used[id] = true
	}

	var id uint32
	free := freeIDs(fs.AllIDs(sub), used)
	if len(free) == 0 {
		// Free set empty (shouldn't happen given count<n, but spec says
		// fall back to oldest by atime defensively).
		id, err = oldestInSubspace(ctx, tx, table, mask, maskedValue)
		if err != nil {
			return 0, ikerr.Wrap(ikerr.Internal, "idstore.assignSmallSubspace", err)
		}
	} else {
		id = free[s.rng.Intn(len(free))]
	}

	if err := upsert(ctx, tx, table, id, description, now); err != nil {
		return 0, ikerr.Wrap(ikerr.IOError, "idstore.assignSmallSubspace", err)
	}
	return id, nil
}

func freeIDs(all []uint32, used map[uint32]bool) []uint32 {
	free := make([]uint32, 0, len(all))
	for _, id := range all {
		if !used[id] {
			free = append(free, id)
		}
	}
	return free
}

// assignLargeSubspace rejection-samples candidate IDs, falling back to
// progressively more aggressive cleanups when sampling keeps colliding.
func (s *Store) assignLargeSubspace(ctx context.Context, tx *sqlstore.Tx, table string, fs idspace.FeatureSpace, sub idspace.Subspace, description string, now time.Time, cap64 uint64) (uint32, error) {
	mask := fs.Mask(sub)
	maskedValue := fs.MaskedValue(sub)

	for _, frac := range append([]float64{-1}, cleanupFractions...) {
		if frac >= 0 {
			target := int(float64(cap64) * frac)
			if err := s.cleanupLocked(ctx, tx, table, mask, maskedValue, target); err != nil {
				return 0, ikerr.Wrap(ikerr.IOError, "idstore.assignLargeSubspace", err)
			}
		}

		for try := 0; try < rejectionSampleTries; try++ {
			candidate := randomIDInSubspace(s.rng, fs, sub)
			exists, err := rowExists(ctx, tx, table, candidate)
			if err != nil {
				return 0, ikerr.Wrap(ikerr.IOError, "idstore.assignLargeSubspace", err)
			}
			if !exists {
				if err := upsert(ctx, tx, table, candidate, description, now); err != nil {
					return 0, ikerr.Wrap(ikerr.IOError, "idstore.assignLargeSubspace", err)
				}
				return candidate, nil
			}
		}
	}

	return 0, ikerr.New(ikerr.ExhaustedIDSpace, "idstore.assignLargeSubspace")
}

func rowExists(ctx context.Context, tx *sqlstore.Tx, table string, id uint32) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), int64(id)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// randomIDInSubspace draws a uniformly random candidate ID honoring fs's
// byte constraints and sub's fixed bits.
func randomIDInSubspace(rng *rand.Rand, fs idspace.FeatureSpace, sub idspace.Subspace) uint32 {
	for {
		id := rng.Uint32()
		mask := fs.Mask(sub)
		value := fs.MaskedValue(sub)
		id = (id &^ mask) | value

		if fs.ColorBits == 0 {
			id &= 0xFF000000 // only the 4th byte may be nonzero
		} else {
			if !fs.Uses4thByte {
				id &^= 0xFF000000
			} else if byte(id>>24) == 0 {
				id |= 1 << 24
			}
			if fs.ColorBits == 8 {
				id &^= 0x00FFFF00
			} else if byte(id>>8) == 0 && byte(id>>16) == 0 {
				id |= 1 << 8
			}
		}

		if id == 0 {
			continue
		}
		if fs.ContainsAndInSubspace(id, sub) {
			return id
		}
	}
}

// cleanupLocked keeps the maxIDs newest-atime rows within (table, mask,
// maskedValue) and deletes the rest, within the caller's transaction.
func (s *Store) cleanupLocked(ctx context.Context, tx *sqlstore.Tx, table string, mask, maskedValue uint32, maxIDs int) error {
	_, ids, err := countInSubspace(ctx, tx, table, mask, maskedValue)
	if err != nil {
		return err
	}
	if len(ids) <= maxIDs {
		return nil
	}

	type row struct {
		id    uint32
		atime time.Time
	}
	var rowsWithTime []row
	rs, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT id, atime FROM %s", table))
	if err != nil {
		return err
	}
	func() {
		defer rs.Close()
		for rs.Next() {
			var rawID int64
			var atime time.Time
			if err2 := rs.Scan(&rawID, &atime); err2 != nil {
				err = err2
				return
			}
			id := uint32(rawID)
			if id&mask == maskedValue {
				rowsWithTime = append(rowsWithTime, row{id, atime})
			}
		}
	}()
	if err != nil {
		return err
	}

	sort.Slice(rowsWithTime, func(i, j int) bool { return rowsWithTime[i].atime.After(rowsWithTime[j].atime) })
	for i := maxIDs; i < len(rowsWithTime); i++ {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), int64(rowsWithTime[i].id)); err != nil {
			return err
		}
	}
	return nil
}

// SetID unconditionally inserts or overwrites id's row (used by --force-id).
func (s *Store) SetID(ctx context.Context, id uint32, description string) error {
	fs := idspace.FromID(id)
	tx, err := sqlstore.BeginImmediate(ctx, s.db)
	if err != nil {
		return ikerr.Wrap(ikerr.IOError, "idstore.SetID", err)
	}
	defer tx.Rollback(ctx)
	if err := upsert(ctx, tx, tableName(fs), id, description, time.Now().UTC()); err != nil {
		return ikerr.Wrap(ikerr.IOError, "idstore.SetID", err)
	}
	return ikerr.Wrap(ikerr.IOError, "idstore.SetID", tx.Commit(ctx))
}

// DelID removes id's row, if any (forget).
func (s *Store) DelID(ctx context.Context, id uint32) error {
	fs := idspace.FromID(id)
	tx, err := sqlstore.BeginImmediate(ctx, s.db)
	if err != nil {
		return ikerr.Wrap(ikerr.IOError, "idstore.DelID", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableName(fs)), int64(id)); err != nil {
		return ikerr.Wrap(ikerr.IOError, "idstore.DelID", err)
	}
	return ikerr.Wrap(ikerr.IOError, "idstore.DelID", tx.Commit(ctx))
}

// Describe returns the description and atime stored for id, or
// NotFoundInDB if no row exists.
func (s *Store) Describe(ctx context.Context, id uint32) (description string, atime time.Time, err error) {
	fs := idspace.FromID(id)
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT description, atime FROM %s WHERE id = ?", tableName(fs)), int64(id))
	if err := row.Scan(&description, &atime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, ikerr.New(ikerr.NotFoundInDB, "idstore.Describe")
		}
		return "", time.Time{}, ikerr.Wrap(ikerr.IOError, "idstore.Describe", err)
	}
	return description, atime, nil
}

// Entry is one row returned by List.
type Entry struct {
	ID          uint32
	Description string
	Atime       time.Time
}

// List returns every row across all four feature-space tables, most
// recently accessed first; used by the `list`/`status` CLI subcommands.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for _, fs := range idspace.All {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, description, atime FROM %s", tableName(fs)))
		if err != nil {
			return nil, ikerr.Wrap(ikerr.IOError, "idstore.List", err)
		}
		for rows.Next() {
			var rawID int64
			var e Entry
			if err := rows.Scan(&rawID, &e.Description, &e.Atime); err != nil {
				rows.Close()
				return nil, ikerr.Wrap(ikerr.IOError, "idstore.List", err)
			}
			e.ID = uint32(rawID)
			out = append(out, e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, ikerr.Wrap(ikerr.IOError, "idstore.List", err)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Atime.After(out[j].Atime) })
	return out, nil
}

// Cleanup keeps the maxIDs newest-atime rows in (fs, sub) and deletes
// the rest.
func (s *Store) Cleanup(ctx context.Context, fs idspace.FeatureSpace, sub idspace.Subspace, maxIDs int) error {
	tx, err := sqlstore.BeginImmediate(ctx, s.db)
	if err != nil {
		return ikerr.Wrap(ikerr.IOError, "idstore.Cleanup", err)
	}
	defer tx.Rollback(ctx)
	if err := s.cleanupLocked(ctx, tx, tableName(fs), fs.Mask(sub), fs.MaskedValue(sub), maxIDs); err != nil {
		return ikerr.Wrap(ikerr.IOError, "idstore.Cleanup", err)
	}
	return ikerr.Wrap(ikerr.IOError, "idstore.Cleanup", tx.Commit(ctx))
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
