package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/kittyplace/imgplace/pkg/convcache"
	"github.com/kittyplace/imgplace/pkg/ikerr"
	"github.com/kittyplace/imgplace/pkg/protocol"
	"github.com/kittyplace/imgplace/pkg/sqlstore"
)

// Params configures one upload attempt; the coordinator reads these
// directly from pkg/config.UploadConfig's fields.
type Params struct {
	NumAttempts      int
	CommandDelay     time.Duration // optional pause between direct chunks for slow terminals
	ClaimPollDelay   time.Duration // how long to wait before rechecking a claim held elsewhere; defaults to CommandDelay if zero
	StallTimeout     time.Duration // an UPLOADING claim older than this is reclaimed rather than waited out
	ProgressInterval time.Duration // how often a long direct transmission refreshes its claim's upload_time
	MaxPayloadSize   int           // raw bytes per APC chunk; 0 uses protocol.DefaultMaxPayloadSize
	AllowConcurrent  bool
	ForceUpload      bool

	ReuploadMaxBytesAgo   int64
	ReuploadMaxUploadsAgo int
	ReuploadMaxSecondsAgo time.Duration

	Transport TransportPolicy
}

// Request is one call's worth of "make sure terminal has image ID
// uploaded and current" inputs.
type Request struct {
	ID          uint32
	TerminalID  string
	Description string
	Artifact    convcache.Result
	Format      protocol.Format
	Compress    bool

	// WriteChunk sends one built APC sequence to the display stream
	// (already tmux-wrapped by the caller, per pkg/protocol.WrapTmuxAll).
	WriteChunk func(protocol.Chunk) error
}

// Outcome reports what EnsureUploaded actually did, for `status`/logging.
type Outcome struct {
	Skipped    bool // freshness check found nothing to do
	Uploaded   bool // a TRANSMIT was sent and the record marked UPLOADED
	WaitRounds int  // number of times another holder's claim was observed
}

// Coordinator keeps at most one transmission in flight per image ID,
// tracked by upload.Store and built from pkg/convcache artifacts and
// pkg/protocol wire commands. Serialization is enforced by a database
// claim row rather than an in-process lock, since uploads must
// serialize across separate process invocations sharing one session
// database, not just goroutines within one process.
type Coordinator struct {
	store *Store
}

// NewCoordinator builds a Coordinator over an already-open Store.
func NewCoordinator(store *Store) *Coordinator {
	return &Coordinator{store: store}
}

// NeedsUploading reports whether (id, terminalID) must be
// (re)transmitted: a record is fresh only when it is UPLOADED, its
// description still matches, and all three reupload_max_* thresholds
// still hold.
func (c *Coordinator) NeedsUploading(ctx context.Context, id uint32, terminalID, description string, p Params) (bool, error) {
	rec, err := c.store.Get(ctx, id, terminalID)
	if err != nil {
		if errors.Is(err, ikerr.Sentinel(ikerr.NotFoundInDB)) {
			return true, nil
		}
		return false, err
	}
	if rec.Status != StatusUploaded {
		return true, nil
	}
	if rec.Description != description {
		return true, nil
	}
	if p.ReuploadMaxSecondsAgo > 0 && time.Since(rec.UploadTime) >= p.ReuploadMaxSecondsAgo {
		return true, nil
	}
	if p.ReuploadMaxBytesAgo > 0 {
		bytesAgo, err := c.store.BytesAgo(ctx, rec)
		if err != nil {
			return false, err
		}
		if bytesAgo >= p.ReuploadMaxBytesAgo {
			return true, nil
		}
	}
	if p.ReuploadMaxUploadsAgo > 0 {
		uploadsAgo, err := c.store.UploadsAgo(ctx, rec)
		if err != nil {
			return false, err
		}
		if uploadsAgo >= p.ReuploadMaxUploadsAgo {
			return true, nil
		}
	}
	return false, nil
}

// tryClaim attempts to move (id, terminalID) into UPLOADING, failing
// (claimed=false) when another holder already owns the claim,
// allowConcurrent is false, and that claim isn't stale. The
// check-then-set runs inside a BEGIN IMMEDIATE write transaction so
// two processes racing on the same session database file still
// serialize correctly, not just two goroutines sharing one *sql.DB.
func (c *Coordinator) tryClaim(ctx context.Context, id uint32, terminalID, description string, sizeBytes int64, allowConcurrent bool, stallTimeout time.Duration) (claimed bool, err error) {
	tx, err := sqlstore.BeginImmediate(ctx, c.store.db)
	if err != nil {
		return false, ikerr.Wrap(ikerr.IOError, "upload.Coordinator.tryClaim", err)
	}
	defer tx.Rollback(ctx)

	rec, err := c.store.getTx(ctx, tx, id, terminalID)
	if err != nil && !errors.Is(err, ikerr.Sentinel(ikerr.NotFoundInDB)) {
		return false, err
	}
	if err == nil && rec.Status == StatusUploading && !allowConcurrent {
		stalled := stallTimeout > 0 && time.Since(rec.UploadTime) > stallTimeout
		if !stalled {
			return false, nil
		}
	}

	if err := c.store.upsertTx(ctx, tx, Record{
		ImageID: id, TerminalID: terminalID, UploadTime: time.Now().UTC(),
		SizeBytes: sizeBytes, Status: StatusUploading, Description: description,
	}); err != nil {
		return false, ikerr.Wrap(ikerr.IOError, "upload.Coordinator.tryClaim", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, ikerr.Wrap(ikerr.IOError, "upload.Coordinator.tryClaim", err)
	}
	return true, nil
}

func (c *Coordinator) release(ctx context.Context, id uint32, terminalID string, status Status, sizeBytes int64, description string) error {
	return c.store.upsertTx(ctx, c.store.db, Record{
		ImageID: id, TerminalID: terminalID, UploadTime: time.Now().UTC(),
		SizeBytes: sizeBytes, Status: status, Description: description,
	})
}

// EnsureUploaded makes sure the terminal has a current copy of req's
// artifact: skip if fresh, otherwise claim (waiting out any concurrent
// holder), transmit, and record the outcome. On exhausting
// NumAttempts it leaves the record DIRTY so a later call retries rather
// than wrongly reporting success.
func (c *Coordinator) EnsureUploaded(ctx context.Context, req Request, p Params) (Outcome, error) {
	var out Outcome
	attempts := maxInt(p.NumAttempts, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		if !p.ForceUpload {
			needs, err := c.NeedsUploading(ctx, req.ID, req.TerminalID, req.Description, p)
			if err != nil {
				return out, err
			}
			if !needs {
				out.Skipped = true
				return out, nil
			}
		}

		claimed, err := c.tryClaim(ctx, req.ID, req.TerminalID, req.Description, req.Artifact.SizeBytes, p.AllowConcurrent, p.StallTimeout)
		if err != nil {
			return out, err
		}
		if !claimed {
			out.WaitRounds++
			if err := sleepOrDone(ctx, pollDelay(p)); err != nil {
				return out, err
			}
			p.ForceUpload = false // always recheck freshness after waiting
			continue
		}

		if err := c.transmit(ctx, req, p); err != nil {
			// Leave the attempt's failure recorded as DIRTY so later
			// calls (ours or another process's) see a non-UPLOADING,
			// non-fresh record and retry from scratch.
			_ = c.release(ctx, req.ID, req.TerminalID, StatusDirty, 0, req.Description)
			if attempt == attempts-1 {
				return out, err
			}
			// Send a zero-length m=0 TRANSMIT to abort whatever partial
			// chunk sequence the terminal may be mid-way through before
			// the next attempt resends from the start; best-effort, a
			// failure here doesn't change the retry outcome.
			_ = c.sendAbort(req, p)
			if err := sleepOrDone(ctx, p.CommandDelay); err != nil {
				return out, err
			}
			continue
		}

		// If another process re-claimed the ID for a different image
		// while our chunks were in flight, marking its claim UPLOADED
		// would attach our artifact to its description; retry from the
		// top and let the freshness check sort out who won.
		if rec, recErr := c.store.Get(ctx, req.ID, req.TerminalID); recErr == nil && rec.Description != req.Description {
			out.WaitRounds++
			continue
		}

		if err := c.release(ctx, req.ID, req.TerminalID, StatusUploaded, req.Artifact.SizeBytes, req.Description); err != nil {
			return out, err
		}
		out.Uploaded = true
		return out, nil
	}
	return out, ikerr.New(ikerr.IOError, "upload.Coordinator.EnsureUploaded: attempts exhausted")
}

func (c *Coordinator) transmit(ctx context.Context, req Request, p Params) error {
	medium := p.Transport.Medium()

	// Direct transmission carries the artifact bytes in-band; the
	// path-based media carry the filename, which the terminal opens
	// (and, for the temp-file medium, deletes) itself.
	var payload []byte
	compress := req.Compress
	switch medium {
	case protocol.TransmissionDirect:
		data, err := readArtifact(req.Artifact.ArtifactPath)
		if err != nil {
			return err
		}
		payload = data
	case protocol.TransmissionTempFile:
		tmp, err := copyToTempFile(req.Artifact.ArtifactPath)
		if err != nil {
			return err
		}
		payload = []byte(tmp)
		compress = false
	default:
		payload = []byte(req.Artifact.ArtifactPath)
		compress = false
	}

	chunks, err := protocol.BuildTransmit(payload, protocol.TransmitParams{
		ID:              req.ID,
		Format:          req.Format,
		Transmission:    medium,
		Compress:        compress,
		Quiet:           protocol.QuietNoError,
		MaxPayloadChunk: p.MaxPayloadSize,
	})
	if err != nil {
		return err
	}

	lastProgress := time.Now()
	for i, chunk := range chunks {
		if err := req.WriteChunk(chunk); err != nil {
			return ikerr.Wrap(ikerr.IOError, "upload.Coordinator.transmit", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i == len(chunks)-1 {
			break
		}
		if medium == protocol.TransmissionDirect {
			if p.ProgressInterval > 0 && time.Since(lastProgress) >= p.ProgressInterval {
				c.touchProgress(ctx, req.ID, req.TerminalID)
				lastProgress = time.Now()
			}
			if err := sleepOrDone(ctx, p.CommandDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// touchProgress refreshes a held UPLOADING claim's upload_time so
// other writers don't mistake a slow multi-chunk transmission for a
// stalled one. Best-effort.
func (c *Coordinator) touchProgress(ctx context.Context, id uint32, terminalID string) {
	_, _ = c.store.db.ExecContext(ctx,
		`UPDATE uploads SET upload_time=? WHERE image_id=? AND terminal_id=? AND status=?`,
		time.Now().UTC(), int64(id), terminalID, string(StatusUploading))
}

// copyToTempFile copies the artifact somewhere the terminal is allowed
// to delete after reading. The name carries the tty-graphics-protocol
// marker Kitty requires before it will unlink a temp-medium file.
func copyToTempFile(path string) (string, error) {
	data, err := readArtifact(path)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp("", "tty-graphics-protocol-*"+filepath.Ext(path))
	if err != nil {
		return "", ikerr.Wrap(ikerr.IOError, "upload.Coordinator.transmit: temp file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", ikerr.Wrap(ikerr.IOError, "upload.Coordinator.transmit: temp file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", ikerr.Wrap(ikerr.IOError, "upload.Coordinator.transmit: temp file", err)
	}
	return f.Name(), nil
}

func pollDelay(p Params) time.Duration {
	if p.ClaimPollDelay > 0 {
		return p.ClaimPollDelay
	}
	if p.CommandDelay > 0 {
		return p.CommandDelay
	}
	return time.Millisecond
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sendAbort emits a zero-length m=0 TRANSMIT so the terminal discards
// any half-sent direct chunk stream before a fresh upload of the same
// ID starts. Path-based media have no partial-stream state to discard.
func (c *Coordinator) sendAbort(req Request, p Params) error {
	if p.Transport.Medium() != protocol.TransmissionDirect {
		return nil
	}
	chunks, err := protocol.BuildTransmit(nil, protocol.TransmitParams{
		ID: req.ID, Format: req.Format, Transmission: protocol.TransmissionDirect, Quiet: protocol.QuietNoError,
	})
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if err := req.WriteChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		kind := ikerr.IOError
		if os.IsNotExist(err) {
			kind = ikerr.FileMissing
		}
		return nil, ikerr.Wrap(kind, "upload.Coordinator.transmit: read artifact", err)
	}
	return data, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
