package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/convcache"
	"github.com/kittyplace/imgplace/pkg/geometry"
	"github.com/kittyplace/imgplace/pkg/imaging"
	"github.com/kittyplace/imgplace/pkg/placeholder"
	"github.com/kittyplace/imgplace/pkg/protocol"
	"github.com/kittyplace/imgplace/pkg/terminal"
	"github.com/kittyplace/imgplace/pkg/upload"
)

// runDisplay is the root command's default action: assign (or reuse)
// an ID for the image at PATH, upload it if the terminal doesn't
// already have a fresh copy, and emit the Unicode placeholder grid
// that makes it visible.
func runDisplay(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("imgplace: expected exactly one image path")
	}
	path := args[0]

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	src, err := convcache.DecodeSource(path)
	if err != nil {
		return err
	}

	term := terminal.Detect()
	size := terminal.GetSize()
	cell := geometry.CellSize{Width: size.CellW, Height: size.CellH}

	var colsPtr, rowsPtr *int
	if cfg.Display.Cols > 0 {
		colsPtr = &cfg.Display.Cols
	}
	if cfg.Display.Rows > 0 {
		rowsPtr = &cfg.Display.Rows
	}
	fit := geometry.Fit(geometry.Request{
		ImageWidthPx:  src.SrcWidth,
		ImageHeightPx: src.SrcHeight,
		Cell:          cell,
		Cols:          colsPtr,
		Rows:          rowsPtr,
		MaxCols:       cfg.Display.MaxCols,
		MaxRows:       cfg.Display.MaxRows,
		Scale:         orOne(cfg.Display.Scale),
		GlobalScale:   orOne(cfg.Display.GlobalScale),
	})

	wireFormat := terminal.SupportedFormat(term)
	dstFormat := imaging.FormatPNG

	cache, err := convcache.Open(cfg.General.CacheDir)
	if err != nil {
		return err
	}
	defer cache.Close()
	params := sess.uploadParams()
	artifact, err := resolveArtifact(ctx, cache, src, convcache.Target{
		DstFormat: dstFormat,
		Width:     fit.Cols * cell.Width,
		Height:    fit.Rows * cell.Height,
		Kernel:    imaging.ParseKernel(cfg.Cache.ResizeKernel),
		Sharpen:   cfg.Cache.Sharpen,
		Tolerance: cfg.Cache.Tolerance,
	}, params.Transport)
	if err != nil {
		return err
	}

	description := buildDescription(path, src.ModTime.Unix(), fit.Cols, fit.Rows)
	var id uint32
	if flagForceID != 0 {
		id = flagForceID
		if err := sess.ids.SetID(ctx, id, description); err != nil {
			return err
		}
	} else {
		id, err = sess.ids.GetID(ctx, description, sess.featureSpace, sess.subspace, true)
		if err != nil {
			return err
		}
	}

	outCommand, closeCommand, err := openOutput(cfg.Display.OutCommand)
	if err != nil {
		return err
	}
	defer closeCommand()
	outDisplay, closeDisplay, err := openOutput(cfg.Display.OutDisplay)
	if err != nil {
		return err
	}
	defer closeDisplay()

	writeChunk := commandWriter(outCommand, terminal.NumTmuxLayers())
	if !flagNoUpload {
		req := upload.Request{
			ID: id, TerminalID: sess.terminalID, Description: description,
			Artifact: artifact, Format: wireFormat,
			Compress:   artifact.SizeBytes > int64(cfg.Upload.MaxPayloadSize),
			WriteChunk: writeChunk,
		}
		if _, err := sess.coord.EnsureUploaded(ctx, req, params); err != nil {
			return err
		}
	}

	// Create (or refresh) the virtual placement the placeholder cells
	// below refer to; without it the terminal has pixels but no
	// placement to map the Unicode cells onto.
	put := protocol.BuildPut(protocol.PutParams{
		ID: id, Cols: fit.Cols, Rows: fit.Rows,
		VirtualPlacement: true, Quiet: protocol.QuietNoError,
	})
	if err := writeChunk(put); err != nil {
		return err
	}

	mode := placeholder.GetMode(id, cfg.Display.FewerDiacritics)
	useLineFeeds := resolveUseLineFeeds(cfg.Display.UseLineFeeds)
	return placeholder.EncodeToStream(outDisplay, id, 0, placeholder.Rect{
		StartCol: 0, StartRow: 0, EndCol: fit.Cols, EndRow: fit.Rows,
	}, mode, placeholder.Formatting{Allow256Color: cfg.Display.Allow256Color}, useLineFeeds, nil)
}

func orOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

// resolveArtifact resolves src against target in dimension mode, then —
// when the artifact exceeds the transport's byte budget — re-resolves
// in byte-budget mode so whatever is transmitted fits the medium.
func resolveArtifact(ctx context.Context, cache *convcache.Store, src convcache.Source, target convcache.Target, transport upload.TransportPolicy) (convcache.Result, error) {
	artifact, err := cache.Resolve(ctx, src, target)
	if err != nil {
		return convcache.Result{}, err
	}
	budget := transport.Budget(transport.Medium())
	if budget > 0 && artifact.SizeBytes > budget {
		target.MaxSizeBytes = budget
		artifact, err = cache.Resolve(ctx, src, target)
		if err != nil {
			return convcache.Result{}, err
		}
	}
	return artifact, nil
}

// commandWriter adapts an output stream into the per-chunk callback the
// upload coordinator drives, tmux-wrapping each chunk when needed.
func commandWriter(out io.Writer, tmuxLayers int) func(protocol.Chunk) error {
	return func(chunk protocol.Chunk) error {
		chunks := []protocol.Chunk{chunk}
		if tmuxLayers > 0 {
			chunks = protocol.WrapTmuxAll(chunks)
		}
		for _, c := range chunks {
			if _, err := io.WriteString(out, string(c)); err != nil {
				return err
			}
		}
		return nil
	}
}

func resolveUseLineFeeds(mode string) bool {
	switch mode {
	case "true":
		return true
	case "false":
		return false
	default:
		// "auto": cursor movement inside a real terminal, line feeds
		// when the display stream is piped or redirected.
		return !terminal.IsOutputTTY(os.Stdout.Fd())
	}
}

func openOutput(target string) (io.Writer, func(), error) {
	if target == "" || target == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("imgplace: open output %q: %w", target, err)
	}
	return f, func() { f.Close() }, nil
}
