package main

import (
	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/convcache"
	"github.com/kittyplace/imgplace/pkg/imaging"
	"github.com/kittyplace/imgplace/pkg/protocol"
	"github.com/kittyplace/imgplace/pkg/terminal"
	"github.com/kittyplace/imgplace/pkg/upload"
)

// newUploadCmd uploads an image's artifact to the terminal without
// emitting any placeholder cells, for callers that manage display
// separately.
func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload PATH",
		Short: "upload an image without displaying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			src, err := convcache.DecodeSource(path)
			if err != nil {
				return err
			}
			cache, err := convcache.Open(cfg.General.CacheDir)
			if err != nil {
				return err
			}
			defer cache.Close()
			params := sess.uploadParams()
			cols, _, err := dimensionFlags()
			if err != nil {
				return newUsageError("%v", err)
			}
			width, height := src.SrcWidth, src.SrcHeight
			if cols > 0 {
				// Height 0: let the cache impute it from the aspect ratio.
				width, height = cols*geometryCellWidthFallback(), 0
			}
			artifact, err := resolveArtifact(ctx, cache, src, convcache.Target{
				DstFormat: imaging.FormatPNG,
				Width:     width,
				Height:    height,
				Kernel:    imaging.ParseKernel(cfg.Cache.ResizeKernel),
				Sharpen:   cfg.Cache.Sharpen,
				Tolerance: cfg.Cache.Tolerance,
			}, params.Transport)
			if err != nil {
				return err
			}

			description := buildDescription(path, src.ModTime.Unix(), 0, 0)
			id, err := sess.ids.GetID(ctx, description, sess.featureSpace, sess.subspace, true)
			if err != nil {
				return err
			}

			out, closeOut, err := openOutput(cfg.Display.OutCommand)
			if err != nil {
				return err
			}
			defer closeOut()

			req := upload.Request{
				ID: id, TerminalID: sess.terminalID, Description: description,
				Artifact: artifact, Format: protocol.FormatPNG,
				Compress:   artifact.SizeBytes > int64(cfg.Upload.MaxPayloadSize),
				WriteChunk: commandWriter(out, terminal.NumTmuxLayers()),
			}
			outcome, err := sess.coord.EnsureUploaded(ctx, req, params)
			if err != nil {
				return err
			}
			cmd.Printf("id=%d uploaded=%v skipped=%v\n", id, outcome.Uploaded, outcome.Skipped)
			return nil
		},
	}
}

func geometryCellWidthFallback() int {
	size := terminal.GetSize()
	if size.CellW > 0 {
		return size.CellW
	}
	return 8
}
