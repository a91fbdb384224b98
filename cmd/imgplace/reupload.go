package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/config"
	"github.com/kittyplace/imgplace/pkg/convcache"
	"github.com/kittyplace/imgplace/pkg/imaging"
	"github.com/kittyplace/imgplace/pkg/protocol"
	"github.com/kittyplace/imgplace/pkg/terminal"
	"github.com/kittyplace/imgplace/pkg/upload"
)

// newReuploadCmd forces a fresh transmission of PATH's artifact to
// this terminal, bypassing the freshness check. With --all (optionally
// narrowed by --older/--newer/--last/--except-last) it runs as a batch:
// every already-known description is reuploaded, per-image errors are
// accumulated, and a composite failure is returned rather than
// stopping at the first one.
func newReuploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reupload [PATH]",
		Short: "force a fresh upload of one or all already-known images",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if flagAll {
				entries, err := sess.ids.List(ctx)
				if err != nil {
					return err
				}
				entries = filterByAge(entries)
				var failed int
				for _, e := range entries {
					desc, err := parseDescription(e.Description)
					if err != nil || desc.Path == "" {
						continue // not a file-backed description (e.g. force-id'd in-memory image); nothing to re-fetch
					}
					if err := reuploadOne(ctx, cfg, sess, desc.Path); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "error: reupload %s: %v\n", desc.Path, err)
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("imgplace: %d of %d reupload operations failed", failed, len(entries))
				}
				return nil
			}

			if len(args) != 1 {
				return newUsageError("imgplace: reupload requires a PATH argument or --all")
			}
			return reuploadOne(ctx, cfg, sess, args[0])
		},
	}
}

func reuploadOne(ctx context.Context, cfg *config.Config, sess *session, path string) error {
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
	params.ForceUpload = true
	artifact, err := resolveArtifact(ctx, cache, src, convcache.Target{
		DstFormat: imaging.FormatPNG,
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
	_, err = sess.coord.EnsureUploaded(ctx, req, params)
	return err
}
