package main

import (
	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/convcache"
	"github.com/kittyplace/imgplace/pkg/idspace"
)

// newCleanupCmd runs the ID allocator's reclamation pass over the whole
// (zero-bit) subspace of every feature-space, the upload store's
// retention sweep, and the conversion cache's LRU eviction.
func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "reclaim stale IDs, expired upload records, and cache entries",
		Args:  cobra.NoArgs,
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

			for _, fs := range idspace.All {
				if err := sess.ids.Cleanup(ctx, fs, idspace.Subspace{}, cfg.IDs.MaxIDsPerSubspace); err != nil {
					return err
				}
			}
			if err := sess.uploads.Cleanup(ctx, cfg.Upload.RetentionWindow.Duration); err != nil {
				return err
			}

			cache, err := convcache.Open(cfg.General.CacheDir)
			if err != nil {
				return err
			}
			defer cache.Close()
			return cache.Cleanup(ctx, cfg.Cache.CacheMaxImages, cfg.Cache.CacheMaxTotalBytes,
				cfg.Cache.CacheTargetImages, cfg.Cache.CacheTargetBytes)
		},
	}
}
