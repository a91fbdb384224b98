package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

// newDirtyCmd marks an ID's upload record DIRTY on this terminal,
// forcing the next display/upload of it to retransmit regardless of
// the freshness thresholds.
func newDirtyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dirty ID",
		Short: "force an image ID to be treated as stale on this terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id64, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return newUsageError("imgplace: invalid ID %q: %v", args[0], err)
			}
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			sess, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer sess.Close()
			return sess.uploads.MarkDirty(cmd.Context(), uint32(id64), sess.terminalID)
		},
	}
}
