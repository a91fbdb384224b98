package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// newForgetCmd deletes one or more IDs' rows from the allocator, freeing
// them for reassignment; it does not touch the terminal's own graphics
// memory. With --all (optionally narrowed by --older/--newer/--last/
// --except-last) it runs as a batch: per-ID errors are accumulated and
// a composite failure is returned rather than stopping at the first
// one.
func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget [ID]",
		Short: "forget one or all image IDs, freeing them for reassignment",
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
					if err := sess.ids.DelID(ctx, e.ID); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "error: forget %d: %v\n", e.ID, err)
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("imgplace: %d of %d forget operations failed", failed, len(entries))
				}
				return nil
			}

			if len(args) != 1 {
				return newUsageError("imgplace: forget requires an ID argument or --all")
			}
			id64, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return newUsageError("imgplace: invalid ID %q: %v", args[0], err)
			}
			return sess.ids.DelID(ctx, uint32(id64))
		},
	}
}
