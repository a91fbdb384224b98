package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/placeholder"
)

// newPlaceholderCmd emits the Unicode placeholder grid for an ID that
// was already uploaded (e.g. by another process), without touching the
// upload coordinator.
func newPlaceholderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "placeholder ID",
		Short: "emit placeholder cells for an already-uploaded image ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id64, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return newUsageError("imgplace: invalid ID %q: %v", args[0], err)
			}
			id := uint32(id64)

			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			cols, rows, err := dimensionFlags()
			if err != nil {
				return newUsageError("%v", err)
			}
			if cols <= 0 {
				cols = 1
			}
			if rows <= 0 {
				rows = 1
			}

			out, closeOut, err := openOutput(cfg.Display.OutDisplay)
			if err != nil {
				return err
			}
			defer closeOut()

			mode := placeholder.GetMode(id, cfg.Display.FewerDiacritics)
			useLineFeeds := resolveUseLineFeeds(cfg.Display.UseLineFeeds)
			return placeholder.EncodeToStream(out, id, 0, placeholder.Rect{
				StartCol: 0, StartRow: 0, EndCol: cols, EndRow: rows,
			}, mode, placeholder.Formatting{Allow256Color: cfg.Display.Allow256Color}, useLineFeeds, nil)
		},
	}
}
