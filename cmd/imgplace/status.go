package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/terminal"
)

// newStatusCmd reports the detected terminal, session identity, and ID
// allocator state.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show terminal detection, session identity, and allocator state",
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

			term := terminal.Detect()
			size := terminal.WindowDimensions()

			cmd.Printf("terminal:       %s\n", term)
			cmd.Printf("session id:     %s\n", sess.sessionID)
			cmd.Printf("tmux layers:    %d\n", terminal.NumTmuxLayers())
			cmd.Printf("ssh:            %v\n", terminal.IsSSH())
			cmd.Printf("window size:    %dx%d cells, %dx%d px\n", size.Cols, size.Rows, size.PixelW, size.PixelH)
			cmd.Printf("id space:       %s\n", sess.featureSpace)
			cmd.Printf("id database:    %s\n", cfg.General.IDDatabaseDir)
			cmd.Printf("stream budget:  %s\n", humanize.IBytes(uint64(cfg.Upload.StreamMaxSize)))
			cmd.Printf("file budget:    %s\n", humanize.IBytes(uint64(cfg.Upload.FileMaxSize)))

			entries, err := sess.ids.List(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("known ids:      %d\n", len(entries))
			if len(entries) > 0 {
				cmd.Printf("last touched:   %s\n", humanize.Time(entries[0].Atime))
			}
			return nil
		},
	}
}
