package main

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// newDumpConfigCmd prints the fully resolved configuration (defaults +
// file + env + flags) as TOML. The output carries the values only, not
// where each value came from.
func newDumpConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-config",
		Short: "print the resolved configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			enc := toml.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(cfg)
		},
	}
}
