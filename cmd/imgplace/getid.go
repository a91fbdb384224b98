package main

import (
	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/convcache"
	"github.com/kittyplace/imgplace/pkg/idspace"
)

// newGetIDCmd prints the ID that would be assigned to (or already holds)
// an image, without uploading or displaying anything.
func newGetIDCmd() *cobra.Command {
	var subspaceByte bool
	cmd := &cobra.Command{
		Use:   "get-id PATH",
		Short: "print the image ID for PATH, assigning one if needed",
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

			src, err := convcache.DecodeSource(path)
			if err != nil {
				return err
			}
			cols, rows, err := dimensionFlags()
			if err != nil {
				return newUsageError("%v", err)
			}
			description := buildDescription(path, src.ModTime.Unix(), cols, rows)
			id, err := sess.ids.GetID(cmd.Context(), description, sess.featureSpace, sess.subspace, true)
			if err != nil {
				return err
			}
			if subspaceByte {
				cmd.Println(idspace.SubspaceByte(id, idspace.FromID(id)))
				return nil
			}
			cmd.Println(id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&subspaceByte, "subspace-byte", false, "print the ID's subspace byte instead of the full ID")
	return cmd
}
