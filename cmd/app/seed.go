package main

import (
	"github.com/spf13/cobra"

	"vestigia/internal/config"
	"vestigia/internal/seed"
)

func newSeedCommand(root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert historical figures and posts from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			b, err := openBackend(root.cfg)
			if err != nil {
				return err
			}
			defer closeResources(config.L())

			_, err = seed.Apply(cmd.Context(), data, b.figures, b.posts, config.L())
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed/timeline.yaml", "seed file")
	return cmd
}
