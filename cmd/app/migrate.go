package main

import (
	"github.com/spf13/cobra"

	dbadapter "vestigia/internal/adapters/database"
	"vestigia/internal/config"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(root.cfg)
			if err != nil {
				return err
			}
			defer closeResources(config.L())
			if err := dbadapter.Migrate(db); err != nil {
				return err
			}
			config.L().Info("✅ Database migrations completed")
			return nil
		},
	}
}
