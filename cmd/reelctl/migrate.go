package main

import (
	"github.com/spf13/cobra"

	"github.com/DukeRupert/reelscout/internal"
)

// newMigrateCmd returns the migrate command group.
func newMigrateCmd(a *app) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := internal.RunMigrations(db); err != nil {
				return err
			}
			version, err := internal.MigrationVersion(db)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := internal.RollbackMigration(db); err != nil {
				return err
			}
			version, err := internal.MigrationVersion(db)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	})

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			return internal.MigrationStatus(db)
		},
	})

	return migrate
}
