package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
	"github.com/nextlevelbuilder/keyproxy/internal/store/pg"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema (managed mode)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Run: func(cmd *cobra.Command, args []string) {
			withMigrator(func(m *migrate.Migrate) error {
				v, err := pg.MigrateUp(m)
				if err != nil {
					return err
				}
				fmt.Printf("Migration complete (version: %d)\n", v)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Run: func(cmd *cobra.Command, args []string) {
			withMigrator(func(m *migrate.Migrate) error {
				if err := m.Steps(-1); err != nil {
					if errors.Is(err, migrate.ErrNoChange) {
						fmt.Println("Nothing to roll back.")
						return nil
					}
					return err
				}
				fmt.Println("Rolled back one migration.")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Run: func(cmd *cobra.Command, args []string) {
			withMigrator(func(m *migrate.Migrate) error {
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Println("No migrations applied.")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("Version: %d (dirty: %v)\n", v, dirty)
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(fn func(m *migrate.Migrate) error) {
	cfg, err := loadConfig()
	exitOnError(err)

	if !isManagedMode(cfg) {
		fmt.Printf("Database mode is %q: the SQLite schema is created when the store opens. Nothing to migrate.\n", cfg.Database.Mode)
		return
	}
	exitOnError(runMigrator(cfg, fn))
}

func runMigrator(cfg *config.Config, fn func(m *migrate.Migrate) error) error {
	db, err := pg.OpenDB(cfg.Database.PostgresDSN)
	if err != nil {
		return err
	}
	m, err := pg.NewMigrator(db)
	if err != nil {
		db.Close()
		return err
	}
	defer m.Close()
	return fn(m)
}
