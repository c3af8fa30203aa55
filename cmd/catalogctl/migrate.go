package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/catalogsearch/internal/app"
	"github.com/utafrali/catalogsearch/internal/config"
	"github.com/utafrali/catalogsearch/migrations"
	"github.com/utafrali/catalogsearch/pkg/database"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.StoreBackend != config.BackendPostgres {
				return errors.New("migrate requires STORE_BACKEND=postgres")
			}

			store, err := app.OpenStore(cmd.Context(), c.cfg, !statusOnly, c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			states, err := database.MigrationStatus(cmd.Context(), store.Pool, migrations.FS)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			for _, s := range states {
				mark := "pending"
				if s.Applied {
					mark = "applied"
				}
				fmt.Fprintf(c.out, "%-40s %s\n", s.Version, mark)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Only report which migrations have been applied")
	return cmd
}
