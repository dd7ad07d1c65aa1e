package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cornjacket/catalog-ingest/internal/shared/infra/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the catalog and task queue schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			pg, err := postgres.NewClient(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxConns: 2}, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
			}
			defer pg.Close()

			return applyMigrations(ctx, pg, logger)
		},
	}
}
