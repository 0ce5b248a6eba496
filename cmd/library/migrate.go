package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/university-library/internal/config"
	"github.com/example/university-library/internal/logging"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx := context.Background()
			storage, err := openStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer storage.close()

			if err := storage.migrate(ctx); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("migrations applied", "driver", cfg.StorageDriver)
			return nil
		},
	}
}
