package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/university-library/internal/config"
	"github.com/example/university-library/internal/persistence/postgres"
	"github.com/example/university-library/internal/persistence/sqlite"
)

// storageHandles abstracts over the configured storage engine so the rest
// of the command layer only sees repository interfaces.
type storageHandles struct {
	repos   repositories
	migrate func(context.Context) error
	close   func() error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storageHandles, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		storage, err := postgres.Open(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return &storageHandles{
			repos: repositories{
				books:        storage.Books,
				members:      storage.Members,
				loans:        storage.Loans,
				reservations: storage.Reservations,
				sessions:     storage.Sessions,
			},
			migrate: storage.Migrate,
			close:   storage.Close,
		}, nil
	default:
		storage, err := sqlite.Open(cfg.SQLiteDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return &storageHandles{
			repos: repositories{
				books:        storage.Books,
				members:      storage.Members,
				loans:        storage.Loans,
				reservations: storage.Reservations,
				sessions:     storage.Sessions,
			},
			migrate: storage.Migrate,
			close:   storage.Close,
		}, nil
	}
}
