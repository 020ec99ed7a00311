// Package backend opens the configured storage.Store implementation.
package backend

import (
	"context"
	"fmt"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/storage"
	"github.com/hetulpatel/pricearb/internal/storage/postgres"
	"github.com/hetulpatel/pricearb/internal/storage/sqlite"
)

// Open connects to the backend named by cfg.Driver. It does not migrate.
func Open(ctx context.Context, cfg config.DatabaseConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		s, err := sqlite.Open(sqlite.Config{
			Path:         cfg.SQLitePath,
			QueryTimeout: cfg.QueryTimeout.Duration,
			MaxOpenConns: cfg.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, postgres.Config{
			DSN:          cfg.PostgresDSN,
			MaxConns:     cfg.MaxConns,
			MinConns:     cfg.MinConns,
			QueryTimeout: cfg.QueryTimeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// OpenMigrated opens the backend and applies pending migrations.
func OpenMigrated(ctx context.Context, cfg config.DatabaseConfig) (storage.Store, error) {
	store, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
