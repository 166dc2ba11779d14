package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/matchfeed/internal/config"
	"github.com/rickgao/matchfeed/internal/database"
	"github.com/rickgao/matchfeed/internal/database/sqlite"
	"github.com/rickgao/matchfeed/internal/dispatch"
	"github.com/rickgao/matchfeed/internal/fixtures"
)

// appStore is what every matchd command needs from persistence.
type appStore interface {
	dispatch.Store
	fixtures.Writer
	Ping(ctx context.Context) error
}

// openStore opens the configured store. The returned close func is always
// safe to call.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (appStore, func(), error) {
	switch cfg.Driver {
	case "postgres":
		logger.Info("connecting to database",
			"host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port,
			"database", cfg.Postgres.Name,
		)
		store, err := database.Open(ctx, cfg.Postgres, database.WithLogger(logger))
		if err != nil {
			return nil, func() {}, err
		}
		return store, store.Close, nil

	case "sqlite":
		logger.Info("opening sqlite store", "path", cfg.SQLite.Path)
		store, err := sqlite.Open(ctx, cfg.SQLite.Path, sqlite.WithLogger(logger))
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				logger.Warn("close sqlite store", "error", err)
			}
		}, nil
	}
	return nil, func() {}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
