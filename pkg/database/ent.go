// Package database opens the Postgres-backed conversation store.
package database

import (
	"context"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/autodealer/dealer_backend/config"
	"github.com/autodealer/dealer_backend/internal/repo"
	"github.com/autodealer/dealer_backend/internal/repo/migrate"
)

// NewEntClient opens the conversation store and wraps it in an ent SQL
// driver, logging slow statements when database.logging is enabled.
func NewEntClient(ctx context.Context, cfg config.DatabaseConfig) (*repo.Client, error) {
	db, err := openSQLDB(ctx, cfg, cfg.DBName)
	if err != nil {
		return nil, err
	}

	var drv dialect.Driver = entsql.OpenDB(dialect.Postgres, db)
	if cfg.Logging.Enabled {
		drv = newSlowQueryDriver(drv, slowQueryThreshold(cfg))
	}
	return repo.NewClient(drv), nil
}

// MigrateEnt creates or alters the application tables. With safeMode set,
// columns and indexes missing from the schema are kept.
func MigrateEnt(ctx context.Context, client *repo.Client, safeMode bool) error {
	return migrate.Create(ctx, client.Driver(), !safeMode)
}
