package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/autodealer/dealer_backend/config"
)

func openSQLDB(ctx context.Context, c config.DatabaseConfig, dbname string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsnFor(c, dbname))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if c.Pool.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(c.Pool.MaxOpenConns)
	}
	if c.Pool.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(c.Pool.MaxIdleConns)
	}
	conn.SetConnMaxLifetime(connMaxLifetime(c))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database %q: %w", dbname, err)
	}
	return conn, nil
}

// EnsureDatabases creates the conversation store and the Casbin policy store
// if they are missing. It connects through the maintenance "postgres" database
// using the conversation store's credentials.
func EnsureDatabases(ctx context.Context, cfg *config.Config) ([]string, error) {
	names := databaseNames(cfg)
	if len(names) == 0 {
		return nil, fmt.Errorf("no database names configured")
	}

	conn, err := openSQLDB(ctx, cfg.Database, "postgres")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var created []string
	for _, name := range names {
		ok, err := createIfMissing(ctx, conn, name)
		if err != nil {
			return created, fmt.Errorf("database %q: %w", name, err)
		}
		if ok {
			created = append(created, name)
		}
	}
	return created, nil
}

func databaseNames(cfg *config.Config) []string {
	var names []string
	for _, name := range []string{cfg.Database.DBName, cfg.CasbinDatabase.DBName} {
		if name == "" || (len(names) > 0 && names[0] == name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func createIfMissing(ctx context.Context, conn *sql.DB, name string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existence: %w", err)
	}
	if exists {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := conn.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return false, fmt.Errorf("create: %w", err)
	}
	return true, nil
}
