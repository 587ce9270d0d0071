package database

import (
	"fmt"
	"time"

	"github.com/autodealer/dealer_backend/config"
)

const (
	defaultConnMaxLifetime    = 5 * time.Minute
	defaultSlowQueryThreshold = 200 * time.Millisecond
)

// DSN renders a lib/pq connection string for c.
func DSN(c config.DatabaseConfig) string {
	return dsnFor(c, c.DBName)
}

func dsnFor(c config.DatabaseConfig, dbname string) string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, dbname, sslmode,
	)
}

func connMaxLifetime(c config.DatabaseConfig) time.Duration {
	if c.Pool.ConnMaxLifetimeMin <= 0 {
		return defaultConnMaxLifetime
	}
	return time.Duration(c.Pool.ConnMaxLifetimeMin) * time.Minute
}

func slowQueryThreshold(c config.DatabaseConfig) time.Duration {
	if c.Logging.SlowQueryThresholdMs <= 0 {
		return defaultSlowQueryThreshold
	}
	return time.Duration(c.Logging.SlowQueryThresholdMs) * time.Millisecond
}
