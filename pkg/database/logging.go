package database

import (
	"context"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
)

// slowQueryDriver logs statements that take longer than threshold.
type slowQueryDriver struct {
	dialect.Driver
	threshold time.Duration
}

func newSlowQueryDriver(drv dialect.Driver, threshold time.Duration) dialect.Driver {
	return &slowQueryDriver{Driver: drv, threshold: threshold}
}

func (d *slowQueryDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.observe(ctx, query, start, err)
	return err
}

func (d *slowQueryDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.observe(ctx, query, start, err)
	return err
}

func (d *slowQueryDriver) observe(ctx context.Context, query string, start time.Time, err error) {
	elapsed := time.Since(start)
	if elapsed < d.threshold && err == nil {
		return
	}
	slog.WarnContext(ctx, "slow or failed query",
		"query", query,
		"duration_ms", elapsed.Milliseconds(),
		"error", err,
	)
}
