// Package repo is the Postgres persistence layer, written on ent's SQL
// dialect builder. Each entity has a sub-client on Client.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// Client bundles the per-entity clients over one driver.
type Client struct {
	driver dialect.Driver

	Conversation  *ConversationClient
	Message       *MessageClient
	User          *UserClient
	Agency        *AgencyClient
	ClientProfile *ClientProfileClient
	Vehicle       *VehicleClient
}

func NewClient(drv dialect.Driver) *Client {
	return &Client{
		driver:        drv,
		Conversation:  &ConversationClient{drv: drv},
		Message:       &MessageClient{drv: drv},
		User:          &UserClient{drv: drv},
		Agency:        &AgencyClient{drv: drv},
		ClientProfile: &ClientProfileClient{drv: drv},
		Vehicle:       &VehicleClient{drv: drv},
	}
}

func (c *Client) Driver() dialect.Driver { return c.driver }

func (c *Client) Close() error { return c.driver.Close() }

// Ping runs a trivial statement against the database.
func (c *Client) Ping(ctx context.Context) error {
	var rows entsql.Rows
	if err := c.driver.Query(ctx, "SELECT 1", []any{}, &rows); err != nil {
		return err
	}
	return rows.Close()
}

// NotFoundError is returned when a lookup matches no row.
type NotFoundError struct {
	label string
}

func (e *NotFoundError) Error() string {
	return "repo: " + e.label + " not found"
}

// NewNotFoundError returns a *NotFoundError for label.
func NewNotFoundError(label string) error {
	return &NotFoundError{label: label}
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e)
}

func psql() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

// Window bounds a list query. A zero Limit returns every row.
type Window struct {
	Offset int
	Limit  int
}

func (w Window) apply(sel *entsql.Selector) *entsql.Selector {
	if w.Limit <= 0 {
		return sel
	}
	sel = sel.Limit(w.Limit)
	if w.Offset > 0 {
		sel = sel.Offset(w.Offset)
	}
	return sel
}

type querier interface {
	Query() (string, []any)
}

// query runs q and hands every row to scan.
func query(ctx context.Context, drv dialect.ExecQuerier, q querier, scan func(*entsql.Rows) error) error {
	stmt, args := q.Query()
	var rows entsql.Rows
	if err := drv.Query(ctx, stmt, args, &rows); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// exec runs q and returns the number of affected rows.
func exec(ctx context.Context, drv dialect.ExecQuerier, q querier) (int, error) {
	stmt, args := q.Query()
	var res sql.Result
	if err := drv.Exec(ctx, stmt, args, &res); err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func withTx(ctx context.Context, drv dialect.Driver, fn func(tx dialect.Tx) error) error {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w: rollback: %v", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
