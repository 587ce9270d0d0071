package repo

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// statement is one call recorded by captureDriver.
type statement struct {
	kind  string // exec, query, begin, commit or rollback
	query string
	args  []any
}

// captureDriver records every statement and answers from queued results.
// Exec reports one affected row unless affected holds a value; Query
// returns no rows unless results holds a set.
type captureDriver struct {
	mu       sync.Mutex
	log      []statement
	affected []int64
	results  [][][]any
}

func (d *captureDriver) record(s statement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, s)
}

func (d *captureDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.record(statement{kind: "exec", query: query, args: args.([]any)})
	d.mu.Lock()
	n := int64(1)
	if len(d.affected) > 0 {
		n, d.affected = d.affected[0], d.affected[1:]
	}
	d.mu.Unlock()
	if res, ok := v.(*sql.Result); ok {
		*res = driver.RowsAffected(n)
	}
	return nil
}

func (d *captureDriver) Query(ctx context.Context, query string, args, v any) error {
	d.record(statement{kind: "query", query: query, args: args.([]any)})
	d.mu.Lock()
	var set [][]any
	if len(d.results) > 0 {
		set, d.results = d.results[0], d.results[1:]
	}
	d.mu.Unlock()
	rows, ok := v.(*entsql.Rows)
	if !ok {
		return fmt.Errorf("unexpected query target %T", v)
	}
	*rows = entsql.Rows{ColumnScanner: &cannedRows{rows: set}}
	return nil
}

func (d *captureDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.record(statement{kind: "begin"})
	return &captureTx{d: d}, nil
}

func (d *captureDriver) Close() error    { return nil }
func (d *captureDriver) Dialect() string { return dialect.Postgres }

// kinds lists the recorded statement kinds in order.
func (d *captureDriver) kinds() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.log))
	for i, s := range d.log {
		out[i] = s.kind
	}
	return out
}

// of returns the recorded statements of one kind.
func (d *captureDriver) of(kind string) []statement {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []statement
	for _, s := range d.log {
		if s.kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type captureTx struct {
	d *captureDriver
}

func (tx *captureTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.d.Exec(ctx, query, args, v)
}

func (tx *captureTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.d.Query(ctx, query, args, v)
}

func (tx *captureTx) Commit() error {
	tx.d.record(statement{kind: "commit"})
	return nil
}

func (tx *captureTx) Rollback() error {
	tx.d.record(statement{kind: "rollback"})
	return nil
}

// cannedRows serves fixed rows. UUID values are passed to scanners in their
// text form, as the pq and pgx drivers do.
type cannedRows struct {
	rows [][]any
	pos  int
}

func (r *cannedRows) Close() error                           { return nil }
func (r *cannedRows) ColumnTypes() ([]*sql.ColumnType, error) { return nil, nil }
func (r *cannedRows) Columns() ([]string, error)             { return nil, nil }
func (r *cannedRows) Err() error                             { return nil }
func (r *cannedRows) NextResultSet() bool                    { return false }

func (r *cannedRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}

func (r *cannedRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, src := range row {
		if id, ok := src.(uuid.UUID); ok {
			src = id.String()
		}
		if err := assign(dest[i], src); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, src any) error {
	if s, ok := dest.(sql.Scanner); ok {
		return s.Scan(src)
	}
	dv := reflect.ValueOf(dest).Elem()
	if src == nil {
		dv.Set(reflect.Zero(dv.Type()))
		return nil
	}
	sv := reflect.ValueOf(src)
	if !sv.Type().ConvertibleTo(dv.Type()) {
		return fmt.Errorf("cannot assign %T to %s", src, dv.Type())
	}
	dv.Set(sv.Convert(dv.Type()))
	return nil
}

func wantSQL(t *testing.T, got string, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		if !strings.Contains(got, f) {
			t.Errorf("statement %q\n  missing %q", got, f)
		}
	}
}

func wantArgs(t *testing.T, got []any, want ...any) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}
