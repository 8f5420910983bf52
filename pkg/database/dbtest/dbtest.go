// Package dbtest provides a scripted database.DBTX for repository tests.
// Each statement the code under test runs consumes the next Step, which must
// match the SQL it was scripted for.
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Step is one scripted statement result.
type Step struct {
	// Match must appear in the statement, compared with whitespace collapsed.
	Match string
	// Row is the QueryRow result; a nil Row with a nil Err scans pgx.ErrNoRows.
	Row []any
	// Rows is the Query result.
	Rows [][]any
	// Tag is the Exec command tag, e.g. "UPDATE 1".
	Tag string
	Err error
}

// Call records one executed statement.
type Call struct {
	SQL  string
	Args []any
}

// DB is a scripted database.DBTX and database.TxBeginner.
type DB struct {
	t          testing.TB
	steps      []Step
	Calls      []Call
	Committed  bool
	RolledBack bool
}

// New returns a DB that plays steps in order.
func New(t testing.TB, steps ...Step) *DB {
	return &DB{t: t, steps: steps}
}

// Remaining reports how many scripted steps were not consumed.
func (d *DB) Remaining() int { return len(d.steps) }

func squash(sql string) string { return strings.Join(strings.Fields(sql), " ") }

func (d *DB) next(sql string, args []any) Step {
	d.t.Helper()
	sql = squash(sql)
	d.Calls = append(d.Calls, Call{SQL: sql, Args: args})
	if len(d.steps) == 0 {
		d.t.Fatalf("dbtest: unexpected statement: %s", sql)
		return Step{}
	}
	s := d.steps[0]
	d.steps = d.steps[1:]
	if !strings.Contains(sql, squash(s.Match)) {
		d.t.Fatalf("dbtest: statement %q does not match %q", sql, s.Match)
	}
	return s
}

func (d *DB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s := d.next(sql, args)
	return pgconn.NewCommandTag(s.Tag), s.Err
}

func (d *DB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	s := d.next(sql, args)
	if s.Err != nil {
		return nil, s.Err
	}
	return &rows{data: s.Rows, pos: -1}, nil
}

func (d *DB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s := d.next(sql, args)
	switch {
	case s.Err != nil:
		return row{err: s.Err}
	case s.Row == nil:
		return row{err: pgx.ErrNoRows}
	}
	return row{values: s.Row}
}

// Begin starts a scripted transaction sharing the same script.
func (d *DB) Begin(context.Context) (pgx.Tx, error) {
	return &tx{db: d}, nil
}

// tx overrides the statement methods of pgx.Tx; the rest are not scripted.
type tx struct {
	pgx.Tx
	db *DB
}

func (t *tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *tx) Commit(context.Context) error {
	t.db.Committed = true
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if !t.db.Committed {
		t.db.RolledBack = true
	}
	return nil
}

type row struct {
	values []any
	err    error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type rows struct {
	data [][]any
	pos  int
	err  error
}

func (r *rows) Close()                                       {}
func (r *rows) Err() error                                   { return r.err }
func (r *rows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rows) RawValues() [][]byte                          { return nil }
func (r *rows) Conn() *pgx.Conn                              { return nil }

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *rows) Scan(dest ...any) error {
	if err := assign(dest, r.data[r.pos]); err != nil {
		r.err = err
		return err
	}
	return nil
}

func (r *rows) Values() ([]any, error) { return r.data[r.pos], nil }

// assign copies src into the scan targets, allocating for pointer columns.
func assign(dest, src []any) error {
	if len(dest) != len(src) {
		return fmt.Errorf("dbtest: scan %d columns into %d targets", len(src), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("dbtest: target %d is not a pointer", i)
		}
		ev := dv.Elem()
		if src[i] == nil {
			ev.Set(reflect.Zero(ev.Type()))
			continue
		}
		sv := reflect.ValueOf(src[i])
		switch {
		case sv.Type().AssignableTo(ev.Type()):
			ev.Set(sv)
		case sv.Type().ConvertibleTo(ev.Type()) && sv.Kind() == ev.Kind():
			ev.Set(sv.Convert(ev.Type()))
		case ev.Kind() == reflect.Pointer && sv.Type().AssignableTo(ev.Type().Elem()):
			p := reflect.New(ev.Type().Elem())
			p.Elem().Set(sv)
			ev.Set(p)
		default:
			return fmt.Errorf("dbtest: cannot scan %T into %s", src[i], ev.Type())
		}
	}
	return nil
}
