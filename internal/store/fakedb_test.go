package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB answers statements with canned results and records SQL and
// arguments. QueryRow takes the next entry of rowErrs; a nil entry (or an
// exhausted rowErrs) falls through to the next rowValues entry.
type fakeDB struct {
	execTag   string
	execErr   error
	rowErrs   []error
	rowValues [][]any
	queryRows [][]any
	queryErr  error

	queries   []string
	execArgs  [][]any
	queryArgs [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag(f.execTag), f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)
	f.queryArgs = append(f.queryArgs, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.queryRows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	f.queryArgs = append(f.queryArgs, args)
	if len(f.rowErrs) > 0 {
		var err error
		err, f.rowErrs = f.rowErrs[0], f.rowErrs[1:]
		if err != nil {
			return errRow{err: err}
		}
	}
	if len(f.rowValues) == 0 {
		return errRow{err: pgx.ErrNoRows}
	}
	var values []any
	values, f.rowValues = f.rowValues[0], f.rowValues[1:]
	return valueRow(values)
}

// lastQuery returns the most recent statement with whitespace collapsed.
func (f *fakeDB) lastQuery() string {
	if len(f.queries) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(f.queries[len(f.queries)-1]), " ")
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type valueRow []any

func (r valueRow) Scan(dest ...any) error { return scanValues(r, dest) }

// scanValues copies values into Scan destinations, allocating for pointer
// destinations such as **string.
func scanValues(values, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		value := reflect.ValueOf(v)
		switch {
		case value.Type().AssignableTo(target.Type()):
			target.Set(value)
		case target.Kind() == reflect.Pointer && value.Type().AssignableTo(target.Type().Elem()):
			ptr := reflect.New(target.Type().Elem())
			ptr.Elem().Set(value)
			target.Set(ptr)
		default:
			return fmt.Errorf("scan: column %d: cannot assign %T to %s", i, v, target.Type())
		}
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error { return scanValues(r.rows[r.pos], dest) }

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos], nil }
