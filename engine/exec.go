package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/hazyhaar/baas/dbopen"
	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/sqlgen"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Row is one result row. Columns keep the order the engine returned them,
// including when encoded as a JSON object.
type Row struct {
	cols []string
	vals []any
}

// Columns returns the column names.
func (r Row) Columns() []string { return r.cols }

// Get returns the value of column name.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.cols {
		if c == name {
			return r.vals[i], true
		}
	}
	return nil, false
}

// MarshalJSON encodes the row as an object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	stream := json.BorrowStream(nil)
	defer json.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, c := range r.cols {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(c)
		stream.WriteVal(r.vals[i])
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// Result is the outcome of a data-changing statement.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Query runs a SELECT. The statement is first executed with named bindings;
// when that fails or yields at most one row, it is rewritten to positional
// placeholders and executed again, and the second result wins. A call that
// still times out after its one retry is not re-run positionally.
func (e *Engine) Query(ctx context.Context, stmt sqlgen.Statement) ([]Row, error) {
	start := time.Now()
	rows, err := e.queryBounded(ctx, stmt.SQL, stmt.Bindings.Named())
	if err == nil && len(rows) > 1 {
		return rows, nil
	}
	if err != nil && dbopen.IsTimeout(err) {
		return nil, fault.FromDriver(err).WithDebug(stmt.SQL)
	}

	positional, args := stmt.Positional()
	prows, perr := e.queryBounded(ctx, positional, args)
	if perr != nil {
		if err == nil {
			// Positional rewrite failed but the named run did not.
			return rows, nil
		}
		return nil, fault.FromDriver(perr).WithDebug(stmt.SQL)
	}
	slog.Debug("engine: positional query",
		"named_error", err != nil, "named_rows", len(rows), "rows", len(prows),
		"duration", time.Since(start))
	return prows, nil
}

// Exec runs an UPDATE, DELETE or INSERT. Named bindings are tried first;
// only a failed named attempt is repeated with positional placeholders, so
// a mutation is never applied twice.
func (e *Engine) Exec(ctx context.Context, stmt sqlgen.Statement) (Result, error) {
	res, err := e.execBounded(ctx, stmt.SQL, stmt.Bindings.Named())
	if err == nil {
		return res, nil
	}
	if dbopen.IsTimeout(err) {
		return Result{}, fault.FromDriver(err).WithDebug(stmt.SQL)
	}
	slog.Debug("engine: named exec failed, retrying positionally", "error", err)

	positional, args := stmt.Positional()
	res, err = e.execBounded(ctx, positional, args)
	if err != nil {
		return Result{}, fault.FromDriver(err).WithDebug(stmt.SQL)
	}
	return res, nil
}

// Execute runs caller-written SQL with named parameters (":name" keys or
// bare names). The table is taken from the statement text and must exist.
// SELECT and WITH statements return their rows. Any other statement goes
// through Exec and returns a single row holding RowsAffected and
// LastInsertID. Used by server extensions.
func (e *Engine) Execute(ctx context.Context, query string, params map[string]string) ([]Row, error) {
	table := TableFromSQL(query)
	ok, err := e.Exists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fault.New(fault.NotFound, "Table \"%s\" does not exists", table).
			With("Table", table).
			With("Request", query)
	}

	stmt := sqlgen.Statement{SQL: query}
	for id, v := range params {
		stmt.Bindings = append(stmt.Bindings, sqlgen.Binding{ID: strings.TrimPrefix(id, ":"), Value: v})
	}
	if readOnly(query) {
		return e.Query(ctx, stmt)
	}
	res, err := e.Exec(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return []Row{{
		cols: []string{"RowsAffected", "LastInsertID"},
		vals: []any{res.RowsAffected, res.LastInsertID},
	}}, nil
}

// readOnly reports whether query starts with SELECT or WITH.
func readOnly(query string) bool {
	fields := strings.Fields(strings.TrimLeft(query, "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return true
	}
	return false
}

func (e *Engine) queryBounded(ctx context.Context, query string, args []any) ([]Row, error) {
	var out []Row
	err := dbopen.Bounded(ctx, e.timeout, func(ctx context.Context) error {
		rows, err := e.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = scanRows(rows)
		return err
	})
	return out, err
}

func (e *Engine) execBounded(ctx context.Context, query string, args []any) (Result, error) {
	var out Result
	err := dbopen.Bounded(ctx, e.timeout, func(ctx context.Context) error {
		res, err := e.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		out.RowsAffected, _ = res.RowsAffected()
		out.LastInsertID, _ = res.LastInsertId()
		return nil
	})
	return out, err
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, Row{cols: cols, vals: vals})
	}
	return out, rows.Err()
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}
