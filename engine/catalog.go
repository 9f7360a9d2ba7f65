package engine

import (
	"context"
	"regexp"

	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/sanitize"
	"github.com/hazyhaar/baas/sqlgen"
)

// NoTable is the name TableFromSQL returns when a statement names no table.
// No catalog contains it, so existence checks on it fail.
const NoTable = "Error"

var tableRe = regexp.MustCompile("(?i)\\b(?:FROM|INTO|TABLE)\\s+`?([A-Za-z0-9_]+)`?")

// TableFromSQL extracts the first table named after FROM, INTO or TABLE.
func TableFromSQL(query string) string {
	m := tableRe.FindStringSubmatch(query)
	if m == nil {
		return NoTable
	}
	return m[1]
}

const (
	sqliteExistsQuery = "SELECT count(*) FROM `sqlite_master` WHERE `type` = 'table' AND `name` = ?"
	mysqlExistsQuery  = "SELECT count(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"

	sqliteColumnsQuery = "SELECT name FROM pragma_table_info(?) ORDER BY cid"
)

// ExistsQuery returns the catalog query used for dialect.
func ExistsQuery(d sqlgen.Dialect) string {
	if d == sqlgen.MySQL {
		return mysqlExistsQuery
	}
	return sqliteExistsQuery
}

// Exists reports whether table is present in the catalog. The name is bound,
// never interpolated. A failed catalog query is not retried.
func (e *Engine) Exists(ctx context.Context, table string) (bool, error) {
	name := sanitize.Table(table)
	if name == "" || name == NoTable {
		return false, nil
	}
	ctx, cancel := e.bound(ctx)
	defer cancel()

	var n int
	if err := e.db.QueryRowContext(ctx, ExistsQuery(e.dialect), name).Scan(&n); err != nil {
		return false, fault.FromDriver(err).WithDebug(ExistsQuery(e.dialect))
	}
	return n > 0, nil
}

// Columns returns the table's column names in declaration order, read
// fresh from the catalog.
func (e *Engine) Columns(ctx context.Context, table string) ([]string, error) {
	name := sanitize.Table(table)
	ctx, cancel := e.bound(ctx)
	defer cancel()

	var (
		query string
		args  []any
	)
	if e.dialect == sqlgen.MySQL {
		query = "SHOW COLUMNS FROM " + sanitize.QuoteIdent(name)
	} else {
		query = sqliteColumnsQuery
		args = []any{name}
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fault.FromDriver(err).WithDebug(query)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fault.FromDriver(err)
	}
	// SHOW COLUMNS yields Field, Type, Null, Key, Default, Extra; the name
	// is always first.
	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(any)
	}
	var names []string
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fault.FromDriver(err)
		}
		names = append(names, asString(*(dest[0].(*any))))
	}
	if err := rows.Err(); err != nil {
		return nil, fault.FromDriver(err)
	}
	return names, nil
}

func (e *Engine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}
