package sqlgen

import (
	"strconv"
	"strings"

	"github.com/hazyhaar/baas/sanitize"
)

// Statement is a complete SQL statement with its ordered bindings.
type Statement struct {
	SQL      string
	Bindings Bindings
}

func (s Statement) String() string { return s.SQL }

type builder struct {
	sb    strings.Builder
	binds Bindings
}

func (b *builder) text(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) fragment(prefix string, f Fragment) {
	if f.Empty() {
		return
	}
	b.sb.WriteString(prefix)
	b.sb.WriteString(f.SQL)
	b.binds = append(b.binds, f.Bindings...)
}

func (b *builder) done() Statement {
	b.sb.WriteString(";")
	return Statement{SQL: b.sb.String(), Bindings: b.binds}
}

func quoteTable(table string) string {
	return sanitize.QuoteIdent(sanitize.Table(table))
}

// Select builds SELECT * FROM `table` [WHERE ...] [LIMIT n];
func (c *Compiler) Select(table string, where Fragment, limit *int64) Statement {
	var b builder
	b.text("SELECT * FROM ", quoteTable(table))
	b.fragment(" WHERE ", where)
	if limit != nil {
		b.text(" LIMIT ", strconv.FormatInt(*limit, 10))
	}
	return b.done()
}

// Update builds UPDATE `table` SET ... [WHERE ...];
func (c *Compiler) Update(table string, set, where Fragment) Statement {
	var b builder
	b.text("UPDATE ", quoteTable(table))
	b.fragment(" SET ", set)
	b.fragment(" WHERE ", where)
	return b.done()
}

// Delete builds DELETE FROM `table` [WHERE ...];
func (c *Compiler) Delete(table string, where Fragment) Statement {
	var b builder
	b.text("DELETE FROM ", quoteTable(table))
	b.fragment(" WHERE ", where)
	return b.done()
}

// Insert builds INSERT INTO `table` (cols...) VALUES (:p...); with columns
// in the given order. Columns absent from values are skipped.
func (c *Compiler) Insert(table string, columns []string, values map[string]string) Statement {
	var cols, params []string
	var binds Bindings
	for _, col := range columns {
		v, ok := values[col]
		if !ok {
			continue
		}
		bd := c.bind(v, false)
		cols = append(cols, sanitize.QuoteIdent(col))
		params = append(params, ":"+bd.ID)
		binds = append(binds, bd)
	}

	var b builder
	b.text("INSERT INTO ", quoteTable(table),
		" (", strings.Join(cols, ", "), ") VALUES (", strings.Join(params, ", "), ")")
	b.binds = binds
	return b.done()
}
