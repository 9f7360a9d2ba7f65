// Package sqlgen compiles client filter expressions and value lists into
// parameterized SQL.
//
// Client values are never written into SQL text. Every value becomes a bind
// parameter with a generated name; only column and table names are
// interpolated, cleaned by package sanitize and wrapped in backticks.
//
//	c := sqlgen.NewCompiler(sqlgen.SQLite, nil)
//	where, err := c.CompileWhere([]sqlgen.Triple{{Left: "name", Op: sqlgen.Equals, Right: "alice"}})
//	stmt := c.Select("users", where, nil)
//	// stmt.SQL: SELECT * FROM `users` WHERE `name` = :x...;
package sqlgen

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/idgen"
	"github.com/hazyhaar/baas/sanitize"
)

// Triple is one filter unit: [left, operator, right].
// For Location, Left is "lat,lon" and Right the radius in kilometres.
type Triple struct {
	Left  string
	Op    Operator
	Tag   string // client tag as received, kept for logs
	Right string
}

// Pair is one column assignment: [field, value].
type Pair struct {
	Field string
	Value string
}

// Fragment is a piece of SQL text with the bindings it references.
type Fragment struct {
	SQL      string
	Bindings Bindings
}

// Empty reports whether the fragment carries no SQL.
func (f Fragment) Empty() bool { return f.SQL == "" }

// clauses accumulates compiled fragments in input order and joins them once
// at the end, so a dropped clause never leaves a dangling separator.
type clauses struct {
	parts []Fragment
}

func (cl *clauses) add(f Fragment) { cl.parts = append(cl.parts, f) }

func (cl *clauses) join(sep string) Fragment {
	if len(cl.parts) == 0 {
		return Fragment{}
	}
	texts := make([]string, len(cl.parts))
	var binds Bindings
	for i, p := range cl.parts {
		texts[i] = p.SQL
		binds = append(binds, p.Bindings...)
	}
	return Fragment{SQL: strings.Join(texts, sep), Bindings: binds}
}

// Compiler turns triples and pairs into fragments. One Compiler serves one
// statement: it remembers every parameter name it handed out and never
// repeats one.
type Compiler struct {
	dialect Dialect
	newID   idgen.Generator
	used    map[string]struct{}
}

// NewCompiler creates a compiler for dialect. A nil gen uses idgen.Param.
func NewCompiler(dialect Dialect, gen idgen.Generator) *Compiler {
	if gen == nil {
		gen = idgen.Param
	}
	return &Compiler{dialect: dialect, newID: gen, used: make(map[string]struct{})}
}

// Dialect returns the compiler's SQL dialect.
func (c *Compiler) Dialect() Dialect { return c.dialect }

func (c *Compiler) param() string {
	for {
		id := c.newID()
		if _, dup := c.used[id]; !dup {
			c.used[id] = struct{}{}
			return id
		}
	}
}

func (c *Compiler) bind(value string, numeric bool) Binding {
	return Binding{ID: c.param(), Value: value, Numeric: numeric}
}

func column(raw string) (string, error) {
	name := sanitize.Field(raw)
	if name == "" {
		return "", fault.Validationf("Empty field name").
			WithFix("Use a column name as the first element").
			With("Field", raw)
	}
	return sanitize.QuoteIdent(name), nil
}

// CompileWhere compiles triples into one fragment joined by " AND ", in
// input order. Triples with an Unknown operator contribute nothing.
// An empty list compiles to an empty fragment.
func (c *Compiler) CompileWhere(triples []Triple) (Fragment, error) {
	var cl clauses
	for _, t := range triples {
		f, ok, err := c.compileTriple(t)
		if err != nil {
			return Fragment{}, err
		}
		if !ok {
			slog.Warn("sqlgen: unknown operator dropped", "operator", t.Tag, "field", t.Left)
			continue
		}
		cl.add(f)
	}
	return cl.join(" AND "), nil
}

func (c *Compiler) compileTriple(t Triple) (Fragment, bool, error) {
	switch t.Op {
	case Equals, NotEquals, Like:
		col, err := column(t.Left)
		if err != nil {
			return Fragment{}, false, err
		}
		b := c.bind(t.Right, false)
		return Fragment{
			SQL:      fmt.Sprintf("%s %s :%s", col, t.Op.comparison(), b.ID),
			Bindings: Bindings{b},
		}, true, nil

	case Location:
		return c.compileLocation(t)

	default:
		return Fragment{}, false, nil
	}
}

func (c *Compiler) compileLocation(t Triple) (Fragment, bool, error) {
	coords := strings.Split(t.Left, ",")
	if len(coords) < 2 {
		return Fragment{}, false, fault.Validationf("Location expects \"lat,lon\"").
			WithFix("Use: [\"lat,lon\", \"location\", radiusInKm]").
			With("Where", []string{t.Left, t.Tag, t.Right})
	}
	for _, v := range []string{coords[0], coords[1], t.Right} {
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return Fragment{}, false, fault.Validationf("Location values must be numbers").
				WithFix("Use: [\"lat,lon\", \"location\", radiusInKm]").
				With("Value", v).
				With("Where", []string{t.Left, t.Tag, t.Right})
		}
	}
	lat := c.bind(coords[0], true)
	lon := c.bind(coords[1], true)
	radius := c.bind(t.Right, true)

	var sql string
	if c.dialect == SQLite {
		sql = fmt.Sprintf("DISTANCE(latitude, longitude, :%s, :%s) < :%s", lat.ID, lon.ID, radius.ID)
	} else {
		sql = fmt.Sprintf("ST_Distance(point(latitude, longitude), point(:%s, :%s)) < :%s", lat.ID, lon.ID, radius.ID)
	}
	return Fragment{SQL: sql, Bindings: Bindings{lat, lon, radius}}, true, nil
}

// CompileSet compiles pairs into one fragment joined by ", ", in input order.
func (c *Compiler) CompileSet(pairs []Pair) (Fragment, error) {
	var cl clauses
	for _, p := range pairs {
		col, err := column(p.Field)
		if err != nil {
			return Fragment{}, err
		}
		b := c.bind(p.Value, false)
		cl.add(Fragment{SQL: fmt.Sprintf("%s = :%s", col, b.ID), Bindings: Bindings{b}})
	}
	return cl.join(", "), nil
}
