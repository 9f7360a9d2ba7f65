// Package rows turns row.get, row.set, row.delete and row.insert requests
// into statements and runs them.
package rows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/baas/engine"
	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/sanitize"
	"github.com/hazyhaar/baas/sqlgen"
)

// Action is a row operation.
type Action int

const (
	Get Action = iota
	Set
	Delete
	Insert
)

var actionRoutes = map[string]Action{
	"row.get":    Get,
	"row.set":    Set,
	"row.delete": Delete,
	"row.insert": Insert,
}

// ParseAction maps a route prefix such as "row.get" to its Action.
func ParseAction(route string) (Action, bool) {
	a, ok := actionRoutes[route]
	return a, ok
}

// Route returns the route prefix of the action.
func (a Action) Route() string {
	switch a {
	case Set:
		return "row.set"
	case Delete:
		return "row.delete"
	case Insert:
		return "row.insert"
	default:
		return "row.get"
	}
}

func (a Action) String() string { return a.Route() }

// Backend is the database surface the dispatcher needs. *engine.Engine
// implements it.
type Backend interface {
	Catalog
	Exists(ctx context.Context, table string) (bool, error)
	Query(ctx context.Context, stmt sqlgen.Statement) ([]engine.Row, error)
	Exec(ctx context.Context, stmt sqlgen.Statement) (engine.Result, error)
	Compiler() *sqlgen.Compiler
}

// Outcome is the result of a successful dispatch.
type Outcome struct {
	Action       Action
	Rows         []engine.Row
	Info         string
	RowsAffected int64
	RowID        int64
	SQL          string
}

// Envelope renders the success body. The generated SQL is only included
// when debug is true.
func (o *Outcome) Envelope(debug bool) map[string]any {
	env := map[string]any{"Status": "Success"}
	switch o.Action {
	case Get:
		env["Rows"] = o.Rows
	case Insert:
		env["Info"] = o.Info
		env["RowID"] = o.RowID
	default:
		env["Info"] = o.Info
		env["RowsAffected"] = o.RowsAffected
	}
	if debug {
		env["Debug"] = o.SQL
	}
	return env
}

// Dispatcher runs row operations against one backend.
type Dispatcher struct {
	backend   Backend
	validator *Validator
}

// NewDispatcher creates a dispatcher over backend.
func NewDispatcher(backend Backend) *Dispatcher {
	return &Dispatcher{backend: backend, validator: NewValidator(backend)}
}

// Dispatch cleans the table name, checks that the table exists, compiles the payload for action and
// executes the statement. payload is the decoded JSON document. Every
// failure is a *fault.Error.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, table string, payload map[string]any) (*Outcome, error) {
	table = sanitize.Table(table)
	ok, err := d.backend.Exists(ctx, table)
	if err != nil {
		return nil, fault.As(err)
	}
	if !ok {
		return nil, fault.New(fault.NotFound, "Table \"%s\" does not exists", table).
			With("Table", table).
			With("Request", action.Route()+"/"+table)
	}

	c := d.backend.Compiler()
	var out *Outcome
	switch action {
	case Get:
		out, err = d.get(ctx, c, table, payload)
	case Set:
		out, err = d.set(ctx, c, table, payload)
	case Delete:
		out, err = d.delete(ctx, c, table, payload)
	case Insert:
		out, err = d.insert(ctx, c, table, payload)
	default:
		return nil, fault.New(fault.NotImplemented, "Invalid request").With("Request", fmt.Sprint(int(action)))
	}
	if err != nil {
		return nil, fault.As(err)
	}
	out.Action = action
	slog.Debug("rows: dispatched", "action", action.Route(), "table", table,
		"rows", len(out.Rows), "affected", out.RowsAffected)
	return out, nil
}

func where(c *sqlgen.Compiler, payload map[string]any) (sqlgen.Fragment, error) {
	triples, err := sqlgen.ParseWhere(payload["where"])
	if err != nil {
		return sqlgen.Fragment{}, err
	}
	return c.CompileWhere(triples)
}

func (d *Dispatcher) get(ctx context.Context, c *sqlgen.Compiler, table string, payload map[string]any) (*Outcome, error) {
	w, err := where(c, payload)
	if err != nil {
		return nil, err
	}
	stmt := c.Select(table, w, sqlgen.ParseLimit(payload["limit"]))
	rows, err := d.backend.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return &Outcome{Rows: rows, SQL: stmt.SQL}, nil
}

func (d *Dispatcher) set(ctx context.Context, c *sqlgen.Compiler, table string, payload map[string]any) (*Outcome, error) {
	pairs, err := sqlgen.ParseSet(payload["values"])
	if err != nil {
		return nil, err
	}
	set, err := c.CompileSet(pairs)
	if err != nil {
		return nil, err
	}
	w, err := where(c, payload)
	if err != nil {
		return nil, err
	}
	stmt := c.Update(table, set, w)
	res, err := d.backend.Exec(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return &Outcome{Info: "Row(s) updated", RowsAffected: res.RowsAffected, SQL: stmt.SQL}, nil
}

func (d *Dispatcher) delete(ctx context.Context, c *sqlgen.Compiler, table string, payload map[string]any) (*Outcome, error) {
	w, err := where(c, payload)
	if err != nil {
		return nil, err
	}
	stmt := c.Delete(table, w)
	res, err := d.backend.Exec(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return &Outcome{Info: "Row(s) deleted", RowsAffected: res.RowsAffected, SQL: stmt.SQL}, nil
}

func (d *Dispatcher) insert(ctx context.Context, c *sqlgen.Compiler, table string, payload map[string]any) (*Outcome, error) {
	values, err := sqlgen.ParseInsert(payload["values"])
	if err != nil {
		return nil, err
	}
	cols, err := d.validator.Validate(ctx, table, values)
	if err != nil {
		var missing *MissingFieldError
		if errors.As(err, &missing) {
			return nil, fault.Validationf("Missing required parameter").
				WithFix(fmt.Sprintf("Add %q to values", missing.Field)).
				With("Parameter", missing.Field).
				With("Table", table)
		}
		return nil, err
	}
	stmt := c.Insert(table, cols, values)
	res, err := d.backend.Exec(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return &Outcome{Info: "Row inserted", RowID: res.LastInsertID, SQL: stmt.SQL}, nil
}
