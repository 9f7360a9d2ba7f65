// Package engine wraps the SQL handle the BaaS server talks to: it knows the
// engine kind, answers catalog questions (does a table exist, which columns
// does it have) and executes compiled statements with the named-then-
// positional binding fallback.
package engine

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/baas/dbopen"
	"github.com/hazyhaar/baas/sqlgen"
	_ "github.com/hazyhaar/baas/trace"
)

// Engine executes statements against one database.
type Engine struct {
	db      *sql.DB
	dialect sqlgen.Dialect
	timeout time.Duration
}

// New wraps db. timeout bounds every database call; zero disables it.
func New(db *sql.DB, dialect sqlgen.Dialect, timeout time.Duration) *Engine {
	return &Engine{db: db, dialect: dialect, timeout: timeout}
}

// Dialect returns the engine kind.
func (e *Engine) Dialect() sqlgen.Dialect { return e.dialect }

// DB returns the underlying handle.
func (e *Engine) DB() *sql.DB { return e.db }

// Compiler returns a fresh statement compiler for this engine.
func (e *Engine) Compiler() *sqlgen.Compiler { return sqlgen.NewCompiler(e.dialect, nil) }

// Settings selects and locates the database.
type Settings struct {
	Dialect  sqlgen.Dialect
	Path     string       // SQLite file
	MySQL    dbopen.MySQL // MySQL server
	Trace    bool         // log every statement (SQLite only)
	MaxConns int

	PingTimeout time.Duration // bound on the connectivity check, 0 keeps the default
}

// Open registers the SQL functions the compiler relies on and opens the
// database described by s.
func Open(s Settings) (*sql.DB, error) {
	opts := []dbopen.Option{dbopen.WithMaxOpenConns(s.MaxConns)}
	if s.PingTimeout > 0 {
		opts = append(opts, dbopen.WithPingTimeout(s.PingTimeout))
	}
	if s.Dialect == sqlgen.MySQL {
		return dbopen.OpenMySQL(s.MySQL, opts...)
	}
	if err := RegisterFunctions(); err != nil {
		return nil, fmt.Errorf("engine: register functions: %w", err)
	}
	opts = append(opts, dbopen.WithMkdirAll())
	if s.Trace {
		opts = append(opts, dbopen.WithTrace())
	}
	return dbopen.Open(s.Path, opts...)
}
