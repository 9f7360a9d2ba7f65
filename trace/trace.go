// Package trace provides transparent SQL tracing for modernc.org/sqlite.
//
// It registers a "sqlite-trace" driver that wraps the standard "sqlite" driver,
// intercepting every Exec and Query at the database/sql/driver level:
//
//	import _ "github.com/hazyhaar/baas/trace" // registers "sqlite-trace"
//
//	db, _ := dbopen.Open("app.db", dbopen.WithTrace())
//
// Every statement is logged via slog with adaptive levels (Debug, Warn >100ms,
// Error on failure). Trace IDs are read from context via kit.GetTraceID so
// SQL lines correlate with the HTTP request that issued them.
package trace

import (
	"database/sql"
	"database/sql/driver"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is a single SQL trace record handed to the observer.
type Entry struct {
	TraceID  string
	Op       string // "Exec" or "Query"
	Query    string
	Args     int // number of bound arguments
	Duration time.Duration
	Err      error
}

var (
	observer   func(Entry)
	observerMu sync.RWMutex
)

// SetObserver installs fn to receive every traced statement in addition to
// the slog line. Pass nil to remove it. fn runs on the query path and must
// not block.
func SetObserver(fn func(Entry)) {
	observerMu.Lock()
	observer = fn
	observerMu.Unlock()
}

func getObserver() func(Entry) {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return observer
}

// baseDriver returns the driver instance registered as "sqlite", so the
// wrapper shares its registered scalar functions.
func baseDriver() driver.Driver {
	db, err := sql.Open("sqlite", "")
	if err != nil {
		panic("trace: sqlite driver not registered: " + err.Error())
	}
	defer db.Close()
	return db.Driver()
}

func init() {
	sql.Register("sqlite-trace", &TracingDriver{Driver: baseDriver()})
}
