package main

import (
	"log/slog"
	"sync/atomic"

	"github.com/hazyhaar/baas/trace"
)

// sqlStats counts traced statements over the life of the process.
type sqlStats struct {
	queries atomic.Int64
	execs   atomic.Int64
	failed  atomic.Int64
}

func (s *sqlStats) observe(e trace.Entry) {
	if e.Op == "Exec" {
		s.execs.Add(1)
	} else {
		s.queries.Add(1)
	}
	if e.Err != nil {
		s.failed.Add(1)
	}
}

// install registers s as the trace observer. The returned func removes it.
func (s *sqlStats) install() func() {
	trace.SetObserver(s.observe)
	return func() { trace.SetObserver(nil) }
}

func (s *sqlStats) log() {
	slog.Info("sql statements",
		"queries", s.queries.Load(), "execs", s.execs.Load(), "failed", s.failed.Load())
}
