package baas

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hazyhaar/baas/engine"
	"github.com/hazyhaar/baas/sanitize"
)

// ExtensionFunc serves a custom route. The returned value is written as
// the JSON response; a returned error is rendered as a failure envelope.
type ExtensionFunc func(ctx context.Context, ec *ExtensionContext) (any, error)

// ExtensionContext is what an extension gets to work with.
type ExtensionContext struct {
	Table   string         // path segment after the route, may be empty
	Payload map[string]any // decoded JSON document
	Request *http.Request
	engine  *engine.Engine
}

// Execute runs query with named bindings through the same executor row
// operations use. The table named in the query must exist. Statements other
// than SELECT or WITH return one row with RowsAffected and LastInsertID.
func (ec *ExtensionContext) Execute(ctx context.Context, query string, bindings map[string]string) ([]engine.Row, error) {
	return ec.engine.Execute(ctx, query, bindings)
}

// EscapeString escapes s for use inside a quoted SQL string literal.
func (ec *ExtensionContext) EscapeString(s string) string {
	return sanitize.EscapeString(s)
}

type extension struct {
	fn         ExtensionFunc
	requireKey bool
}

// AttachExtension registers fn under route, e.g. "test.extension". When
// requireKey is true the call passes the access gate first. Built-in
// routes cannot be replaced.
func (s *Server) AttachExtension(route string, fn ExtensionFunc, requireKey bool) error {
	route = strings.TrimSpace(route)
	switch {
	case route == "" || strings.ContainsAny(route, "/?#"):
		return fmt.Errorf("baas: invalid extension route %q", route)
	case fn == nil:
		return fmt.Errorf("baas: extension %q has no handler", route)
	case builtin(route):
		return fmt.Errorf("baas: route %q is built in", route)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.extensions[route]; dup {
		return fmt.Errorf("baas: extension %q already attached", route)
	}
	s.extensions[route] = extension{fn: fn, requireKey: requireKey}
	return nil
}

func (s *Server) extension(route string) (extension, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ext, ok := s.extensions[route]
	return ext, ok
}
