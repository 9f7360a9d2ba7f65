// Package baas is the HTTP front of the server: it parses
// /<action>.<qualifier>/<table> routes, passes every call through the
// access gate and dispatches row operations, table checks and attached
// extensions.
package baas

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/baas/engine"
	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/gate"
	"github.com/hazyhaar/baas/idgen"
	"github.com/hazyhaar/baas/kit"
	"github.com/hazyhaar/baas/rows"
	"github.com/hazyhaar/baas/shield"
)

const routeTableExists = "table.exists"

// Options configures a Server.
type Options struct {
	Engine       *engine.Engine
	Gate         *gate.Gate
	Debug        bool
	TrustProxy   bool  // client address from X-Forwarded-For
	MaxBodyBytes int64 // form body cap, 0 disables it
}

// Server serves the BaaS API.
type Server struct {
	engine *engine.Engine
	rows   *rows.Dispatcher
	gate   *gate.Gate
	debug  bool
	opts   Options

	mu         sync.RWMutex
	extensions map[string]extension
}

// New creates a server. Engine and Gate are required.
func New(opts Options) *Server {
	return &Server{
		engine:     opts.Engine,
		rows:       rows.NewDispatcher(opts.Engine),
		gate:       opts.Gate,
		debug:      opts.Debug,
		opts:       opts,
		extensions: make(map[string]extension),
	}
}

// Handler returns the routed handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.Stack(s.debug, s.opts.TrustProxy, s.opts.MaxBodyBytes, nil) {
		r.Use(mw)
	}
	r.Use(requestID)
	r.Use(s.recoverer)

	r.Get("/healthz", s.healthz)
	r.Post("/{route}", s.serve)
	r.Post("/{route}/{table}", s.serve)
	r.NotFound(s.notImplemented)
	r.MethodNotAllowed(s.methodNotAllowed)
	return r
}

// requestID tags the request with an X-Request-ID, reusing a short one sent
// by the client.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = idgen.Request()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(kit.WithRequestID(r.Context(), id)))
	})
}

func builtin(route string) bool {
	if route == routeTableExists || route == "healthz" {
		return true
	}
	_, ok := rows.ParseAction(route)
	return ok
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	route := chi.URLParam(r, "route")
	table := chi.URLParam(r, "table")
	ctx := kit.WithRoute(r.Context(), route)
	r = r.WithContext(ctx)

	req, err := parseRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ext, isExt := s.extension(route)
	if !isExt || ext.requireKey {
		if res := s.gate.Check(ctx, req.key, kit.GetClientIP(ctx)); res != gate.Allowed {
			s.reject(w, r, res, req.key)
			return
		}
	}
	if req.err != nil {
		s.fail(w, r, req.err)
		return
	}

	switch {
	case isExt:
		s.serveExtension(w, r, ext, table, req.payload)
	case route == routeTableExists:
		s.tableExists(w, r, table)
	default:
		action, ok := rows.ParseAction(route)
		if !ok || table == "" {
			s.notImplemented(w, r)
			return
		}
		out, err := s.rows.Dispatch(ctx, action, table, req.payload)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		shield.WriteJSON(w, http.StatusOK, out.Envelope(s.debug))
	}
}

func (s *Server) tableExists(w http.ResponseWriter, r *http.Request, table string) {
	if table == "" {
		s.fail(w, r, fault.Validationf("Missing table name").WithFix("Use: table.exists/<table>"))
		return
	}
	ok, err := s.engine.Exists(r.Context(), table)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shield.WriteJSON(w, http.StatusOK, map[string]any{
		"Status": "Success",
		"Table":  table,
		"Exists": ok,
	})
}

func (s *Server) serveExtension(w http.ResponseWriter, r *http.Request, ext extension, table string, payload map[string]any) {
	ec := &ExtensionContext{Table: table, Payload: payload, Request: r, engine: s.engine}
	out, err := ext.fn(r.Context(), ec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shield.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) notImplemented(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, fault.New(fault.NotImplemented, "Not implemented").
		WithFix("Use one of row.get, row.set, row.delete, row.insert or table.exists").
		With("Request", r.URL.Path))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	fe := fault.Validationf("Method not allowed").
		WithFix("Send a POST form with JSON and APIKey fields").
		With("Method", r.Method)
	shield.GetLogger(r.Context()).Warn("baas: request rejected", "kind", fe.Kind.String(), "error", fe.Message)
	w.Header().Set("Allow", http.MethodPost)
	shield.WriteJSON(w, http.StatusMethodNotAllowed, fe.Envelope(s.debug))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.engine.DB().PingContext(ctx); err != nil {
		shield.GetLogger(ctx).Error("baas: health check failed", "error", err)
		shield.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"Status": "Failed"})
		return
	}
	shield.WriteJSON(w, http.StatusOK, map[string]any{"Status": "Success"})
}
