package baas

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/hazyhaar/baas/fault"
	"github.com/hazyhaar/baas/gate"
	"github.com/hazyhaar/baas/kit"
	"github.com/hazyhaar/baas/shield"
)

const noKey = "None provided"

// fail writes err as the failure envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	fe := fault.As(err)
	log := shield.GetLogger(r.Context()).With("route", kit.GetRoute(r.Context()))
	switch fe.Kind {
	case fault.Driver, fault.Configuration:
		log.Error("baas: request failed", "kind", fe.Kind.String(), "error", fe)
	default:
		log.Warn("baas: request rejected", "kind", fe.Kind.String(), "error", fe.Message)
	}
	shield.WriteJSON(w, fe.HTTPStatus(), fe.Envelope(s.debug))
}

// reject writes the access-denied response for a gate decision. A request
// that presented no key at all gets 406, every other refusal 403.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, res gate.Result, presented string) {
	ip := kit.GetClientIP(r.Context())
	echo := presented
	if echo == "" {
		echo = noKey
	}

	body := map[string]any{
		"Status":  "Failed",
		"Details": fmt.Sprintf("BaaS/%s, Connection: Close, IP-Address: %s", shield.Version, ip),
		"APIKey":  echo,
	}
	status := http.StatusForbidden
	if res == gate.Blocked {
		body["Error"] = "Blocked"
		body["Warning"] = "You are blocked from using this service."
	} else {
		body["Error"] = "Invalid API key"
		body["Warning"] = "You are using an invalid API key for this service."
		if presented == "" {
			status = http.StatusNotAcceptable
		}
	}

	w.Header().Set("API-Key", "Invalid")
	w.Header().Set("Connection", "close")
	shield.WriteJSON(w, status, body)
}

// recoverer turns a panic into a Driver envelope so every failure path
// answers with JSON.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}
			if rv == http.ErrAbortHandler {
				panic(rv)
			}
			shield.GetLogger(r.Context()).Error("baas: handler panic recovered",
				"panic", rv, "stack", string(debug.Stack()))
			fe := fault.New(fault.Driver, "Uncaught exception").WithDebug(fmt.Sprint(rv))
			shield.WriteJSON(w, http.StatusInternalServerError, fe.Envelope(s.debug))
		}()
		next.ServeHTTP(w, r)
	})
}
