// Package shield provides the HTTP middleware every BaaS response passes
// through: response headers, request body limits, request tracing, client
// address extraction and the configuration fallback.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(shield.HeadToGet)
//	r.Use(shield.SecurityHeaders(shield.DefaultHeaders(cfg.Debug)))
//	r.Use(shield.MaxFormBody(cfg.MaxBodyBytes))
//	r.Use(shield.ClientIP(cfg.TrustProxy))
//	r.Use(shield.TraceID)
//	r.Use(fallback.Middleware)
package shield

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Stack returns the standard middleware stack in order:
// HeadToGet → SecurityHeaders → MaxFormBody → ClientIP → TraceID → Fallback.
// fb may be nil.
func Stack(debug, trustProxy bool, maxBody int64, fb *Fallback) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders(debug)),
		MaxFormBody(maxBody),
		ClientIP(trustProxy),
		TraceID,
	}
	if fb != nil {
		stack = append(stack, fb.Middleware)
	}
	return stack
}
