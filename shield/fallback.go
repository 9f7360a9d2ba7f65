package shield

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/baas/fault"
)

// Fallback answers every request with a stored error envelope while the
// server cannot serve, typically because its configuration is invalid.
// The error is re-evaluated by StartReloader so the server recovers once
// the cause is fixed, without a restart.
type Fallback struct {
	err     atomic.Pointer[fault.Error]
	debug   bool
	exclude []string // path prefixes that are always served (e.g. /healthz)
}

// NewFallback creates an inactive fallback. Paths matching any of
// excludePrefixes are never intercepted.
func NewFallback(debug bool, excludePrefixes ...string) *Fallback {
	return &Fallback{debug: debug, exclude: excludePrefixes}
}

// Set activates the fallback with err. A nil err clears it.
func (f *Fallback) Set(err error) {
	if err == nil {
		if f.err.Swap(nil) != nil {
			slog.Info("shield: fallback cleared")
		}
		return
	}
	fe := fault.As(err)
	if f.err.Swap(fe) == nil {
		slog.Error("shield: fallback enabled", "error", fe)
	}
}

// Err returns the active error, or nil.
func (f *Fallback) Err() *fault.Error { return f.err.Load() }

// Active reports whether requests are being intercepted.
func (f *Fallback) Active() bool { return f.err.Load() != nil }

// StartReloader calls check every interval and feeds its result to Set.
// Stops when done is closed.
func (f *Fallback) StartReloader(done <-chan struct{}, interval time.Duration, check func() error) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				f.Set(check())
			}
		}
	}()
}

// Middleware writes the stored envelope when the fallback is active.
// Excluded prefixes pass through.
func (f *Fallback) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fe := f.err.Load()
		if fe == nil {
			next.ServeHTTP(w, r)
			return
		}
		for _, prefix := range f.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}
		WriteJSON(w, fe.HTTPStatus(), fe.Envelope(f.debug))
	})
}
