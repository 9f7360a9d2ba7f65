// Package gate decides whether a request may proceed based on the API key
// it presents and the failure history of the client address.
package gate

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/baas/ledger"
)

// Result is the outcome of a key check.
type Result int

const (
	Allowed Result = iota
	Blocked
	InvalidKey
)

func (r Result) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case Blocked:
		return "blocked"
	default:
		return "invalid_key"
	}
}

// Config is the registered secret and the lockout policy.
type Config struct {
	Key         string        // registered key, compared in constant time
	KeyHash     string        // bcrypt hash of the key, used when Key is empty
	MaxAttempts int           // failures before a client is blocked
	Window      time.Duration // how long a blocked client stays blocked
	Debug       bool          // count failures but never block
}

// Gate checks keys and maintains the attempt ledger.
type Gate struct {
	cfg   Config
	store ledger.Store
	now   func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(g *Gate) { g.now = now } }

// New creates a gate backed by store.
func New(cfg Config, store ledger.Store, opts ...Option) *Gate {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	g := &Gate{cfg: cfg, store: store, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Registered reports whether a key has been configured.
func (g *Gate) Registered() bool { return g.cfg.Key != "" || g.cfg.KeyHash != "" }

// Check judges presented for the client at ip.
//
// A client whose record has reached MaxAttempts is Blocked until Window has
// passed since its last counted failure; the record is not touched while
// blocked. An expired record is deleted before the key is compared. A wrong
// key counts one failure, capped at MaxAttempts. A right key clears the
// record. Ledger errors are logged and otherwise ignored, so an unavailable
// ledger never locks anyone out.
func (g *Gate) Check(ctx context.Context, presented, ip string) Result {
	if !g.Registered() {
		slog.Warn("gate: no api key registered", "ip", ip)
		return InvalidKey
	}
	now := g.now()

	rec, found, err := g.store.Get(ctx, ip)
	if err != nil {
		slog.Warn("gate: ledger read failed", "ip", ip, "error", err)
		found = false
	}
	if found {
		switch {
		case rec.Expired(now, g.cfg.Window):
			g.forget(ctx, ip)
			found = false
		case rec.Count >= g.cfg.MaxAttempts:
			if !g.cfg.Debug {
				slog.Warn("gate: blocked", "ip", ip, "failures", rec.Count,
					"until", rec.Last.Add(g.cfg.Window))
				return Blocked
			}
			slog.Debug("gate: blocked client let through in debug mode", "ip", ip)
		}
	}

	if g.match(presented) {
		if found {
			g.forget(ctx, ip)
		}
		return Allowed
	}

	rec, err = ledger.Increment(ctx, g.store, ip, g.cfg.MaxAttempts, now)
	if err != nil {
		slog.Warn("gate: ledger write failed", "ip", ip, "error", err)
	}
	slog.Warn("gate: invalid key", "ip", ip, "failures", rec.Count)
	return InvalidKey
}

func (g *Gate) match(presented string) bool {
	if presented == "" {
		return false
	}
	if g.cfg.Key != "" {
		return subtle.ConstantTimeCompare([]byte(presented), []byte(g.cfg.Key)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(g.cfg.KeyHash), []byte(presented)) == nil
}

func (g *Gate) forget(ctx context.Context, ip string) {
	if err := g.store.Delete(ctx, ip); err != nil {
		slog.Warn("gate: ledger delete failed", "ip", ip, "error", err)
	}
}
