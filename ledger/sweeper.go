package ledger

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes records whose window has elapsed.
type Sweeper struct {
	Store    Store
	Window   time.Duration
	Interval time.Duration
	Now      func() time.Time // defaults to time.Now
}

// SweepOnce removes every record whose last failure is at least Window old.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.Store.Sweep(ctx, now().Add(-s.Window))
}

// Start runs SweepOnce every Interval until ctx is done. Errors are logged
// and the loop keeps going.
func (s *Sweeper) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	tick := time.NewTicker(interval)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				n, err := s.SweepOnce(ctx)
				if err != nil {
					slog.Warn("ledger: sweep failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Debug("ledger: swept expired records", "count", n)
				}
			}
		}
	}()
}
