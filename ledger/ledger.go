// Package ledger persists per-client failure counters for the access gate.
//
// A Record is created on a client's first failed key check, incremented on
// each further failure and deleted once its window has elapsed or the
// client presents the right key. Stores are keyed by client IP.
//
// Backends:
//
//	FileStore   one file per IP holding the decimal count; mtime is the last failure
//	MemoryStore process-local map, for tests and single-instance setups
//	SQLiteStore one row per IP in an attempts table
//	RedisStore  one hash per IP with a TTL, shared across hosts
package ledger

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrInvalidIP is returned for keys that are not IP addresses.
var ErrInvalidIP = errors.New("ledger: invalid ip address")

// Record is the failure state of one client.
type Record struct {
	IP    string
	Count int
	Last  time.Time // time of the last counted failure
}

// Expired reports whether the record's window has elapsed at now.
func (r Record) Expired(now time.Time, window time.Duration) bool {
	return !now.Before(r.Last.Add(window))
}

// Store is the persistence contract used by the gate.
type Store interface {
	// Get returns the record for ip. ok is false when none exists.
	Get(ctx context.Context, ip string) (rec Record, ok bool, err error)
	// Put creates or replaces the record for rec.IP.
	Put(ctx context.Context, rec Record) error
	// Delete removes the record for ip. Deleting a missing record is not an error.
	Delete(ctx context.Context, ip string) error
	// Sweep removes every record whose last failure is at or before cutoff
	// and returns how many were removed.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// Incrementer is implemented by stores that can count a failure atomically.
// Incr adds one to the record for ip (creating it at 1), never past max, sets
// its last failure to now and returns the new state.
type Incrementer interface {
	Incr(ctx context.Context, ip string, max int, now time.Time) (Record, error)
}

// Increment counts one failure for ip, atomically when s supports it.
func Increment(ctx context.Context, s Store, ip string, max int, now time.Time) (Record, error) {
	if inc, ok := s.(Incrementer); ok {
		return inc.Incr(ctx, ip, max, now)
	}
	rec, ok, err := s.Get(ctx, ip)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		rec = Record{IP: ip}
	}
	if rec.Count < max {
		rec.Count++
	}
	rec.Last = now
	if err := s.Put(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func validIP(ip string) error {
	if net.ParseIP(ip) == nil {
		return ErrInvalidIP
	}
	return nil
}
