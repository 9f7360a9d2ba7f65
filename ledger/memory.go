package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in a map. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Get(_ context.Context, ip string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[ip]
	return rec, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, rec Record) error {
	m.mu.Lock()
	m.records[rec.IP] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, ip string) error {
	m.mu.Lock()
	delete(m.records, ip)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Incr(_ context.Context, ip string, max int, now time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[ip]
	if !ok {
		rec = Record{IP: ip}
	}
	if rec.Count < max {
		rec.Count++
	}
	rec.Last = now
	m.records[ip] = rec
	return rec, nil
}

func (m *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for ip, rec := range m.records {
		if !rec.Last.After(cutoff) {
			delete(m.records, ip)
			n++
		}
	}
	return n, nil
}

// Len returns the number of records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
