// Package ratelimit caps how many discovery requests one client may start
// inside a sliding time window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type Decision struct {
	Allowed    bool
	Remaining  int
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, clientID string) (Decision, error)
}

// Memory keeps per-client timestamps in process. Expired entries are purged
// lazily whenever that client is checked.
type Memory struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemory(maxRequests int, window time.Duration) *Memory {
	return &Memory{max: maxRequests, window: window, now: time.Now, hits: make(map[string][]time.Time)}
}

func (m *Memory) Allow(_ context.Context, clientID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	kept := m.hits[clientID][:0]
	for _, ts := range m.hits[clientID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	d := Decision{Limit: m.max, Window: m.window}
	if len(kept) >= m.max {
		m.hits[clientID] = kept
		d.RetryAfter = kept[0].Add(m.window).Sub(now)
		return d, nil
	}

	kept = append(kept, now)
	m.hits[clientID] = kept
	d.Allowed = true
	d.Remaining = m.max - len(kept)
	return d, nil
}

// Sweep drops clients whose every hit has expired.
func (m *Memory) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.window)
	for id, hits := range m.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(m.hits, id)
		}
	}
}
