// Package ratelimit caps how often one client can call the doctor API. Each
// verification attempt drives a real registry session, so the cap protects
// the registry as much as this service.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes the state of a client's window after a check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole seconds until the window frees a slot.
func (r *Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// Store counts requests in a sliding window per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// InMemoryStore is a process-local sliding window store. Keys whose window
// has emptied are dropped at most once per window.
type InMemoryStore struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string][]time.Time), now: time.Now}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)
	if now.Sub(s.lastSweep) >= window {
		s.sweep(cutoff)
		s.lastSweep = now
	}
	stamps := s.windows[key]
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	stamps = stamps[i:]

	if len(stamps) >= limit {
		s.windows[key] = stamps
		return &Result{Allowed: false, Limit: limit, ResetAt: stamps[0].Add(window)}, nil
	}

	stamps = append(stamps, now)
	s.windows[key] = stamps
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

// sweep drops every key whose newest request is at or before cutoff.
func (s *InMemoryStore) sweep(cutoff time.Time) {
	for key, stamps := range s.windows {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(s.windows, key)
		}
	}
}
