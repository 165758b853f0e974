// Package guard keeps two verification attempts from running against the same
// ledger entry at once.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	id "medverify/pkg/domain"
)

// ErrInFlight is returned when another attempt holds the entry.
var ErrInFlight = errors.New("verification already in progress")

// Release gives the entry back.
type Release func(ctx context.Context) error

// MemoryGuard is a process-local guard. Expired holds are dropped at most
// once per ttl.
type MemoryGuard struct {
	mu        sync.Mutex
	held      map[id.LogEntryID]time.Time
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryGuard creates a guard whose holds expire after ttl so a crashed
// attempt cannot wedge an entry.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{held: make(map[id.LogEntryID]time.Time), ttl: ttl, now: time.Now}
}

func (g *MemoryGuard) Acquire(_ context.Context, entryID id.LogEntryID) (Release, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastSweep) >= g.ttl {
		for held, expires := range g.held {
			if !now.Before(expires) {
				delete(g.held, held)
			}
		}
		g.lastSweep = now
	}
	if expires, ok := g.held[entryID]; ok && now.Before(expires) {
		return nil, ErrInFlight
	}
	expires := now.Add(g.ttl)
	g.held[entryID] = expires
	return func(context.Context) error {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.held[entryID] == expires {
			delete(g.held, entryID)
		}
		return nil
	}, nil
}
