package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"medverify/internal/verification/ledger"
	id "medverify/pkg/domain"
	"medverify/pkg/platform/sentinel"
)

// InMemoryStore keeps ledger entries in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.LogEntryID]*ledger.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.LogEntryID]*ledger.Entry)}
}

func (s *InMemoryStore) Create(_ context.Context, entry *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; ok {
		return sentinel.ErrConflict
	}
	stored := *entry
	s.entries[entry.ID] = &stored
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, entryID id.LogEntryID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *entry
	return &out, nil
}

func (s *InMemoryStore) ListByDoctor(_ context.Context, doctorID id.DoctorID) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ledger.Entry
	for _, entry := range s.entries {
		if entry.DoctorID == doctorID {
			e := *entry
			out = append(out, &e)
		}
	}
	slices.SortFunc(out, func(a, b *ledger.Entry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) Decide(_ context.Context, entryID id.LogEntryID, decision ledger.Decision, at time.Time) (*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if entry.Status != ledger.StatusPending {
		return nil, sentinel.ErrConflict
	}
	entry.Status = decision.Status
	entry.Reason = decision.Reason
	entry.ReasonCode = decision.ReasonCode
	entry.UpdatedAt = at
	out := *entry
	return &out, nil
}
