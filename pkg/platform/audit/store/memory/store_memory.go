package memory

import (
	"context"
	"sync"

	id "medverify/pkg/domain"
	audit "medverify/pkg/platform/audit"
)

// InMemoryStore keeps audit events per doctor. Used in development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.DoctorID][]audit.Event
	all    []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.DoctorID][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.DoctorID] = append(s.events[event.DoctorID], event)
	s.all = append(s.all, event)
	return nil
}

func (s *InMemoryStore) ListByDoctor(_ context.Context, doctorID id.DoctorID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[doctorID]...), nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.all...), nil
}
