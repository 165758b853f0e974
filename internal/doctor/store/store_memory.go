// Package store holds doctor profile stores.
package store

import (
	"context"
	"sync"
	"time"

	"medverify/internal/doctor"
	"medverify/internal/verification"
	id "medverify/pkg/domain"
	"medverify/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.DoctorID]*doctor.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.DoctorID]*doctor.Profile)}
}

func (s *InMemoryStore) Create(_ context.Context, profile *doctor.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return sentinel.ErrConflict
	}
	stored := *profile
	s.profiles[profile.ID] = &stored
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, doctorID id.DoctorID) (*doctor.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[doctorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *profile
	return &out, nil
}

func (s *InMemoryStore) Transition(_ context.Context, doctorID id.DoctorID, from, to verification.ProfileStatus, pmdcNumber string, at time.Time) (*doctor.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[doctorID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if profile.VerificationStatus != from {
		return nil, sentinel.ErrConflict
	}
	profile.VerificationStatus = to
	profile.PMDCNumber = pmdcNumber
	profile.UpdatedAt = at
	out := *profile
	return &out, nil
}
