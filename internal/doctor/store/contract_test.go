package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medverify/internal/doctor"
	"medverify/internal/verification"
	id "medverify/pkg/domain"
	"medverify/pkg/platform/sentinel"
)

func newProfile(createdAt time.Time) *doctor.Profile {
	return &doctor.Profile{
		ID:                 id.NewDoctorID(),
		FullName:           "Ali Khan",
		Email:              "ali.khan@example.pk",
		PMDCNumber:         "PK-1001",
		VerificationStatus: verification.ProfilePending,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) doctor.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("round trip", func(t *testing.T) {
		st := newStore(t)
		profile := newProfile(now)
		require.NoError(t, st.Create(ctx, profile))

		got, err := st.FindByID(ctx, profile.ID)
		require.NoError(t, err)
		assert.Equal(t, profile.Email, got.Email)
		assert.Equal(t, verification.ProfilePending, got.VerificationStatus)
		assert.True(t, profile.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("missing profile", func(t *testing.T) {
		_, err := newStore(t).FindByID(ctx, id.NewDoctorID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("transition from the expected status", func(t *testing.T) {
		st := newStore(t)
		profile := newProfile(now)
		require.NoError(t, st.Create(ctx, profile))

		later := now.Add(time.Minute)
		got, err := st.Transition(ctx, profile.ID, verification.ProfilePending, verification.ProfileVerified, "PK-1001-A", later)
		require.NoError(t, err)
		assert.Equal(t, verification.ProfileVerified, got.VerificationStatus)
		assert.Equal(t, "PK-1001-A", got.PMDCNumber)
		assert.True(t, later.Equal(got.UpdatedAt))
	})

	t.Run("transition from a stale status conflicts", func(t *testing.T) {
		st := newStore(t)
		profile := newProfile(now)
		require.NoError(t, st.Create(ctx, profile))

		_, err := st.Transition(ctx, profile.ID, verification.ProfileRejected, verification.ProfileVerified, "PK-1001", now)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("transition on a missing profile", func(t *testing.T) {
		_, err := newStore(t).Transition(ctx, id.NewDoctorID(), verification.ProfilePending, verification.ProfileVerified, "PK-1", now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
