package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medverify/internal/verification/ledger"
	id "medverify/pkg/domain"
	"medverify/pkg/platform/sentinel"
)

func newPendingEntry(doctorID id.DoctorID, createdAt time.Time) *ledger.Entry {
	return &ledger.Entry{
		ID:         id.NewLogEntryID(),
		DoctorID:   doctorID,
		PMDCNumber: "PK-1001",
		FullName:   "Ali Khan",
		FatherName: "Tariq Khan",
		Status:     ledger.StatusPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// runStoreContract exercises the behaviour every ledger.Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	approve := ledger.Decision{Status: ledger.StatusApproved, Reason: "PMDC verification successful", ReasonCode: "verified"}
	reject := ledger.Decision{Status: ledger.StatusRejected, Reason: "Name does not match", ReasonCode: "name_mismatch"}

	t.Run("create and find round trip", func(t *testing.T) {
		s := newStore(t)
		entry := newPendingEntry(id.NewDoctorID(), base)
		require.NoError(t, s.Create(ctx, entry))

		got, err := s.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, got.ID)
		assert.Equal(t, entry.DoctorID, got.DoctorID)
		assert.Equal(t, "PK-1001", got.PMDCNumber)
		assert.Equal(t, "Ali Khan", got.FullName)
		assert.Equal(t, ledger.StatusPending, got.Status)
		assert.True(t, base.Equal(got.CreatedAt))
	})

	t.Run("find missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByID(ctx, id.NewLogEntryID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("decide pending entry", func(t *testing.T) {
		s := newStore(t)
		entry := newPendingEntry(id.NewDoctorID(), base)
		require.NoError(t, s.Create(ctx, entry))

		decidedAt := base.Add(time.Minute)
		got, err := s.Decide(ctx, entry.ID, approve, decidedAt)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusApproved, got.Status)
		assert.Equal(t, "PMDC verification successful", got.Reason)
		assert.Equal(t, "verified", got.ReasonCode)
		assert.True(t, decidedAt.Equal(got.UpdatedAt))
		assert.Equal(t, "Ali Khan", got.FullName)
	})

	t.Run("second decision conflicts and does not overwrite", func(t *testing.T) {
		s := newStore(t)
		entry := newPendingEntry(id.NewDoctorID(), base)
		require.NoError(t, s.Create(ctx, entry))
		_, err := s.Decide(ctx, entry.ID, reject, base)
		require.NoError(t, err)

		_, err = s.Decide(ctx, entry.ID, approve, base)
		assert.ErrorIs(t, err, sentinel.ErrConflict)

		got, err := s.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusRejected, got.Status)
	})

	t.Run("decide missing entry", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Decide(ctx, id.NewLogEntryID(), approve, base)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("concurrent decisions have one winner", func(t *testing.T) {
		s := newStore(t)
		entry := newPendingEntry(id.NewDoctorID(), base)
		require.NoError(t, s.Create(ctx, entry))

		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d := approve
				if i%2 == 0 {
					d = reject
				}
				_, err := s.Decide(ctx, entry.ID, d, base)
				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, sentinel.ErrConflict):
					conflicts.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(9), conflicts.Load())
	})

	t.Run("list by doctor newest first", func(t *testing.T) {
		s := newStore(t)
		doctorID := id.NewDoctorID()
		older := newPendingEntry(doctorID, base)
		newer := newPendingEntry(doctorID, base.Add(time.Hour))
		other := newPendingEntry(id.NewDoctorID(), base)
		for _, e := range []*ledger.Entry{older, newer, other} {
			require.NoError(t, s.Create(ctx, e))
		}

		got, err := s.ListByDoctor(ctx, doctorID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newer.ID, got[0].ID)
		assert.Equal(t, older.ID, got[1].ID)
	})
}
