package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medverify/pkg/domain"
)

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire is rejected until release", func(t *testing.T) {
		g := NewMemoryGuard(time.Minute)
		entryID := id.NewLogEntryID()

		release, err := g.Acquire(ctx, entryID)
		require.NoError(t, err)

		_, err = g.Acquire(ctx, entryID)
		assert.ErrorIs(t, err, ErrInFlight)

		require.NoError(t, release(ctx))
		_, err = g.Acquire(ctx, entryID)
		assert.NoError(t, err)
	})

	t.Run("entries are independent", func(t *testing.T) {
		g := NewMemoryGuard(time.Minute)
		_, err := g.Acquire(ctx, id.NewLogEntryID())
		require.NoError(t, err)
		_, err = g.Acquire(ctx, id.NewLogEntryID())
		assert.NoError(t, err)
	})

	t.Run("expired hold can be taken and stale release is ignored", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		g := NewMemoryGuard(time.Minute)
		g.now = func() time.Time { return now }
		entryID := id.NewLogEntryID()

		staleRelease, err := g.Acquire(ctx, entryID)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = g.Acquire(ctx, entryID)
		require.NoError(t, err)

		require.NoError(t, staleRelease(ctx))
		_, err = g.Acquire(ctx, entryID)
		assert.ErrorIs(t, err, ErrInFlight, "stale release must not free the new hold")
	})
	t.Run("expired holds are dropped", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		g := NewMemoryGuard(time.Minute)
		g.now = func() time.Time { return now }

		for range 5 {
			_, err := g.Acquire(ctx, id.NewLogEntryID())
			require.NoError(t, err)
		}
		require.Len(t, g.held, 5)

		now = now.Add(2 * time.Minute)
		entryID := id.NewLogEntryID()
		_, err := g.Acquire(ctx, entryID)
		require.NoError(t, err)

		assert.Len(t, g.held, 1)
		assert.Contains(t, g.held, entryID)
	})
}
