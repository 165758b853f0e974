package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medverify/pkg/domain"
	audit "medverify/pkg/platform/audit"
	"medverify/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	doctorID := id.NewDoctorID()
	err := pub.Emit(context.Background(), audit.Event{
		DoctorID: doctorID,
		Action:   string(audit.EventVerificationDecided),
	})
	require.NoError(t, err)

	events, err := store.ListByDoctor(context.Background(), doctorID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventVerificationDecided), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	doctorID := id.NewDoctorID()
	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			DoctorID: doctorID,
			Action:   string(audit.EventTokenIssued),
		})
		require.NoError(t, err)
	}

	require.NoError(t, pub.Close())

	events, err := store.ListByDoctor(context.Background(), doctorID)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
	assert.Equal(t, audit.CategoryOperations, events[0].Category)
}

func TestPublisher_BufferFullNeverBlocks(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{
				DoctorID: id.NewDoctorID(),
				Action:   string(audit.EventVerificationDecided),
			})
			if err != nil {
				assert.True(t, errors.Is(err, ErrBufferFull))
			}
		}()
	}
	wg.Wait()
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	for name, opts := range map[string][]Option{
		"sync":  nil,
		"async": {WithAsyncBuffer(4)},
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.NewInMemoryStore()
			pub := NewPublisher(store, opts...)
			require.NoError(t, pub.Close())
			require.NoError(t, pub.Close(), "close is idempotent")

			doctorID := id.NewDoctorID()
			var err error
			require.NotPanics(t, func() {
				err = pub.Emit(context.Background(), audit.Event{DoctorID: doctorID, Action: string(audit.EventVerificationDecided)})
			})
			assert.ErrorIs(t, err, ErrClosed)

			events, err := store.ListByDoctor(context.Background(), doctorID)
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestPublisher_CloseRacesEmit(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(8))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{DoctorID: id.NewDoctorID(), Action: string(audit.EventTokenIssued)})
			if err != nil {
				assert.True(t, errors.Is(err, ErrClosed) || errors.Is(err, ErrBufferFull), err)
			}
		}()
	}
	require.NoError(t, pub.Close())
	wg.Wait()
}

func TestPublisher_Timestamps(t *testing.T) {
	t.Run("sets missing timestamp", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := NewPublisher(store)
		doctorID := id.NewDoctorID()

		before := time.Now()
		require.NoError(t, pub.Emit(context.Background(), audit.Event{DoctorID: doctorID, Action: "x"}))
		after := time.Now()

		events, err := store.ListByDoctor(context.Background(), doctorID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.False(t, events[0].Timestamp.Before(before))
		assert.False(t, events[0].Timestamp.After(after))
	})

	t.Run("preserves existing timestamp", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		pub := NewPublisher(store)
		doctorID := id.NewDoctorID()
		custom := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

		require.NoError(t, pub.Emit(context.Background(), audit.Event{DoctorID: doctorID, Action: "x", Timestamp: custom}))

		events, err := store.ListByDoctor(context.Background(), doctorID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, custom, events[0].Timestamp)
	})
}
