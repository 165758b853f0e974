package consumer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "medverify/pkg/domain"
	audit "medverify/pkg/platform/audit"
	"medverify/pkg/platform/audit/consumer"
	auditkafka "medverify/pkg/platform/audit/store/kafka"
)

type recordingProducer struct {
	records []*kgo.Record
}

func (p *recordingProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.records = append(p.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r})
	}
	return results
}

type fakeMaterializer struct {
	events map[uuid.UUID]audit.Event
	err    error
}

func newFakeMaterializer() *fakeMaterializer {
	return &fakeMaterializer{events: make(map[uuid.UUID]audit.Event)}
}

func (m *fakeMaterializer) AppendWithID(_ context.Context, eventID uuid.UUID, event audit.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events[eventID] = event
	return nil
}

// scriptedFetcher returns one batch per poll, then cancels the run.
type scriptedFetcher struct {
	batches   [][]*kgo.Record
	cancel    context.CancelFunc
	committed []*kgo.Record
}

func (f *scriptedFetcher) PollFetches(context.Context) kgo.Fetches {
	if len(f.batches) == 0 {
		f.cancel()
		return nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return kgo.Fetches{{Topics: []kgo.FetchTopic{{
		Topic:      "medverify.audit",
		Partitions: []kgo.FetchPartition{{Partition: 0, Records: batch}},
	}}}}
}

func (f *scriptedFetcher) CommitRecords(_ context.Context, rs ...*kgo.Record) error {
	f.committed = append(f.committed, rs...)
	return nil
}

func published(t *testing.T, events ...audit.Event) []*kgo.Record {
	t.Helper()
	producer := &recordingProducer{}
	store := auditkafka.New(producer, "medverify.audit")
	for _, e := range events {
		require.NoError(t, store.Append(context.Background(), e))
	}
	return producer.records
}

func TestRun_StoresAndCommitsRecords(t *testing.T) {
	doctorID := id.NewDoctorID()
	records := published(t,
		audit.Event{Timestamp: time.Now(), DoctorID: doctorID, Action: string(audit.EventVerificationDecided), Decision: "approved"},
		audit.Event{Timestamp: time.Now(), DoctorID: doctorID, Action: string(audit.EventTokenIssued)},
	)
	malformed := &kgo.Record{Value: []byte("{")}

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &scriptedFetcher{batches: [][]*kgo.Record{{records[0], malformed}, {records[1]}}, cancel: cancel}
	store := newFakeMaterializer()

	err := consumer.New(fetcher, store).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, store.events, 2)
	assert.Len(t, fetcher.committed, 3, "malformed records are committed so they are not redelivered")
}

func TestRun_StopsWithoutCommittingOnStoreFailure(t *testing.T) {
	records := published(t, audit.Event{Timestamp: time.Now(), DoctorID: id.NewDoctorID(), Action: string(audit.EventTokenIssued)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &scriptedFetcher{batches: [][]*kgo.Record{records}, cancel: cancel}
	store := newFakeMaterializer()
	store.err = errors.New("database is down")

	err := consumer.New(fetcher, store).Run(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is down")
	assert.Empty(t, fetcher.committed)
}

func TestHandle_DropsComplianceEventWithoutDoctor(t *testing.T) {
	records := published(t, audit.Event{Timestamp: time.Now(), Action: string(audit.EventVerificationDecided)})
	store := newFakeMaterializer()

	err := consumer.New(nil, store).Handle(context.Background(), records[0])

	require.NoError(t, err)
	assert.Empty(t, store.events)
}

func TestHandle_KeepsSecurityEventWithoutDoctor(t *testing.T) {
	records := published(t, audit.Event{Timestamp: time.Now(), Action: string(audit.EventAuthFailed), Reason: "invalid token"})
	store := newFakeMaterializer()

	err := consumer.New(nil, store).Handle(context.Background(), records[0])

	require.NoError(t, err)
	require.Len(t, store.events, 1)
	for _, e := range store.events {
		assert.Equal(t, audit.CategorySecurity, e.Category)
	}
}
