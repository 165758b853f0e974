//go:build integration

package consumer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	platformkafka "medverify/internal/platform/kafka"
	id "medverify/pkg/domain"
	audit "medverify/pkg/platform/audit"
	"medverify/pkg/platform/audit/consumer"
	auditkafka "medverify/pkg/platform/audit/store/kafka"
	auditpostgres "medverify/pkg/platform/audit/store/postgres"
	"medverify/pkg/testutil/containers"
)

type MaterializeSuite struct {
	suite.Suite
	brokers  []string
	postgres *containers.PostgresContainer
}

func TestMaterializeSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MaterializeSuite))
}

func (s *MaterializeSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *MaterializeSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *MaterializeSuite) TestPublishedEventsReachAuditTable() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	topic := "medverify.audit.materialize"

	producer, err := platformkafka.NewClient(s.brokers)
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(platformkafka.EnsureTopic(ctx, producer, topic, 1))

	doctorID := id.NewDoctorID()
	s.Require().NoError(auditkafka.New(producer, topic).Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		DoctorID:  doctorID,
		Action:    string(audit.EventVerificationDecided),
		Decision:  "approved",
	}))

	client, err := platformkafka.NewClient(s.brokers,
		kgo.ConsumerGroup("materialize-test"),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	s.Require().NoError(err)
	defer client.Close()

	store := auditpostgres.New(s.postgres.DB)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.New(client, store).Run(runCtx) }()

	s.Eventually(func() bool {
		events, err := store.ListByDoctor(ctx, doctorID)
		return err == nil && len(events) == 1
	}, 30*time.Second, 200*time.Millisecond)

	stop()
	s.ErrorIs(<-done, context.Canceled)
}
