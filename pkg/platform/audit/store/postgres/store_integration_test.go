//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "medverify/pkg/domain"
	audit "medverify/pkg/platform/audit"
	auditpostgres "medverify/pkg/platform/audit/store/postgres"
	"medverify/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpostgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditpostgres.New(s.postgres.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *AuditStoreSuite) TestAppendAndListByDoctor() {
	ctx := context.Background()
	doctorID := id.NewDoctorID()
	entryID := id.NewLogEntryID()
	at := time.Date(2026, 6, 15, 11, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp:     at,
		DoctorID:      doctorID,
		LogEntryID:    entryID,
		Action:        string(audit.EventVerificationDecided),
		Decision:      "approved",
		ReasonCode:    "verified",
		SubjectIDHash: "abc123",
		RequestID:     "req-1",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: at.Add(time.Second),
		DoctorID:  doctorID,
		Action:    string(audit.EventTokenIssued),
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: at,
		DoctorID:  id.NewDoctorID(),
		Action:    string(audit.EventTokenIssued),
	}))

	events, err := s.store.ListByDoctor(ctx, doctorID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)

	decided := events[0]
	s.Equal(audit.CategoryCompliance, decided.Category)
	s.Equal(entryID, decided.LogEntryID)
	s.Equal("approved", decided.Decision)
	s.Equal("abc123", decided.SubjectIDHash)
	s.True(decided.Timestamp.Equal(at))

	issued := events[1]
	s.Equal(audit.CategoryOperations, issued.Category)
	s.True(issued.LogEntryID.IsNil())
}

func (s *AuditStoreSuite) TestEventsWithoutDoctorAreStored() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    string(audit.EventAuthFailed),
		Reason:    "invalid token",
	}))

	var category string
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT category FROM audit_events WHERE doctor_id IS NULL`).Scan(&category))
	s.Equal(string(audit.CategorySecurity), category)
}
