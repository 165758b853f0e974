package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "medverify/pkg/domain"
	audit "medverify/pkg/platform/audit"
)

// Store implements audit.Store on the audit_events table. It is the durable
// sink when no Kafka brokers are configured.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event under a fresh ID.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	return s.AppendWithID(ctx, uuid.New(), event)
}

// AppendWithID inserts an event under eventID. Replays of the same ID are
// ignored, so the audit consumer can redeliver safely. The category is always
// derived from the action.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, doctor_id, log_entry_id, action,
			decision, reason, reason_code, subject_id_hash,
			request_id, client_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(audit.AuditEvent(event.Action).Category()),
		event.Timestamp,
		nullableUUID(uuid.UUID(event.DoctorID)),
		nullableUUID(uuid.UUID(event.LogEntryID)),
		event.Action,
		event.Decision,
		event.Reason,
		event.ReasonCode,
		event.SubjectIDHash,
		event.RequestID,
		event.ClientAgent,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByDoctor returns a doctor's events, oldest first.
func (s *Store) ListByDoctor(ctx context.Context, doctorID id.DoctorID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, doctor_id, log_entry_id, action,
			   decision, reason, reason_code, subject_id_hash,
			   request_id, client_agent
		FROM audit_events
		WHERE doctor_id = $1
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(doctorID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			category   string
			doctorID   uuid.NullUUID
			logEntryID uuid.NullUUID
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&doctorID,
			&logEntryID,
			&event.Action,
			&event.Decision,
			&event.Reason,
			&event.ReasonCode,
			&event.SubjectIDHash,
			&event.RequestID,
			&event.ClientAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if doctorID.Valid {
			event.DoctorID = id.DoctorID(doctorID.UUID)
		}
		if logEntryID.Valid {
			event.LogEntryID = id.LogEntryID(logEntryID.UUID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullableUUID(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}
