package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medverify/internal/verification/ledger"
	id "medverify/pkg/domain"
	"medverify/pkg/platform/sentinel"
)

const entryColumns = `id, doctor_id, pmdc_number, full_name, father_name, status, reason, reason_code, created_at, updated_at`

// PostgresStore persists ledger entries in the verification_logs table.
type PostgresStore struct {
	db    *sql.DB
	codec codec
}

func NewPostgres(db *sql.DB, opts ...Option) *PostgresStore {
	return &PostgresStore{db: db, codec: newCodec(opts)}
}

func (s *PostgresStore) Create(ctx context.Context, entry *ledger.Entry) error {
	sealed, err := s.codec.seal(entry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verification_logs (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(entry.ID), uuid.UUID(entry.DoctorID),
		sealed.PMDCNumber, sealed.FullName, sealed.FatherName,
		string(entry.Status), entry.Reason, entry.ReasonCode,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification log: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, entryID id.LogEntryID) (*ledger.Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM verification_logs WHERE id = $1`, uuid.UUID(entryID))
	entry, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find verification log: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListByDoctor(ctx context.Context, doctorID id.DoctorID) ([]*ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM verification_logs
		WHERE doctor_id = $1
		ORDER BY created_at DESC`, uuid.UUID(doctorID))
	if err != nil {
		return nil, fmt.Errorf("list verification logs: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Entry
	for rows.Next() {
		entry, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification log: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification logs: %w", err)
	}
	return out, nil
}

// Decide is a single conditional UPDATE; concurrent writers cannot both win.
func (s *PostgresStore) Decide(ctx context.Context, entryID id.LogEntryID, decision ledger.Decision, at time.Time) (*ledger.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE verification_logs
		SET status = $2, reason = $3, reason_code = $4, updated_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+entryColumns,
		uuid.UUID(entryID), string(decision.Status), decision.Reason, decision.ReasonCode, at,
	)
	entry, err := s.scan(row)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decide verification log: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM verification_logs WHERE id = $1)`, uuid.UUID(entryID),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check verification log: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scan(row scanner) (*ledger.Entry, error) {
	var (
		entryID, doctorID uuid.UUID
		status            string
		entry             ledger.Entry
	)
	if err := row.Scan(&entryID, &doctorID,
		&entry.PMDCNumber, &entry.FullName, &entry.FatherName,
		&status, &entry.Reason, &entry.ReasonCode,
		&entry.CreatedAt, &entry.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entry.ID = id.LogEntryID(entryID)
	entry.DoctorID = id.DoctorID(doctorID)
	entry.Status = ledger.Status(status)
	if err := s.codec.open(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
