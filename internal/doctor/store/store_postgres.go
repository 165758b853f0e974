package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medverify/internal/doctor"
	"medverify/internal/verification"
	id "medverify/pkg/domain"
	"medverify/pkg/platform/privacy"
	"medverify/pkg/platform/sentinel"
)

const profileColumns = `id, full_name, email, pmdc_number, verification_status, created_at, updated_at`

// PostgresStore persists profiles in the doctors table. Email is sealed at
// rest when a sealer is configured.
type PostgresStore struct {
	db     *sql.DB
	sealer *privacy.Sealer
}

// NewPostgres builds the store. A nil sealer stores email in plaintext.
func NewPostgres(db *sql.DB, sealer *privacy.Sealer) *PostgresStore {
	return &PostgresStore{db: db, sealer: sealer}
}

func (s *PostgresStore) Create(ctx context.Context, profile *doctor.Profile) error {
	email, err := s.sealer.Seal(profile.Email)
	if err != nil {
		return fmt.Errorf("seal email: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO doctors (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(profile.ID), profile.FullName, email, profile.PMDCNumber,
		string(profile.VerificationStatus), profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, doctorID id.DoctorID) (*doctor.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM doctors WHERE id = $1`, uuid.UUID(doctorID))
	profile, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find doctor: %w", err)
	}
	return profile, nil
}

func (s *PostgresStore) Transition(ctx context.Context, doctorID id.DoctorID, from, to verification.ProfileStatus, pmdcNumber string, at time.Time) (*doctor.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE doctors
		SET verification_status = $3, pmdc_number = $4, updated_at = $5
		WHERE id = $1 AND verification_status = $2
		RETURNING `+profileColumns,
		uuid.UUID(doctorID), string(from), string(to), pmdcNumber, at,
	)
	profile, err := s.scan(row)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update doctor status: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, uuid.UUID(doctorID),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrConflict
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scan(row scanner) (*doctor.Profile, error) {
	var (
		doctorID uuid.UUID
		status   string
		profile  doctor.Profile
	)
	if err := row.Scan(&doctorID, &profile.FullName, &profile.Email, &profile.PMDCNumber,
		&status, &profile.CreatedAt, &profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	email, err := s.sealer.Open(profile.Email)
	if err != nil {
		return nil, fmt.Errorf("open email: %w", err)
	}
	profile.ID = id.DoctorID(doctorID)
	profile.Email = email
	profile.VerificationStatus = verification.ProfileStatus(status)
	return &profile, nil
}
