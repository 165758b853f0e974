package doctor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"medverify/internal/verification"
	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
	"medverify/pkg/platform/audit"
	"medverify/pkg/platform/sentinel"
	"medverify/pkg/requestcontext"
)

// Store persists doctor profiles.
type Store interface {
	Create(ctx context.Context, profile *Profile) error
	FindByID(ctx context.Context, doctorID id.DoctorID) (*Profile, error)
	// Transition moves the profile from one status to another and sets its
	// license number. It returns sentinel.ErrConflict when the current status
	// is not from.
	Transition(ctx context.Context, doctorID id.DoctorID, from, to verification.ProfileStatus, pmdcNumber string, at time.Time) (*Profile, error)
}

// AuditPublisher emits audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store   Store
	auditor AuditPublisher
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a pending profile.
func (s *Service) Register(ctx context.Context, in Registration) (*Profile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	profile := &Profile{
		ID:                 id.NewDoctorID(),
		FullName:           in.FullName,
		Email:              in.Email,
		PMDCNumber:         in.PMDCNumber,
		VerificationStatus: verification.ProfilePending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, profile); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create doctor profile")
	}
	s.logger.InfoContext(ctx, "doctor profile registered",
		"doctor_id", profile.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return profile, nil
}

func (s *Service) Get(ctx context.Context, doctorID id.DoctorID) (*Profile, error) {
	profile, err := s.store.FindByID(ctx, doctorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "doctor not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load doctor profile")
	}
	return profile, nil
}

// MarkVerified records a registry-confirmed license number on the profile.
// Revoked profiles are never reinstated here.
func (s *Service) MarkVerified(ctx context.Context, doctorID id.DoctorID, registrationNumber string) (*Profile, error) {
	profile, err := s.transition(ctx, doctorID, func(current *Profile) (verification.ProfileStatus, string, error) {
		if current.VerificationStatus == verification.ProfileRevoked {
			return "", "", dErrors.New(dErrors.CodeConflict, "doctor profile is revoked")
		}
		return verification.ProfileVerified, registrationNumber, nil
	})
	if err != nil {
		return nil, err
	}

	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, audit.Event{
			DoctorID:    profile.ID,
			Action:      string(audit.EventProfileVerified),
			Decision:    string(profile.VerificationStatus),
			RequestID:   requestcontext.RequestID(ctx),
			ClientAgent: requestcontext.ClientAgent(ctx),
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit profile audit event", "doctor_id", profile.ID, "error", err)
		}
	}
	return profile, nil
}

// MarkRejected records a negative outcome. A verified or revoked profile is
// left as it is.
func (s *Service) MarkRejected(ctx context.Context, doctorID id.DoctorID) (*Profile, error) {
	return s.transition(ctx, doctorID, func(current *Profile) (verification.ProfileStatus, string, error) {
		switch current.VerificationStatus {
		case verification.ProfileVerified, verification.ProfileRevoked:
			return current.VerificationStatus, current.PMDCNumber, nil
		default:
			return verification.ProfileRejected, current.PMDCNumber, nil
		}
	})
}

type planFunc func(current *Profile) (verification.ProfileStatus, string, error)

// transition reads the profile, plans the change and applies it as a
// compare-and-set, re-planning once if another writer got there first.
func (s *Service) transition(ctx context.Context, doctorID id.DoctorID, plan planFunc) (*Profile, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.Get(ctx, doctorID)
		if err != nil {
			return nil, err
		}
		to, pmdcNumber, err := plan(current)
		if err != nil {
			return nil, err
		}
		if to == current.VerificationStatus && pmdcNumber == current.PMDCNumber {
			return current, nil
		}

		updated, err := s.store.Transition(ctx, doctorID, current.VerificationStatus, to, pmdcNumber, requestcontext.Now(ctx))
		if errors.Is(err, sentinel.ErrConflict) && attempt == 0 {
			continue
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "doctor profile changed concurrently")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "doctor not found")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update doctor profile")
		}

		s.logger.InfoContext(ctx, "doctor verification status changed",
			"doctor_id", doctorID,
			"from", current.VerificationStatus,
			"to", to,
			"request_id", requestcontext.RequestID(ctx),
		)
		return updated, nil
	}
}
