// Package ledger persists every verification decision against a log entry
// created before the attempt, so the audit trail survives later failures.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
	"medverify/pkg/platform/sentinel"
	"medverify/pkg/requestcontext"
)

// Store persists ledger entries.
type Store interface {
	Create(ctx context.Context, entry *Entry) error
	FindByID(ctx context.Context, entryID id.LogEntryID) (*Entry, error)
	// ListByDoctor returns entries newest first.
	ListByDoctor(ctx context.Context, doctorID id.DoctorID) ([]*Entry, error)
	// Decide applies decision only if the entry is pending. It returns
	// sentinel.ErrNotFound for a missing entry and sentinel.ErrConflict for
	// one already decided.
	Decide(ctx context.Context, entryID id.LogEntryID, decision Decision, at time.Time) (*Entry, error)
}

// Service owns ledger transitions.
type Service struct {
	store  Store
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("medverify/ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a pending entry.
func (s *Service) Open(ctx context.Context, in NewEntry) (*Entry, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	entry := &Entry{
		ID:         id.NewLogEntryID(),
		DoctorID:   in.DoctorID,
		PMDCNumber: in.PMDCNumber,
		FullName:   in.FullName,
		FatherName: in.FatherName,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to open verification log entry")
	}
	s.logger.InfoContext(ctx, "verification log entry opened",
		"log_entry_id", entry.ID,
		"doctor_id", entry.DoctorID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return entry, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, entryID id.LogEntryID) (*Entry, error) {
	entry, err := s.store.FindByID(ctx, entryID)
	if err != nil {
		return nil, translate(err)
	}
	return entry, nil
}

// ListByDoctor returns a doctor's entries newest first.
func (s *Service) ListByDoctor(ctx context.Context, doctorID id.DoctorID) ([]*Entry, error) {
	entries, err := s.store.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification log entries")
	}
	return entries, nil
}

// Record writes the terminal decision for a pending entry. Recording twice
// is a conflict, never an overwrite.
func (s *Service) Record(ctx context.Context, entryID id.LogEntryID, decision Decision) (*Entry, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.record", trace.WithAttributes(
		attribute.String("ledger.status", string(decision.Status)),
		attribute.String("ledger.reason_code", decision.ReasonCode),
	))
	defer span.End()

	if err := decision.Validate(); err != nil {
		return nil, err
	}

	entry, err := s.store.Decide(ctx, entryID, decision, requestcontext.Now(ctx))
	if err != nil {
		err = translate(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}

	s.logger.InfoContext(ctx, "verification decision recorded",
		"log_entry_id", entryID,
		"doctor_id", entry.DoctorID,
		"status", entry.Status,
		"reason_code", entry.ReasonCode,
		"request_id", requestcontext.RequestID(ctx),
	)
	return entry, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "verification log entry not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "verification already decided")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "verification log store failure")
	}
}
