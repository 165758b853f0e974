// Package verification is the credential verification engine: it drives a
// registry lookup, decides the outcome, and records it in the ledger.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"medverify/internal/registry"
	"medverify/internal/verification/guard"
	"medverify/internal/verification/ledger"
	"medverify/internal/verification/metrics"
	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
	"medverify/pkg/platform/audit"
	"medverify/pkg/platform/privacy"
	"medverify/pkg/requestcontext"
)

// RecordSource looks a license number up in the registry. A nil record with
// a nil error means not found.
type RecordSource interface {
	Lookup(ctx context.Context, licenseNumber string) (*registry.Record, error)
}

// Ledger is the subset of the ledger service the engine drives.
type Ledger interface {
	Get(ctx context.Context, entryID id.LogEntryID) (*ledger.Entry, error)
	Record(ctx context.Context, entryID id.LogEntryID, decision ledger.Decision) (*ledger.Entry, error)
}

// Guard serialises attempts per ledger entry.
type Guard interface {
	Acquire(ctx context.Context, entryID id.LogEntryID) (guard.Release, error)
}

// AuditPublisher emits audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Result is the engine's answer: the authoritative outcome and the decided
// ledger entry.
type Result struct {
	Outcome Outcome
	Entry   *ledger.Entry
}

// DefaultMaxConcurrent bounds simultaneous registry sessions per process.
const DefaultMaxConcurrent = 4

// Service runs verification attempts.
type Service struct {
	source    RecordSource
	ledger    Ledger
	guard     Guard
	auditor   AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	slots     *semaphore.Weighted
	lookupKey []byte
	location  *time.Location
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithGuard(g Guard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

// WithMaxConcurrent caps simultaneous registry lookups.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithLookupHashKey keys the digest used for license numbers in logs and
// audit events.
func WithLookupHashKey(key []byte) Option {
	return func(s *Service) {
		s.lookupKey = key
	}
}

// WithLocation sets the zone whose calendar day decides expiry.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func NewService(source RecordSource, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		source:   source,
		ledger:   ledger,
		logger:   slog.New(slog.DiscardHandler),
		tracer:   otel.Tracer("medverify/verification"),
		slots:    semaphore.NewWeighted(DefaultMaxConcurrent),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyCredential runs one attempt for a pending ledger entry. Every
// outcome, including structural failures, is written to the ledger before
// it is returned. Errors are reserved for caller-contract problems
// (validation, missing or decided entry, attempt in flight) and ledger
// failures.
func (s *Service) VerifyCredential(ctx context.Context, claim Claim) (*Result, error) {
	start := time.Now()
	if err := claim.Validate(); err != nil {
		return nil, err
	}

	entry, err := s.ledger.Get(ctx, claim.LogEntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeConflict, "verification already decided")
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, claim.LogEntryID)
		if errors.Is(err, guard.ErrInFlight) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "verification already in progress")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "verification guard unavailable")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "failed to release verification guard",
					"log_entry_id", claim.LogEntryID,
					"error", err,
				)
			}
		}()
	}

	subject := privacy.HashForLookup(s.lookupKey, claim.LicenseNumber)
	outcome := s.evaluate(ctx, claim, subject)

	// The decision is persisted even when the caller has gone away.
	writeCtx := context.WithoutCancel(ctx)
	decided, err := s.ledger.Record(writeCtx, claim.LogEntryID, DecisionFor(outcome))
	if err != nil {
		s.logRecordFailure(writeCtx, claim, outcome, err)
		return nil, err
	}

	s.emitDecided(writeCtx, decided, subject)
	s.metrics.IncrementOutcome(string(outcome.Kind()))
	s.metrics.ObserveVerifyLatency(time.Since(start))
	s.logger.InfoContext(ctx, "verification decided",
		"log_entry_id", decided.ID,
		"doctor_id", decided.DoctorID,
		"subject", subject,
		"outcome", outcome.Kind(),
		"reason_code", decided.ReasonCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestcontext.RequestID(ctx),
	)

	return &Result{Outcome: outcome, Entry: decided}, nil
}

// evaluate runs the registry lookup under the concurrency cap and decides.
// It always produces an outcome.
func (s *Service) evaluate(ctx context.Context, claim Claim, subject string) Outcome {
	s.metrics.QueueEntered()
	err := s.slots.Acquire(ctx, 1)
	s.metrics.QueueLeft()
	if err != nil {
		s.logger.WarnContext(ctx, "verification abandoned while waiting for a registry slot",
			"log_entry_id", claim.LogEntryID,
			"error", err,
		)
		return ExtractionFailed{Stage: string(registry.KindCancelled)}
	}
	record, err := s.source.Lookup(ctx, claim.LicenseNumber)
	s.slots.Release(1)

	if err != nil {
		stage := registry.FailureStage(err)
		s.logger.WarnContext(ctx, "registry lookup failed",
			"log_entry_id", claim.LogEntryID,
			"subject", subject,
			"stage", stage,
			"error", err,
		)
		return ExtractionFailed{Stage: stage}
	}

	_, span := s.tracer.Start(ctx, "verification.decide")
	defer span.End()
	outcome := Decide(claim, candidateFrom(record), requestcontext.Now(ctx).In(s.location))
	span.SetAttributes(attribute.String("verification.outcome", string(outcome.Kind())))
	return outcome
}

func (s *Service) logRecordFailure(ctx context.Context, claim Claim, outcome Outcome, err error) {
	if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeConflict) {
		// Entry vanished or was decided by someone else mid-attempt.
		s.logger.WarnContext(ctx, "verification decision rejected by ledger",
			"log_entry_id", claim.LogEntryID,
			"outcome", outcome.Kind(),
			"error", err,
		)
		return
	}
	s.metrics.IncrementLedgerWriteFailure()
	s.logger.ErrorContext(ctx, "failed to record verification decision",
		"log_entry_id", claim.LogEntryID,
		"outcome", outcome.Kind(),
		"error", err,
	)
}

func (s *Service) emitDecided(ctx context.Context, entry *ledger.Entry, subject string) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		Timestamp:     requestcontext.Now(ctx),
		DoctorID:      entry.DoctorID,
		LogEntryID:    entry.ID,
		Action:        string(audit.EventVerificationDecided),
		Decision:      string(entry.Status),
		Reason:        entry.Reason,
		ReasonCode:    entry.ReasonCode,
		SubjectIDHash: subject,
		RequestID:     requestcontext.RequestID(ctx),
		ClientAgent:   requestcontext.ClientAgent(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit verification audit event",
			"log_entry_id", entry.ID,
			"error", err,
		)
	}
}

func candidateFrom(record *registry.Record) *CandidateRecord {
	if record == nil {
		return nil
	}
	return &CandidateRecord{
		RegistrationNumber: record.RegistrationNumber,
		FullName:           record.FullName,
		FatherName:         record.FatherName,
		StatusText:         record.StatusText,
		LicenseValidUntil:  record.ValidUntil,
	}
}
