// Package handler is the HTTP surface around the verification engine. It
// owns the steps the engine leaves to its caller: updating the doctor
// profile and minting the access token after a verified outcome.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medverify/internal/credential"
	"medverify/internal/doctor"
	"medverify/internal/platform/middleware"
	"medverify/internal/verification"
	"medverify/internal/verification/ledger"
	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
	"medverify/pkg/platform/httputil"
	"medverify/pkg/requestcontext"
)

// Engine runs one verification attempt.
type Engine interface {
	VerifyCredential(ctx context.Context, claim verification.Claim) (*verification.Result, error)
}

// Ledger opens and reads verification log entries.
type Ledger interface {
	Open(ctx context.Context, in ledger.NewEntry) (*ledger.Entry, error)
	Get(ctx context.Context, entryID id.LogEntryID) (*ledger.Entry, error)
	ListByDoctor(ctx context.Context, doctorID id.DoctorID) ([]*ledger.Entry, error)
}

// Doctors manages doctor profiles.
type Doctors interface {
	Register(ctx context.Context, in doctor.Registration) (*doctor.Profile, error)
	Get(ctx context.Context, doctorID id.DoctorID) (*doctor.Profile, error)
	MarkVerified(ctx context.Context, doctorID id.DoctorID, registrationNumber string) (*doctor.Profile, error)
	MarkRejected(ctx context.Context, doctorID id.DoctorID) (*doctor.Profile, error)
}

// Issuer mints access tokens.
type Issuer interface {
	Issue(ctx context.Context, doctorID id.DoctorID) (*credential.Token, error)
}

// Handler serves the doctor verification endpoints.
type Handler struct {
	engine  Engine
	ledger  Ledger
	doctors Doctors
	issuer  Issuer
	auth    func(http.Handler) http.Handler
	logger  *slog.Logger
	timeout time.Duration
}

// DefaultTimeout bounds a verify request when no budget is configured.
const DefaultTimeout = 90 * time.Second

// Option configures the Handler.
type Option func(*Handler)

// WithTimeout sets the verify request budget. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New builds a Handler. auth guards the endpoints that need a bearer
// credential.
func New(engine Engine, ledger Ledger, doctors Doctors, issuer Issuer, auth func(http.Handler) http.Handler, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		engine:  engine,
		ledger:  ledger,
		doctors: doctors,
		issuer:  issuer,
		auth:    auth,
		logger:  logger,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Timeout is the longest a verify request runs before it answers.
func (h *Handler) Timeout() time.Duration {
	return h.timeout
}

// Register mounts the routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/doctors", func(r chi.Router) {
		r.Post("/", h.handleRegisterDoctor)
		r.Post("/verifications", h.handleOpenVerification)
		r.Get("/verifications/{id}", h.handleGetVerification)
		r.Get("/{doctorID}/verifications", h.handleListVerifications)
		r.Post("/verify-pmdc", h.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(h.auth)
			r.Get("/me", h.handleMe)
		})
	})
}

// handleRegisterDoctor creates a pending profile and the entry its first
// verification attempt will decide.
func (h *Handler) handleRegisterDoctor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterDoctorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	profile, err := h.doctors.Register(ctx, doctor.Registration{
		FullName:   req.Name,
		Email:      req.Email,
		PMDCNumber: req.PMDCNumber,
	})
	if err != nil {
		h.writeError(ctx, w, "failed to register doctor", err)
		return
	}
	entry, err := h.ledger.Open(ctx, ledger.NewEntry{
		DoctorID:   profile.ID,
		PMDCNumber: req.PMDCNumber,
		FullName:   req.Name,
		FatherName: req.FatherName,
	})
	if err != nil {
		h.writeError(ctx, w, "failed to open verification log entry", err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, RegisterDoctorResponse{
		ID:                 profile.ID.String(),
		VerificationLogID:  entry.ID.String(),
		VerificationStatus: string(profile.VerificationStatus),
	})
}

func (h *Handler) handleOpenVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[OpenVerificationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if _, err := h.doctors.Get(ctx, req.doctorID); err != nil {
		h.writeError(ctx, w, "failed to load doctor", err)
		return
	}

	entry, err := h.ledger.Open(ctx, ledger.NewEntry{
		DoctorID:   req.doctorID,
		PMDCNumber: req.PMDCNumber,
		FullName:   req.Name,
		FatherName: req.FatherName,
	})
	if err != nil {
		h.writeError(ctx, w, "failed to open verification log entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entryID, err := id.ParseLogEntryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.ledger.Get(ctx, entryID)
	if err != nil {
		h.writeError(ctx, w, "failed to load verification log entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doctorID, err := id.ParseDoctorID(chi.URLParam(r, "doctorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.ledger.ListByDoctor(ctx, doctorID)
	if err != nil {
		h.writeError(ctx, w, "failed to list verification log entries", err)
		return
	}
	resp := EntryListResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleVerify runs the engine and applies its outcome to the profile.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.engine.VerifyCredential(ctx, verification.Claim{
		LogEntryID:    req.logEntryID,
		LicenseNumber: req.PMDCNumber,
		FullName:      req.Name,
		FatherName:    req.FatherName,
	})
	if err != nil {
		h.writeError(ctx, w, "verification attempt rejected", err)
		return
	}

	doctorID := result.Entry.DoctorID
	if err := h.applyProfileStatus(ctx, doctorID, result.Outcome); err != nil {
		h.writeError(ctx, w, "failed to mark doctor verified", err)
		return
	}

	switch outcome := result.Outcome.(type) {
	case verification.Verified:
		h.issueCredential(ctx, w, doctorID, outcome)

	case verification.ExtractionFailed:
		httputil.WriteJSON(w, http.StatusBadGateway, httputil.ErrorResponse{
			Error:            verification.ReasonCode(outcome),
			ErrorDescription: verification.ReasonRegistryFailure,
		})

	case verification.Expired:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: verification.ReasonExpired})

	default:
		httputil.WriteJSON(w, http.StatusOK, RejectedResponse{
			Verified: false,
			Message:  verification.Reason(outcome),
		})
	}
}

// applyProfileStatus moves the profile to the status the outcome maps to.
// Only a failed verified transition is returned; rejections are best effort.
func (h *Handler) applyProfileStatus(ctx context.Context, doctorID id.DoctorID, o verification.Outcome) error {
	status, ok := verification.ProfileStatusFor(o)
	if !ok {
		return nil
	}
	if status == verification.ProfileRejected {
		h.markRejected(ctx, doctorID)
		return nil
	}
	v, _ := o.(verification.Verified)
	_, err := h.doctors.MarkVerified(ctx, doctorID, v.RegistrationNumber)
	return err
}

// issueCredential mints the access token for a doctor whose profile is
// already verified and echoes the registry's values.
func (h *Handler) issueCredential(ctx context.Context, w http.ResponseWriter, doctorID id.DoctorID, v verification.Verified) {
	token, err := h.issuer.Issue(ctx, doctorID)
	if err != nil {
		h.writeError(ctx, w, "failed to issue access token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifiedResponse{
		ID:          doctorID.String(),
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		Verified:    true,
		Data: RegistryRecord{
			RegistrationNumber: v.RegistrationNumber,
			FullName:           v.FullName,
			FatherName:         v.FatherName,
		},
	})
}

// markRejected is best effort: the ledger already holds the decision.
func (h *Handler) markRejected(ctx context.Context, doctorID id.DoctorID) {
	if _, err := h.doctors.MarkRejected(ctx, doctorID); err != nil {
		h.logger.WarnContext(ctx, "failed to mark doctor rejected",
			"doctor_id", doctorID,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	}
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doctorID := requestcontext.DoctorID(ctx)
	if doctorID.IsNil() {
		h.logger.ErrorContext(ctx, "doctor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	profile, err := h.doctors.Get(ctx, doctorID)
	if err != nil {
		h.writeError(ctx, w, "failed to load doctor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

// writeError logs server-side failures at error level and client errors at
// warn, then writes the mapped response.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	attrs := []any{"request_id", middleware.GetRequestID(ctx), "error", err}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
