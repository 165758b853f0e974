package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
	"medverify/pkg/platform/audit"
	"medverify/pkg/platform/httputil"
	"medverify/pkg/requestcontext"
)

// TokenValidator validates a bearer credential and returns the doctor it
// binds to.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is what the middleware needs from a validated credential.
type Claims struct {
	DoctorID string
}

// AuditEmitter records authentication failures.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RequireAuth rejects requests without a valid bearer credential and stores
// the authenticated doctor in the context. auditor may be nil.
func RequireAuth(validator TokenValidator, auditor AuditEmitter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
				emitAuthFailed(ctx, auditor, logger, "missing_token")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				emitAuthFailed(ctx, auditor, logger, "invalid_token")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			doctorID, err := id.ParseDoctorID(claims.DoctorID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed subject",
					"error", err,
					"request_id", requestID,
				)
				emitAuthFailed(ctx, auditor, logger, "invalid_subject")
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithDoctorID(ctx, doctorID)))
		})
	}
}

func emitAuthFailed(ctx context.Context, auditor AuditEmitter, logger *slog.Logger, reason string) {
	if auditor == nil {
		return
	}
	err := auditor.Emit(ctx, audit.Event{
		Action:      string(audit.EventAuthFailed),
		Decision:    "denied",
		ReasonCode:  reason,
		RequestID:   requestcontext.RequestID(ctx),
		ClientAgent: requestcontext.ClientAgent(ctx),
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to emit auth audit event", "error", err)
	}
}
