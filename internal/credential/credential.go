// Package credential mints the short-lived bearer token handed to a doctor
// after a verified registry outcome.
package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"medverify/internal/platform/middleware"
	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
	"medverify/pkg/platform/audit"
	"medverify/pkg/requestcontext"
)

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = time.Hour

// Claims are the access token claims. The subject is the doctor id.
type Claims struct {
	Verified bool `json:"verified"`
	jwt.RegisteredClaims
}

// Token is a signed access token.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuditPublisher emits audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Issuer signs and validates HS256 access tokens. It keeps no server-side
// state.
type Issuer struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	auditor    AuditPublisher
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Issuer)

func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(i *Issuer) {
		i.auditor = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(i *Issuer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithClock overrides the validation clock.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(signingKey, issuer, audience string, opts ...Option) *Issuer {
	i := &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        DefaultTTL,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a token for a verified doctor, timed from the request clock.
func (i *Issuer) Issue(ctx context.Context, doctorID id.DoctorID) (*Token, error) {
	if doctorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "doctor id is required")
	}
	now := requestcontext.Now(ctx)
	expiresAt := now.Add(i.ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Verified: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   doctorID.String(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}).SignedString(i.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}

	if i.auditor != nil {
		if err := i.auditor.Emit(ctx, audit.Event{
			DoctorID:    doctorID,
			Action:      string(audit.EventTokenIssued),
			RequestID:   requestcontext.RequestID(ctx),
			ClientAgent: requestcontext.ClientAgent(ctx),
		}); err != nil {
			i.logger.WarnContext(ctx, "failed to emit token audit event", "doctor_id", doctorID, "error", err)
		}
	}
	return &Token{AccessToken: signed, ExpiresAt: expiresAt}, nil
}

// Parse validates signature, issuer, audience and expiry.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return i.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidateToken adapts Parse to the bearer-auth middleware.
func (i *Issuer) ValidateToken(tokenString string) (*middleware.Claims, error) {
	claims, err := i.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{DoctorID: claims.Subject}, nil
}
