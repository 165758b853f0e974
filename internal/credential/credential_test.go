package credential

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medverify/pkg/domain"
	dErrors "medverify/pkg/domain-errors"
	"medverify/pkg/platform/audit"
	"medverify/pkg/requestcontext"
)

type recordingAuditor struct {
	events []audit.Event
}

func (r *recordingAuditor) Emit(_ context.Context, ev audit.Event) error {
	r.events = append(r.events, ev)
	return nil
}

var issuedAt = time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC)

func newIssuer(now time.Time, opts ...Option) *Issuer {
	base := []Option{WithClock(func() time.Time { return now })}
	return NewIssuer("test-signing-key", "medverify", "parenting-community", append(base, opts...)...)
}

func TestIssue(t *testing.T) {
	auditor := &recordingAuditor{}
	issuer := newIssuer(issuedAt.Add(time.Minute), WithAuditPublisher(auditor))
	doctorID := id.NewDoctorID()
	ctx := requestcontext.WithTime(context.Background(), issuedAt)

	token, err := issuer.Issue(ctx, doctorID)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), token.ExpiresAt)

	claims, err := issuer.Parse(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, doctorID.String(), claims.Subject)
	assert.True(t, claims.Verified)
	assert.Equal(t, jwt.ClaimStrings{"parenting-community"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)

	require.Len(t, auditor.events, 1)
	assert.Equal(t, string(audit.EventTokenIssued), auditor.events[0].Action)
	assert.Equal(t, doctorID, auditor.events[0].DoctorID)
}

func TestIssue_RequiresDoctor(t *testing.T) {
	_, err := newIssuer(issuedAt).Issue(context.Background(), id.DoctorID{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestParse(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), issuedAt)
	token, err := newIssuer(issuedAt).Issue(ctx, id.NewDoctorID())
	require.NoError(t, err)

	t.Run("expired after the ttl", func(t *testing.T) {
		_, err := newIssuer(issuedAt.Add(2 * time.Hour)).Parse(token.AccessToken)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewIssuer("other-key", "medverify", "parenting-community", WithClock(func() time.Time { return issuedAt }))
		_, err := other.Parse(token.AccessToken)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := NewIssuer("test-signing-key", "medverify", "someone-else", WithClock(func() time.Time { return issuedAt }))
		_, err := other.Parse(token.AccessToken)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := newIssuer(issuedAt).Parse("not-a-token")
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
	})

	t.Run("middleware adapter exposes the doctor", func(t *testing.T) {
		claims, err := newIssuer(issuedAt).ValidateToken(token.AccessToken)
		require.NoError(t, err)
		_, err = id.ParseDoctorID(claims.DoctorID)
		assert.NoError(t, err)
	})
}

func TestWithTTL(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), issuedAt)
	token, err := newIssuer(issuedAt, WithTTL(15*time.Minute)).Issue(ctx, id.NewDoctorID())
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(15*time.Minute), token.ExpiresAt)
}
