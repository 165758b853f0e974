package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medverify/internal/credential"
	"medverify/internal/doctor"
	doctorstore "medverify/internal/doctor/store"
	"medverify/internal/platform/middleware"
	"medverify/internal/registry"
	"medverify/internal/registry/registrytest"
	"medverify/internal/verification"
	"medverify/internal/verification/guard"
	"medverify/internal/verification/handler"
	"medverify/internal/verification/ledger"
	ledgerstore "medverify/internal/verification/ledger/store"
	"medverify/pkg/testutil"
)

var fixedNow = time.Date(2026, 6, 15, 11, 0, 0, 0, time.UTC)

// stack wires the real services against a scripted registry session.
type stack struct {
	router  chi.Router
	session *registrytest.Session
}

func newStack(t *testing.T, session *registrytest.Session) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client := registry.NewClient(registrytest.NewLauncher(session),
		registry.WithTimeouts(200*time.Millisecond, 50*time.Millisecond, 50*time.Millisecond),
	)
	ledgerSvc := ledger.NewService(ledgerstore.NewInMemoryStore())
	engine := verification.NewService(client, ledgerSvc, verification.WithGuard(guard.NewMemoryGuard(time.Minute)))
	doctors := doctor.NewService(doctorstore.NewInMemoryStore())
	issuer := credential.NewIssuer("flow-key", "medverify", "parenting-community",
		credential.WithClock(func() time.Time { return fixedNow }),
	)

	router := chi.NewRouter()
	handler.New(engine, ledgerSvc, doctors, issuer, middleware.RequireAuth(issuer, nil, logger), logger).Register(router)
	return &stack{router: router, session: session}
}

func (s *stack) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.DoRequest(s.router, testutil.AtTime(req, fixedNow))
}

func (s *stack) register(t *testing.T) *handler.RegisterDoctorResponse {
	t.Helper()
	rr := s.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/doctors", map[string]string{
		"name": "Ali Khan", "email": "ali.khan@example.pk", "pmdcNumber": "PK-1001",
	}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[handler.RegisterDoctorResponse](t, rr)
}

func (s *stack) verify(t *testing.T, logID, name string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, testutil.NewJSONRequest(t, http.MethodPost, "/doctors/verify-pmdc", map[string]string{
		"id": logID, "pmdcNumber": "PK-1001", "name": name,
	}))
}

func (s *stack) entry(t *testing.T, logID string) *handler.EntryResponse {
	t.Helper()
	rr := s.do(t, testutil.NewJSONRequest(t, http.MethodGet, "/doctors/verifications/"+logID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return testutil.UnmarshalResponse[handler.EntryResponse](t, rr)
}

func aliKhanSession(validUntil string) *registrytest.Session {
	return &registrytest.Session{
		ResultPage: registrytest.ResultsPage([]string{"PK-1001", "ALI KHAN", "TARIQ KHAN", "Permanent"}),
		DetailPage: registrytest.DetailPage(validUntil),
	}
}

func TestVerify_LowercaseClaimMatchesRegistryName(t *testing.T) {
	testutil.Given(t, "a registry record valid until next year", func(t *testing.T) {
		s := newStack(t, aliKhanSession("15/06/2027"))
		reg := s.register(t)

		testutil.When(t, "the doctor claims the name in mixed case without a father's name", func(t *testing.T) {
			rr := s.verify(t, reg.VerificationLogID, "Ali Khan")

			testutil.Then(t, "the doctor is verified with the registry's values", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
				body := testutil.UnmarshalResponse[handler.VerifiedResponse](t, rr)
				assert.True(t, body.Verified)
				assert.Equal(t, "ALI KHAN", body.Data.FullName)
				assert.Equal(t, "TARIQ KHAN", body.Data.FatherName)
				assert.Equal(t, fixedNow.Add(time.Hour), body.ExpiresAt)
				assert.Equal(t, "approved", s.entry(t, reg.VerificationLogID).Status)

				me := testutil.NewJSONRequest(t, http.MethodGet, "/doctors/me", nil)
				me.Header.Set("Authorization", "Bearer "+body.AccessToken)
				meRR := s.do(t, me)
				require.Equal(t, http.StatusOK, meRR.Code)
				profile := testutil.UnmarshalResponse[handler.ProfileResponse](t, meRR)
				assert.Equal(t, "verified", profile.VerificationStatus)
				assert.Equal(t, "PK-1001", profile.PMDCNumber)
			})

			testutil.Then(t, "a second attempt on the same entry conflicts", func(t *testing.T) {
				again := s.verify(t, reg.VerificationLogID, "Ali Khan")
				assert.Equal(t, http.StatusConflict, again.Code)
			})
		})
	})
}

func TestVerify_LicenseExpiredYesterdayIsRejected(t *testing.T) {
	testutil.Given(t, "a registry record valid until yesterday", func(t *testing.T) {
		s := newStack(t, aliKhanSession("14/06/2026"))
		reg := s.register(t)

		testutil.When(t, "the doctor claims the exact registry name", func(t *testing.T) {
			rr := s.verify(t, reg.VerificationLogID, "ALI KHAN")

			testutil.Then(t, "the license is rejected as expired", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "PMDC License Expired")
				entry := s.entry(t, reg.VerificationLogID)
				assert.Equal(t, "rejected", entry.Status)
				assert.Equal(t, "PMDC License Expired", entry.Reason)
			})
		})
	})
}

func TestVerify_UnknownLicenseIsRecordedNotFound(t *testing.T) {
	testutil.Given(t, "a registry that renders no result row", func(t *testing.T) {
		s := newStack(t, &registrytest.Session{})
		reg := s.register(t)

		testutil.When(t, "the doctor submits a claim", func(t *testing.T) {
			rr := s.verify(t, reg.VerificationLogID, "Ali Khan")

			testutil.Then(t, "the ledger records not found", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				body := testutil.UnmarshalResponse[handler.RejectedResponse](t, rr)
				assert.False(t, body.Verified)
				assert.Equal(t, "PMDC number not found", body.Message)

				entry := s.entry(t, reg.VerificationLogID)
				assert.Equal(t, "rejected", entry.Status)
				assert.Equal(t, "PMDC number not found", entry.Reason)
			})
		})
	})
}

func TestVerify_TruncatedNameIsRejected(t *testing.T) {
	testutil.Given(t, "a registry record for ALI KHAN", func(t *testing.T) {
		s := newStack(t, aliKhanSession("15/06/2027"))
		reg := s.register(t)

		testutil.When(t, "the doctor claims a truncated name", func(t *testing.T) {
			rr := s.verify(t, reg.VerificationLogID, "Ali Kha")

			testutil.Then(t, "the claim is rejected for the name", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				body := testutil.UnmarshalResponse[handler.RejectedResponse](t, rr)
				assert.Equal(t, "Name does not match", body.Message)
				assert.Equal(t, "name_mismatch", s.entry(t, reg.VerificationLogID).ReasonCode)
			})
		})
	})
}

func TestVerify_MissingDetailPanelFailsGenerically(t *testing.T) {
	testutil.Given(t, "a registry whose detail panel never opens", func(t *testing.T) {
		s := newStack(t, &registrytest.Session{
			ResultPage: registrytest.ResultsPage([]string{"PK-1001", "ALI KHAN", "TARIQ KHAN", "Permanent"}),
		})
		reg := s.register(t)

		testutil.When(t, "the doctor submits a claim", func(t *testing.T) {
			rr := s.verify(t, reg.VerificationLogID, "Ali Khan")

			testutil.Then(t, "the caller gets a generic failure and the ledger still records it", func(t *testing.T) {
				assert.Equal(t, http.StatusBadGateway, rr.Code)
				assert.Contains(t, rr.Body.String(), "verification failed, try again")

				entry := s.entry(t, reg.VerificationLogID)
				assert.Equal(t, "rejected", entry.Status)
				assert.Equal(t, "registry_unreadable", entry.ReasonCode)
				assert.True(t, s.session.Closed())
			})
		})
	})
}
