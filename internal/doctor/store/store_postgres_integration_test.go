//go:build integration

package store_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"medverify/internal/doctor"
	"medverify/internal/doctor/store"
	"medverify/pkg/platform/privacy"
	"medverify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "doctors"))
}

func (s *PostgresStoreSuite) TestContract() {
	runStoreContract(s.T(), func(*testing.T) doctor.Store {
		return store.NewPostgres(s.postgres.DB, nil)
	})
}

func (s *PostgresStoreSuite) TestEmailSealedAtRest() {
	ctx := context.Background()
	sealer, err := privacy.NewSealer([]byte(strings.Repeat("d", 32)))
	s.Require().NoError(err)
	st := store.NewPostgres(s.postgres.DB, sealer)

	profile := newProfile(time.Now().UTC())
	s.Require().NoError(st.Create(ctx, profile))

	var raw string
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT email FROM doctors WHERE id = $1`, profile.ID.String()).Scan(&raw))
	s.NotEqual(profile.Email, raw)

	got, err := st.FindByID(ctx, profile.ID)
	s.Require().NoError(err)
	s.Equal(profile.Email, got.Email)
}
