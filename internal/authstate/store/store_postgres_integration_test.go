//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tenantgate/internal/authstate"
	"tenantgate/pkg/sentinel"
	"tenantgate/pkg/testutil/containers"
)

type PostgresAuthStateSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *Postgres
}

func TestPostgresAuthStateSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuthStateSuite))
}

func (s *PostgresAuthStateSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), "../../../migrations/001_init.sql")
	s.store = NewPostgres(s.postgres.Pool)
}

func (s *PostgresAuthStateSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "auth_states"))
}

func (s *PostgresAuthStateSuite) newState(tenant string, expiresIn time.Duration) authstate.AuthState {
	now := time.Now()
	return authstate.AuthState{
		ID:           uuid.NewString(),
		Tenant:       tenant,
		CodeVerifier: "verifier",
		State:        "state-" + uuid.NewString(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(expiresIn),
	}
}

func (s *PostgresAuthStateSuite) TestRoundTrip() {
	ctx := context.Background()
	state := s.newState("tenant-a", authstate.TTL)

	id, err := s.store.Create(ctx, state)
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, id, "tenant-a")
	s.Require().NoError(err)
	s.Equal(state.CodeVerifier, found.CodeVerifier)
	s.Equal(state.State, found.State)

	_, err = s.store.FindByID(ctx, id, "tenant-b")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresAuthStateSuite) TestExpiredRowRemovedOnRead() {
	ctx := context.Background()
	state := s.newState("tenant-a", -time.Minute)

	id, err := s.store.Create(ctx, state)
	s.Require().NoError(err)

	_, err = s.store.FindByID(ctx, id, "tenant-a")
	s.Require().ErrorIs(err, sentinel.ErrExpired)

	_, err = s.store.FindByID(ctx, id, "tenant-a")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresAuthStateSuite) TestDeleteExpired() {
	ctx := context.Background()
	for _, st := range []authstate.AuthState{
		s.newState("tenant-a", authstate.TTL),
		s.newState("tenant-a", -time.Second),
		s.newState("tenant-b", -time.Hour),
	} {
		_, err := s.store.Create(ctx, st)
		s.Require().NoError(err)
	}

	n, err := s.store.DeleteExpired(ctx, time.Now())
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *PostgresAuthStateSuite) TestDeleteIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.store.Delete(ctx, uuid.NewString()))
}
