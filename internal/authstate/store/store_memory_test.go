package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tenantgate/internal/authstate"
	"tenantgate/pkg/sentinel"
)

type AuthStateStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *AuthStateStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestAuthStateStoreSuite(t *testing.T) {
	suite.Run(t, new(AuthStateStoreSuite))
}

func (s *AuthStateStoreSuite) newState(tenant string, expiresIn time.Duration) authstate.AuthState {
	now := time.Now()
	return authstate.AuthState{
		ID:           uuid.NewString(),
		Tenant:       tenant,
		CodeVerifier: "verifier-" + uuid.NewString(),
		State:        "state-" + uuid.NewString(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(expiresIn),
	}
}

func (s *AuthStateStoreSuite) TestCreateAndFind() {
	s.Run("finds a live state by id and tenant", func() {
		state := s.newState("tenant-a", authstate.TTL)
		id, err := s.store.Create(s.ctx, state)
		s.Require().NoError(err)

		found, err := s.store.FindByID(s.ctx, id, "tenant-a")
		s.Require().NoError(err)
		s.Equal(state.CodeVerifier, found.CodeVerifier)
		s.Equal(state.State, found.State)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.FindByID(s.ctx, uuid.NewString(), "tenant-a")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("hides states from other tenants", func() {
		state := s.newState("tenant-a", authstate.TTL)
		id, err := s.store.Create(s.ctx, state)
		s.Require().NoError(err)

		_, err = s.store.FindByID(s.ctx, id, "tenant-b")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AuthStateStoreSuite) TestExpiry() {
	s.Run("expired state surfaces ErrExpired and is removed", func() {
		state := s.newState("tenant-a", -time.Minute)
		id, err := s.store.Create(s.ctx, state)
		s.Require().NoError(err)

		_, err = s.store.FindByID(s.ctx, id, "tenant-a")
		s.Require().ErrorIs(err, sentinel.ErrExpired)

		// Second lookup must not see it either.
		_, err = s.store.FindByID(s.ctx, id, "tenant-a")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("sweep removes only expired states", func() {
		live := s.newState("tenant-a", authstate.TTL)
		dead1 := s.newState("tenant-a", -time.Second)
		dead2 := s.newState("tenant-b", -time.Hour)
		for _, st := range []authstate.AuthState{live, dead1, dead2} {
			_, err := s.store.Create(s.ctx, st)
			s.Require().NoError(err)
		}

		n, err := s.store.DeleteExpired(s.ctx, time.Now())
		s.Require().NoError(err)
		s.Equal(int64(2), n)

		_, err = s.store.FindByID(s.ctx, live.ID, "tenant-a")
		s.Require().NoError(err)
	})
}

func (s *AuthStateStoreSuite) TestDelete() {
	s.Run("delete makes the state unfindable", func() {
		state := s.newState("tenant-a", authstate.TTL)
		id, err := s.store.Create(s.ctx, state)
		s.Require().NoError(err)

		s.Require().NoError(s.store.Delete(s.ctx, id))
		_, err = s.store.FindByID(s.ctx, id, "tenant-a")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("delete is idempotent", func() {
		s.Require().NoError(s.store.Delete(s.ctx, uuid.NewString()))
	})
}
