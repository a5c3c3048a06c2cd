package store

import (
	"context"
	"sync"
	"time"

	"tenantgate/internal/authstate"
	"tenantgate/pkg/sentinel"
)

// InMemory keeps auth states in a mutex-guarded map. It favors clarity over
// performance and backs unit tests and single-instance deployments.
type InMemory struct {
	mu     sync.Mutex
	states map[string]authstate.AuthState
}

func NewInMemory() *InMemory {
	return &InMemory{states: make(map[string]authstate.AuthState)}
}

func (s *InMemory) Create(_ context.Context, state authstate.AuthState) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = state
	return state.ID, nil
}

func (s *InMemory) FindByID(_ context.Context, id, tenant string) (authstate.AuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	if !ok || state.Tenant != tenant {
		return authstate.AuthState{}, sentinel.ErrNotFound
	}
	if state.Expired(time.Now()) {
		delete(s.states, id)
		return authstate.AuthState{}, sentinel.ErrExpired
	}
	return state, nil
}

func (s *InMemory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

func (s *InMemory) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, state := range s.states {
		if state.Expired(now) {
			delete(s.states, id)
			n++
		}
	}
	return n, nil
}
