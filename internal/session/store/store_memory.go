package store

import (
	"context"
	"sync"

	"tenantgate/internal/session"
	"tenantgate/pkg/sentinel"
)

// InMemory keeps sessions in mutex-guarded maps. The single mutex makes the
// upsert atomic with respect to the (tenant, email) index, mirroring the
// unique-key guarantee the postgres store gets from ON CONFLICT.
type InMemory struct {
	policy session.TerminationPolicy

	mu       sync.Mutex
	sessions map[string]session.Session
	byKey    map[string]string // tenant+"\x00"+email -> session id
}

func NewInMemory(policy session.TerminationPolicy) *InMemory {
	return &InMemory{
		policy:   policy,
		sessions: make(map[string]session.Session),
		byKey:    make(map[string]string),
	}
}

func upsertKey(tenant, email string) string {
	return tenant + "\x00" + email
}

func (s *InMemory) Upsert(_ context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := upsertKey(sess.Tenant, sess.Email)
	if existingID, ok := s.byKey[key]; ok {
		existing := s.sessions[existingID]
		sess.ID = existing.ID
		sess.CreatedAt = existing.CreatedAt
	}
	s.sessions[sess.ID] = sess
	s.byKey[key] = sess.ID
	return sess, nil
}

func (s *InMemory) FindByID(_ context.Context, id, tenant string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Tenant != tenant {
		return session.Session{}, sentinel.ErrNotFound
	}
	return sess, nil
}

func (s *InMemory) Terminate(_ context.Context, id, tenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.Tenant != tenant {
		return nil
	}
	switch s.policy {
	case session.TerminateHard:
		delete(s.sessions, id)
		delete(s.byKey, upsertKey(sess.Tenant, sess.Email))
	default:
		sess.LoggedIn = false
		sess.AccessToken = ""
		sess.RefreshToken = ""
		sess.IDToken = ""
		s.sessions[id] = sess
	}
	return nil
}
