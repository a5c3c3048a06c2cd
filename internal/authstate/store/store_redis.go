package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tenantgate/internal/authstate"
	"tenantgate/pkg/sentinel"
)

const authStateKeyPrefix = "authstate:"

// Redis keeps auth states under their native TTL, so expiry reclamation is
// free and DeleteExpired has nothing to do.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Create(ctx context.Context, state authstate.AuthState) (string, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal auth state: %w", err)
	}
	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		return "", sentinel.ErrExpired
	}
	if err := s.client.Set(ctx, authStateKeyPrefix+state.ID, payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("create auth state: %w", err)
	}
	return state.ID, nil
}

func (s *Redis) FindByID(ctx context.Context, id, tenant string) (authstate.AuthState, error) {
	payload, err := s.client.Get(ctx, authStateKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired keys vanish server-side, indistinguishable from
			// never-created ones.
			return authstate.AuthState{}, sentinel.ErrNotFound
		}
		return authstate.AuthState{}, fmt.Errorf("find auth state: %w", err)
	}
	var state authstate.AuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		return authstate.AuthState{}, fmt.Errorf("unmarshal auth state: %w", err)
	}
	if state.Tenant != tenant {
		return authstate.AuthState{}, sentinel.ErrNotFound
	}
	return state, nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, authStateKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete auth state: %w", err)
	}
	return nil
}

func (s *Redis) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	// TTL-backed keys expire server-side.
	return 0, nil
}
