package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenantgate/internal/authstate"
	"tenantgate/pkg/sentinel"
)

// Postgres persists auth states as rows; see migrations/001_init.sql.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, state authstate.AuthState) (string, error) {
	query := `
		INSERT INTO auth_states (id, tenant, code_verifier, state, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		state.ID, state.Tenant, state.CodeVerifier, state.State, state.CreatedAt, state.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("create auth state: %w", err)
	}
	return state.ID, nil
}

func (s *Postgres) FindByID(ctx context.Context, id, tenant string) (authstate.AuthState, error) {
	query := `
		SELECT id, tenant, code_verifier, state, created_at, expires_at
		FROM auth_states
		WHERE id = $1 AND tenant = $2
	`
	var state authstate.AuthState
	err := s.pool.QueryRow(ctx, query, id, tenant).Scan(
		&state.ID, &state.Tenant, &state.CodeVerifier, &state.State, &state.CreatedAt, &state.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authstate.AuthState{}, sentinel.ErrNotFound
		}
		return authstate.AuthState{}, fmt.Errorf("find auth state: %w", err)
	}
	if state.Expired(time.Now()) {
		_ = s.Delete(ctx, id)
		return authstate.AuthState{}, sentinel.ErrExpired
	}
	return state, nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM auth_states WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete auth state: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_states WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("sweep auth states: %w", err)
	}
	return tag.RowsAffected(), nil
}
