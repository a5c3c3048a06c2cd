package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenantgate/internal/session"
	"tenantgate/pkg/sentinel"
)

// Postgres persists sessions as rows with a unique (tenant, email) key; see
// migrations/001_init.sql. The upsert rides on ON CONFLICT so concurrent
// callbacks for the same principal converge to one row without a
// read-then-write race.
type Postgres struct {
	pool   *pgxpool.Pool
	policy session.TerminationPolicy
}

func NewPostgres(pool *pgxpool.Pool, policy session.TerminationPolicy) *Postgres {
	return &Postgres{pool: pool, policy: policy}
}

func (s *Postgres) Upsert(ctx context.Context, sess session.Session) (session.Session, error) {
	query := `
		INSERT INTO sessions
			(id, tenant, email, logged_in, access_token, refresh_token, id_token, device, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant, email) DO UPDATE SET
			logged_in     = EXCLUDED.logged_in,
			access_token  = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			id_token      = EXCLUDED.id_token,
			device        = EXCLUDED.device,
			expires_at    = EXCLUDED.expires_at
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query,
		sess.ID, sess.Tenant, sess.Email, sess.LoggedIn,
		sess.AccessToken, sess.RefreshToken, sess.IDToken, sess.Device,
		sess.CreatedAt, sess.ExpiresAt,
	).Scan(&sess.ID, &sess.CreatedAt)
	if err != nil {
		return session.Session{}, fmt.Errorf("upsert session: %w", err)
	}
	return sess, nil
}

func (s *Postgres) FindByID(ctx context.Context, id, tenant string) (session.Session, error) {
	query := `
		SELECT id, tenant, email, logged_in,
		       COALESCE(access_token, ''), COALESCE(refresh_token, ''), COALESCE(id_token, ''),
		       COALESCE(device, ''), created_at, expires_at
		FROM sessions
		WHERE id = $1 AND tenant = $2
	`
	var sess session.Session
	err := s.pool.QueryRow(ctx, query, id, tenant).Scan(
		&sess.ID, &sess.Tenant, &sess.Email, &sess.LoggedIn,
		&sess.AccessToken, &sess.RefreshToken, &sess.IDToken,
		&sess.Device, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.Session{}, sentinel.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("find session: %w", err)
	}
	return sess, nil
}

func (s *Postgres) Terminate(ctx context.Context, id, tenant string) error {
	if s.policy == session.TerminateHard {
		if _, err := s.pool.Exec(ctx,
			`DELETE FROM sessions WHERE id = $1 AND tenant = $2`, id, tenant); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	}
	query := `
		UPDATE sessions
		SET logged_in = FALSE, access_token = NULL, refresh_token = NULL, id_token = NULL
		WHERE id = $1 AND tenant = $2
	`
	if _, err := s.pool.Exec(ctx, query, id, tenant); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}
