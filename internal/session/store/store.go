// Package store persists sessions. The memory and postgres implementations
// are server-side records; the jwt implementation folds the session into a
// signed client-held token.
package store

import (
	"context"

	"tenantgate/internal/session"
)

// Store manages session records. Lookups are always tenant-scoped: a session
// identifier presented under the wrong tenant behaves exactly like a missing
// one.
type Store interface {
	// Upsert atomically inserts or updates the record keyed by
	// (tenant, email) and returns the stored session, including the
	// surviving identifier when an existing record was updated. Concurrent
	// callbacks for the same pair must converge to a single record.
	Upsert(ctx context.Context, sess session.Session) (session.Session, error)

	// FindByID retrieves the session for the given tenant. Returns
	// sentinel.ErrNotFound when absent or owned by another tenant.
	FindByID(ctx context.Context, id, tenant string) (session.Session, error)

	// Terminate ends the session per the store's configured policy.
	// Terminating an absent session is not an error.
	Terminate(ctx context.Context, id, tenant string) error
}
