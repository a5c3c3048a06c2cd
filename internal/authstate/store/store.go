// Package store persists in-flight login attempts. Implementations cover the
// two persistence designs behind one interface: server-side records (memory,
// postgres, redis) and a client-held encrypted token (cookie).
package store

import (
	"context"
	"time"

	"tenantgate/internal/authstate"
)

// Store manages AuthState records keyed by the opaque identifier handed to
// the client. The identifier carries no trust; all trust derives from the
// server-side lookup (or, for the cookie variant, from authenticated
// decryption).
type Store interface {
	// Create persists the record and returns the pointer value to hand to
	// the client. Server-side stores return state.ID unchanged; the cookie
	// variant returns the encrypted record itself.
	Create(ctx context.Context, state authstate.AuthState) (string, error)

	// FindByID retrieves the record for the given tenant. Returns
	// sentinel.ErrNotFound when absent or owned by another tenant, and
	// sentinel.ErrExpired for a record past its TTL (which is removed on
	// the spot where the backend allows it).
	FindByID(ctx context.Context, id, tenant string) (authstate.AuthState, error)

	// Delete removes a consumed record. Deleting an already-gone record is
	// not an error: the consume path races with the cleanup sweep and is
	// resolved by idempotence, not locking.
	Delete(ctx context.Context, id string) error

	// DeleteExpired reclaims records whose expiry has passed, returning how
	// many were removed. Backends with native TTL may report zero.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
