// Package authstate models the short-lived, single-use record created at
// login start and consumed at callback. It binds the PKCE verifier and CSRF
// state value to one tenant for the lifetime of one login attempt.
package authstate

import "time"

// TTL is how long an in-flight login attempt stays valid.
const TTL = 10 * time.Minute

// AuthState is one in-flight login attempt. It must never be reusable after
// consumption; if never consumed it passively expires and is reclaimed by the
// cleanup sweep.
type AuthState struct {
	ID           string
	Tenant       string
	CodeVerifier string
	State        string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the record has passed its expiry at the given time.
func (a AuthState) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
