// Package session models the post-authentication record of one principal
// within one tenant, and the policy governing how sessions end.
package session

import (
	"fmt"
	"time"
)

// Session is one authenticated principal within one tenant. The pair
// (Tenant, Email) is unique: re-authentication updates the existing record
// instead of creating a duplicate.
type Session struct {
	ID           string
	Tenant       string
	Email        string
	LoggedIn     bool
	AccessToken  string
	RefreshToken string
	IDToken      string
	Device       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the session has passed its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// TerminationPolicy decides what "ending a session" means. One policy is
// picked per deployment and applied to both explicit logout and
// expiry-triggered logout, so the two paths cannot drift apart.
type TerminationPolicy string

const (
	// TerminateSoft clears the logged-in flag and nulls token fields while
	// keeping the record for audit history.
	TerminateSoft TerminationPolicy = "soft"

	// TerminateHard deletes the record; the identifier becomes unusable.
	TerminateHard TerminationPolicy = "hard"
)

// ParseTerminationPolicy validates a configured policy value.
func ParseTerminationPolicy(v string) (TerminationPolicy, error) {
	switch TerminationPolicy(v) {
	case TerminateSoft, TerminateHard:
		return TerminationPolicy(v), nil
	default:
		return "", fmt.Errorf("unknown session termination policy %q", v)
	}
}
