// Package auth holds the pieces shared across the login flow: the pointer
// cookies handed to the client and their lifetimes. The cookie value is an
// opaque pointer; all trust derives from the server-side lookup it indexes.
package auth

import (
	"net/http"
	"time"

	"tenantgate/internal/authstate"
)

// SessionTTL bounds the session pointer cookie, independent of the token
// expiry stored on the record.
const SessionTTL = 7 * 24 * time.Hour

// SessionCookieName returns the per-tenant session pointer cookie name.
func SessionCookieName(tenant string) string {
	return "session_id_" + tenant
}

// AuthStateCookieName returns the per-tenant auth state pointer cookie name.
func AuthStateCookieName(tenant string) string {
	return "auth_state_id_" + tenant
}

func setCookie(w http.ResponseWriter, name, value string, maxAge int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSessionCookie writes the session pointer for the tenant.
func SetSessionCookie(w http.ResponseWriter, tenant, value string, secure bool) {
	setCookie(w, SessionCookieName(tenant), value, int(SessionTTL.Seconds()), secure)
}

// ClearSessionCookie expires the session pointer for the tenant.
func ClearSessionCookie(w http.ResponseWriter, tenant string, secure bool) {
	setCookie(w, SessionCookieName(tenant), "", -1, secure)
}

// SetAuthStateCookie writes the auth state pointer for the tenant. Writing a
// fresh pointer overwrites any previous one, which is what enforces "one
// live login attempt per browser" — not a store-side uniqueness constraint.
func SetAuthStateCookie(w http.ResponseWriter, tenant, value string, secure bool) {
	setCookie(w, AuthStateCookieName(tenant), value, int(authstate.TTL.Seconds()), secure)
}

// ClearAuthStateCookie expires the auth state pointer for the tenant.
func ClearAuthStateCookie(w http.ResponseWriter, tenant string, secure bool) {
	setCookie(w, AuthStateCookieName(tenant), "", -1, secure)
}

// CookieValue reads a cookie value, returning "" when absent.
func CookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
