// Package middleware carries the route guard that gates protected tenant
// paths behind a live session.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tenantgate/internal/auth"
	"tenantgate/internal/auth/metrics"
	"tenantgate/internal/session"
	sessionstore "tenantgate/internal/session/store"
	"tenantgate/internal/tenant"
	"tenantgate/pkg/sentinel"
)

type contextKey struct{ name string }

var sessionKey = contextKey{"session"}

// SessionFromContext returns the session the guard attached after a
// successful check on a protected path.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(session.Session)
	return sess, ok
}

// Guard enforces the tenant prefix and session requirement on every request
// it wraps. Paths under an unknown tenant bounce to the root; protected
// paths without a usable session bounce to the tenant login. The session
// store is consulted only for protected paths, so public traffic costs no
// lookup.
type Guard struct {
	registry  *tenant.Registry
	sessions  sessionstore.Store
	protected map[string]struct{}
	logger    *slog.Logger
	metrics   *metrics.Metrics
	secure    bool
}

// NewGuard builds the route guard. protectedPrefixes are tenant-relative
// first path segments, e.g. "home" protects /{tenant}/home and everything
// under it.
func NewGuard(registry *tenant.Registry, sessions sessionstore.Store, protectedPrefixes []string, logger *slog.Logger, m *metrics.Metrics, secure bool) *Guard {
	prot := make(map[string]struct{}, len(protectedPrefixes))
	for _, p := range protectedPrefixes {
		p = strings.Trim(strings.TrimSpace(p), "/")
		if p != "" {
			prot[p] = struct{}{}
		}
	}
	return &Guard{
		registry:  registry,
		sessions:  sessions,
		protected: prot,
		logger:    logger,
		metrics:   m,
		secure:    secure,
	}
}

// Handler wraps next with the guard checks.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		if path == "" {
			next.ServeHTTP(w, r)
			return
		}

		segments := strings.Split(path, "/")
		tenantID := segments[0]
		if !g.registry.Validate(tenantID) {
			g.metrics.IncGuardRedirect(tenantID, "invalid_tenant")
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		if len(segments) < 2 {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := g.protected[segments[1]]; !ok {
			next.ServeHTTP(w, r)
			return
		}

		loginURL := "/" + tenantID + "/login"

		sessionID := auth.CookieValue(r, auth.SessionCookieName(tenantID))
		if sessionID == "" {
			g.metrics.IncGuardRedirect(tenantID, "no_session")
			http.Redirect(w, r, loginURL, http.StatusFound)
			return
		}

		sess, err := g.sessions.FindByID(r.Context(), sessionID, tenantID)
		switch {
		case errors.Is(err, sentinel.ErrExpired):
			g.terminateExpired(w, r, tenantID, sessionID)
			return
		case err != nil:
			g.redirectToLogin(w, r, tenantID, "not_found")
			return
		case sess.Expired(time.Now()):
			g.terminateExpired(w, r, tenantID, sessionID)
			return
		case !sess.LoggedIn:
			g.redirectToLogin(w, r, tenantID, "logged_out")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// terminateExpired runs an expired session through the same termination
// policy as an explicit logout before bouncing to login.
func (g *Guard) terminateExpired(w http.ResponseWriter, r *http.Request, tenantID, sessionID string) {
	if err := g.sessions.Terminate(r.Context(), sessionID, tenantID); err != nil {
		g.logger.WarnContext(r.Context(), "expired session terminate failed", "tenant", tenantID, "error", err)
	}
	g.redirectToLogin(w, r, tenantID, "expired")
}

func (g *Guard) redirectToLogin(w http.ResponseWriter, r *http.Request, tenantID, reason string) {
	auth.ClearSessionCookie(w, tenantID, g.secure)
	g.metrics.IncGuardRedirect(tenantID, reason)
	http.Redirect(w, r, "/"+tenantID+"/login", http.StatusFound)
}
