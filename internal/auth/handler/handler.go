// Package handler wires the login flow endpoints to the auth service. The
// handlers own the transport half of the protocol: reading pointer cookies,
// writing and clearing them, and issuing the redirects the service decides
// on.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tenantgate/internal/auth"
	"tenantgate/internal/auth/middleware"
	"tenantgate/internal/auth/service"
	"tenantgate/internal/tenant"
	"tenantgate/pkg/httputil"
	"tenantgate/pkg/requestcontext"
)

// Service defines the flow operations the handlers delegate to.
type Service interface {
	StartLogin(ctx context.Context, tenantID string) (service.StartLoginResult, error)
	HandleCallback(ctx context.Context, in service.CallbackInput) service.CallbackResult
	Logout(ctx context.Context, tenantID, sessionID string) service.LogoutResult
}

// Handler serves the per-tenant authentication endpoints.
type Handler struct {
	service  Service
	registry *tenant.Registry
	logger   *slog.Logger
	secure   bool
}

// New constructs the auth handler. secure controls the Secure attribute on
// every cookie the handler writes.
func New(svc Service, registry *tenant.Registry, logger *slog.Logger, secure bool) *Handler {
	return &Handler{
		service:  svc,
		registry: registry,
		logger:   logger,
		secure:   secure,
	}
}

// Register mounts the flow endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/{tenant}/login", h.HandleLogin)
	r.Get("/{tenant}/callback", h.HandleCallback)
	r.Get("/{tenant}/logout", h.HandleLogout)
	r.Get("/{tenant}", h.HandleEntry)
	r.Get("/{tenant}/home", h.HandleHome)
	r.Get("/{tenant}/profile", h.HandleProfile)
}

// HandleLogin handles GET /{tenant}/login: it creates the auth state, hands
// the browser its pointer cookie, and redirects to the provider's
// authorization endpoint.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "tenant")

	result, err := h.service.StartLogin(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "login start failed",
			"request_id", requestcontext.RequestID(ctx),
			"tenant", tenantID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	auth.SetAuthStateCookie(w, tenantID, result.AuthStateID, h.secure)
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// HandleCallback handles GET /{tenant}/callback, the provider's return leg.
// Whatever happens inside the flow, the browser gets a redirect.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	q := r.URL.Query()

	result := h.service.HandleCallback(r.Context(), service.CallbackInput{
		Tenant:      tenantID,
		AuthStateID: auth.CookieValue(r, auth.AuthStateCookieName(tenantID)),
		State:       q.Get("state"),
		Code:        q.Get("code"),
		UserAgent:   r.UserAgent(),
	})

	if result.ClearAuthState {
		auth.ClearAuthStateCookie(w, tenantID, h.secure)
	}
	if result.SessionID != "" {
		auth.SetSessionCookie(w, tenantID, result.SessionID, h.secure)
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// HandleLogout handles GET /{tenant}/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")

	result := h.service.Logout(r.Context(), tenantID,
		auth.CookieValue(r, auth.SessionCookieName(tenantID)))

	if result.ClearSession {
		auth.ClearSessionCookie(w, tenantID, h.secure)
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// HandleEntry handles GET /{tenant}, the public tenant entry page.
func (h *Handler) HandleEntry(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	if !h.registry.Validate(tenantID) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"tenant": tenantID,
		"login":  "/" + tenantID + "/login",
	})
}

// HandleHome handles GET /{tenant}/home. The route guard has already
// attached the session; a missing one means the guard was not mounted.
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"tenant": sess.Tenant,
		"email":  sess.Email,
	})
}

// HandleProfile handles GET /{tenant}/profile.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"tenant":     sess.Tenant,
		"email":      sess.Email,
		"device":     sess.Device,
		"created_at": sess.CreatedAt.Format(time.RFC3339),
		"expires_at": sess.ExpiresAt.Format(time.RFC3339),
	})
}
