// Package service orchestrates the authentication protocol state machine:
// login start, callback completion, and logout. Transport concerns (cookies,
// HTTP redirects) stay in the handler; storage lives behind the store
// interfaces; the upstream issuer lives behind the Provider interface.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"tenantgate/internal/auth/metrics"
	"tenantgate/internal/authstate"
	authstatestore "tenantgate/internal/authstate/store"
	"tenantgate/internal/provider"
	"tenantgate/internal/session"
	sessionstore "tenantgate/internal/session/store"
	"tenantgate/internal/tenant"
	"tenantgate/pkg/domainerrors"
)

// Provider is the slice of the OIDC client the flow needs. The concrete
// implementation is *provider.Client; tests substitute a fake issuer.
type Provider interface {
	AuthorizationURL(ctx context.Context, tenantID string, cfg tenant.ProviderConfig, state, verifier string) (string, error)
	Exchange(ctx context.Context, tenantID string, cfg tenant.ProviderConfig, code, verifier string) (provider.TokenSet, error)
	UserInfo(ctx context.Context, tenantID string, cfg tenant.ProviderConfig, accessToken string) (provider.Identity, error)
	LogoutURL(cfg tenant.ProviderConfig, postLogoutRedirectURI string) (string, error)
}

// Service drives one login flow per request. It holds no per-request state;
// everything in-flight lives in the auth state store.
type Service struct {
	registry   *tenant.Registry
	provider   Provider
	authStates authstatestore.Store
	sessions   sessionstore.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	clock      func() time.Time

	// sweepTimeout bounds the fire-and-forget expired-state sweep so a slow
	// store cannot pile up goroutines.
	sweepTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs the auth service.
func New(registry *tenant.Registry, p Provider, authStates authstatestore.Store, sessions sessionstore.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		registry:     registry,
		provider:     p,
		authStates:   authStates,
		sessions:     sessions,
		logger:       logger,
		clock:        time.Now,
		sweepTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// StartLoginResult tells the handler where to send the browser and which
// auth state pointer to hand it.
type StartLoginResult struct {
	RedirectURL string
	AuthStateID string
}

// StartLogin begins the authorization code flow for the tenant: it generates
// the PKCE verifier and CSRF state from independent entropy, persists the
// auth state with a ten-minute expiry, and returns the issuer's
// authorization URL. A best-effort sweep of expired auth states is kicked
// off in the background; its failure never blocks the login.
func (s *Service) StartLogin(ctx context.Context, tenantID string) (StartLoginResult, error) {
	if !s.registry.Validate(tenantID) {
		return StartLoginResult{}, domainerrors.New(domainerrors.CodeInvalidTenant,
			fmt.Sprintf("unknown tenant %q", tenantID))
	}

	cfg, err := s.registry.ResolveConfig(tenantID)
	if err != nil {
		return StartLoginResult{}, err
	}

	verifier := oauth2.GenerateVerifier()
	state, err := randomState()
	if err != nil {
		return StartLoginResult{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate state value")
	}

	authURL, err := s.provider.AuthorizationURL(ctx, tenantID, cfg, state, verifier)
	if err != nil {
		return StartLoginResult{}, err
	}

	now := s.clock()
	id, err := s.authStates.Create(ctx, authstate.AuthState{
		ID:           uuid.NewString(),
		Tenant:       tenantID,
		CodeVerifier: verifier,
		State:        state,
		CreatedAt:    now,
		ExpiresAt:    now.Add(authstate.TTL),
	})
	if err != nil {
		return StartLoginResult{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "persist auth state")
	}

	s.metrics.IncLoginStarted(tenantID)
	s.logger.InfoContext(ctx, "login started", "tenant", tenantID)

	s.sweepExpired()

	return StartLoginResult{RedirectURL: authURL, AuthStateID: id}, nil
}

// sweepExpired reclaims expired auth states without blocking or failing the
// caller. It runs detached from the request context on purpose: the sweep
// must survive the login-start response.
func (s *Service) sweepExpired() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.sweepTimeout)
		defer cancel()
		n, err := s.authStates.DeleteExpired(ctx, s.clock())
		if err != nil {
			s.logger.WarnContext(ctx, "auth state sweep failed", "error", err)
			return
		}
		s.metrics.AddStatesSwept(n)
		if n > 0 {
			s.logger.InfoContext(ctx, "auth state sweep", "reclaimed", n)
		}
	}()
}

// CallbackInput is everything the handler extracts from the callback
// request: the tenant from the path, the pointer from the cookie, and the
// state and code echoed by the provider.
type CallbackInput struct {
	Tenant      string
	AuthStateID string
	State       string
	Code        string
	UserAgent   string
}

// CallbackResult always resolves to a redirect; a raw error never reaches
// the browser. SessionID is non-empty only when a session was established.
type CallbackResult struct {
	RedirectURL    string
	SessionID      string
	ClearAuthState bool
}

// HandleCallback completes the flow: it consumes the auth state, checks the
// CSRF state value, exchanges the code, fetches the identity, and upserts
// the session. Failure policy: tenant-validation failures fall back to the
// global root; a missing, foreign, or mismatched auth state falls back to
// the tenant entry page; provider-side failures after consumption fall back
// to the root. The auth state is deleted on success and on every fatal
// failure after retrieval, so it is never left reusable.
func (s *Service) HandleCallback(ctx context.Context, in CallbackInput) CallbackResult {
	if !s.registry.Validate(in.Tenant) {
		s.metrics.IncLoginFailure(in.Tenant, "validate_tenant")
		s.logger.WarnContext(ctx, "callback rejected", "tenant", in.Tenant, "step", "validate_tenant")
		return CallbackResult{RedirectURL: "/"}
	}

	tenantEntry := CallbackResult{RedirectURL: "/" + in.Tenant, ClearAuthState: true}
	root := CallbackResult{RedirectURL: "/", ClearAuthState: true}

	if in.AuthStateID == "" {
		s.metrics.IncLoginFailure(in.Tenant, "missing_pointer")
		s.logger.WarnContext(ctx, "callback without auth state pointer", "tenant", in.Tenant, "step", "lookup_state")
		return tenantEntry
	}

	state, err := s.authStates.FindByID(ctx, in.AuthStateID, in.Tenant)
	if err != nil {
		// Never created, already consumed, or expired: restart the login.
		s.metrics.IncLoginFailure(in.Tenant, "lookup_state")
		s.logger.WarnContext(ctx, "auth state unavailable", "tenant", in.Tenant, "step", "lookup_state", "error", err)
		return tenantEntry
	}

	if state.Tenant != in.Tenant {
		// Defends against state/cookie confusion across tenants.
		s.discardState(ctx, state.ID)
		s.metrics.IncLoginFailure(in.Tenant, "tenant_mismatch")
		s.logger.WarnContext(ctx, "auth state tenant mismatch",
			"tenant", in.Tenant, "state_tenant", state.Tenant, "step", "tenant_check")
		return tenantEntry
	}

	if state.State == "" || in.State == "" || state.State != in.State {
		s.discardState(ctx, state.ID)
		s.metrics.IncCSRFRejection(in.Tenant)
		// Both values are logged for forensics; they are single-use and
		// already burned at this point.
		s.logger.WarnContext(ctx, "state parameter mismatch, possible CSRF",
			"tenant", in.Tenant, "step", "csrf_check",
			"stored_state", state.State, "returned_state", in.State)
		return tenantEntry
	}

	cfg, err := s.registry.ResolveConfig(in.Tenant)
	if err != nil {
		s.discardState(ctx, state.ID)
		s.metrics.IncLoginFailure(in.Tenant, "resolve_config")
		s.logger.ErrorContext(ctx, "provider config unavailable", "tenant", in.Tenant, "step", "resolve_config", "error", err)
		return root
	}

	tokens, err := s.provider.Exchange(ctx, in.Tenant, cfg, in.Code, state.CodeVerifier)
	if err != nil {
		s.discardState(ctx, state.ID)
		s.metrics.IncLoginFailure(in.Tenant, "exchange")
		s.logger.ErrorContext(ctx, "token exchange failed", "tenant", in.Tenant, "step", "exchange", "error", err)
		return root
	}

	if tokens.AccessToken == "" || tokens.Expiry.IsZero() {
		// A partial session is worse than no session.
		s.discardState(ctx, state.ID)
		s.metrics.IncLoginFailure(in.Tenant, "incomplete_response")
		s.logger.ErrorContext(ctx, "incomplete token response", "tenant", in.Tenant, "step", "exchange",
			"has_access_token", tokens.AccessToken != "", "has_expiry", !tokens.Expiry.IsZero())
		return root
	}

	identity, err := s.provider.UserInfo(ctx, in.Tenant, cfg, tokens.AccessToken)
	if err != nil {
		s.discardState(ctx, state.ID)
		s.metrics.IncLoginFailure(in.Tenant, "userinfo")
		s.logger.ErrorContext(ctx, "user info fetch failed", "tenant", in.Tenant, "step", "userinfo", "error", err)
		return root
	}
	if identity.Email == "" {
		s.discardState(ctx, state.ID)
		s.metrics.IncLoginFailure(in.Tenant, "missing_email")
		s.logger.ErrorContext(ctx, "user info missing email claim", "tenant", in.Tenant, "step", "userinfo")
		return root
	}

	sess, err := s.sessions.Upsert(ctx, session.Session{
		ID:           uuid.NewString(),
		Tenant:       in.Tenant,
		Email:        identity.Email,
		LoggedIn:     true,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
		Device:       session.DeviceName(in.UserAgent),
		CreatedAt:    s.clock(),
		ExpiresAt:    tokens.Expiry,
	})
	if err != nil {
		s.discardState(ctx, state.ID)
		s.metrics.IncLoginFailure(in.Tenant, "upsert_session")
		s.logger.ErrorContext(ctx, "session upsert failed", "tenant", in.Tenant, "step", "upsert_session", "error", err)
		return root
	}

	s.discardState(ctx, state.ID)
	s.metrics.IncLoginCompleted(in.Tenant)
	s.logger.InfoContext(ctx, "login completed", "tenant", in.Tenant, "email", identity.Email)

	return CallbackResult{
		RedirectURL:    "/" + in.Tenant + "/home",
		SessionID:      sess.ID,
		ClearAuthState: true,
	}
}

// discardState deletes a consumed auth state. The delete may race the
// cleanup sweep; deleting an already-gone record is not an error, so the
// race needs no lock.
func (s *Service) discardState(ctx context.Context, id string) {
	if err := s.authStates.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "auth state delete failed", "error", err)
	}
}

// LogoutResult tells the handler where to send the browser and whether the
// session pointer must be cleared.
type LogoutResult struct {
	RedirectURL  string
	ClearSession bool
}

// Logout terminates the session per the configured policy and redirects to
// the provider's logout endpoint. Errors still resolve to a redirect.
func (s *Service) Logout(ctx context.Context, tenantID, sessionID string) LogoutResult {
	if !s.registry.Validate(tenantID) {
		return LogoutResult{RedirectURL: "/"}
	}

	if sessionID != "" {
		if err := s.sessions.Terminate(ctx, sessionID, tenantID); err != nil {
			s.logger.ErrorContext(ctx, "session terminate failed", "tenant", tenantID, "step", "terminate", "error", err)
		}
	}

	cfg, err := s.registry.ResolveConfig(tenantID)
	if err != nil {
		s.logger.ErrorContext(ctx, "provider config unavailable", "tenant", tenantID, "step", "logout", "error", err)
		return LogoutResult{RedirectURL: "/", ClearSession: true}
	}
	logoutURL, err := s.provider.LogoutURL(cfg, cfg.PostLogoutRedirectURL)
	if err != nil {
		s.logger.ErrorContext(ctx, "logout URL build failed", "tenant", tenantID, "step", "logout", "error", err)
		return LogoutResult{RedirectURL: "/", ClearSession: true}
	}

	s.logger.InfoContext(ctx, "logout", "tenant", tenantID)
	return LogoutResult{RedirectURL: logoutURL, ClearSession: true}
}

// randomState draws the CSRF state value from its own entropy, independent
// of the PKCE verifier.
func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
