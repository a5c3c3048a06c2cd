// Package provider is the OIDC relying-party client. It performs issuer
// discovery, builds authorization URLs, exchanges authorization codes, and
// fetches user-info, one configuration per tenant. Discovery results are
// cached for the process lifetime: populated on first use, never invalidated.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"tenantgate/internal/tenant"
	"tenantgate/pkg/domainerrors"
)

// TokenSet is the provider's answer to a successful code exchange.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	// Expiry is absolute; a zero value means the provider omitted
	// expires_in, which callers must treat as fatal.
	Expiry time.Time
}

// Identity carries the user-info claims the gateway cares about.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
}

type metadata struct {
	provider *oidc.Provider
	oauth    oauth2.Config
}

// Client talks to one OIDC issuer per tenant. Cache population is guarded by
// singleflight so a cache-miss stampede performs one discovery call; a
// duplicate slipping through would only do redundant work, never corrupt the
// cache.
type Client struct {
	logger *slog.Logger
	tracer trace.Tracer

	mu    sync.RWMutex
	cache map[string]*metadata
	group singleflight.Group
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		logger: logger,
		tracer: otel.Tracer("tenantgate/provider"),
		cache:  make(map[string]*metadata),
	}
}

func (c *Client) discover(ctx context.Context, tenantID string, cfg tenant.ProviderConfig) (*metadata, error) {
	c.mu.RLock()
	md, ok := c.cache[tenantID]
	c.mu.RUnlock()
	if ok {
		return md, nil
	}

	v, err, _ := c.group.Do(tenantID, func() (any, error) {
		ctx, span := c.tracer.Start(ctx, "oidc.discover",
			trace.WithAttributes(attribute.String("tenant", tenantID)))
		defer span.End()

		p, err := oidc.NewProvider(ctx, cfg.Issuer())
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeProviderError,
				fmt.Sprintf("discover issuer for tenant %q", tenantID))
		}
		md := &metadata{
			provider: p,
			oauth: oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			},
		}
		c.mu.Lock()
		c.cache[tenantID] = md
		c.mu.Unlock()
		return md, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*metadata), nil
}

// AuthorizationURL builds the issuer's authorization endpoint URL carrying
// the CSRF state and the S256 challenge derived from the PKCE verifier.
func (c *Client) AuthorizationURL(ctx context.Context, tenantID string, cfg tenant.ProviderConfig, state, verifier string) (string, error) {
	md, err := c.discover(ctx, tenantID, cfg)
	if err != nil {
		return "", err
	}
	return md.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Exchange trades the authorization code for tokens, proving possession of
// the original PKCE verifier. Provider-side rejections (invalid code,
// verifier mismatch, expired code) surface as CodeProviderError.
func (c *Client) Exchange(ctx context.Context, tenantID string, cfg tenant.ProviderConfig, code, verifier string) (TokenSet, error) {
	md, err := c.discover(ctx, tenantID, cfg)
	if err != nil {
		return TokenSet{}, err
	}

	ctx, span := c.tracer.Start(ctx, "oidc.exchange",
		trace.WithAttributes(attribute.String("tenant", tenantID)))
	defer span.End()

	token, err := md.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return TokenSet{}, domainerrors.Wrap(err, domainerrors.CodeProviderError,
			fmt.Sprintf("exchange authorization code for tenant %q", tenantID))
	}

	ts := TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if raw, ok := token.Extra("id_token").(string); ok {
		ts.IDToken = raw
	}
	return ts, nil
}

// UserInfo fetches the user-info document with the given access token.
func (c *Client) UserInfo(ctx context.Context, tenantID string, cfg tenant.ProviderConfig, accessToken string) (Identity, error) {
	md, err := c.discover(ctx, tenantID, cfg)
	if err != nil {
		return Identity{}, err
	}

	ctx, span := c.tracer.Start(ctx, "oidc.userinfo",
		trace.WithAttributes(attribute.String("tenant", tenantID)))
	defer span.End()

	info, err := md.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return Identity{}, domainerrors.Wrap(err, domainerrors.CodeProviderError,
			fmt.Sprintf("fetch user info for tenant %q", tenantID))
	}
	return Identity{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
	}, nil
}

// LogoutURL builds the provider's hosted logout endpoint. The shape follows
// the Cognito hosted UI: {domain}/logout?client_id=..&logout_uri=..
func (c *Client) LogoutURL(cfg tenant.ProviderConfig, postLogoutRedirectURI string) (string, error) {
	u, err := url.Parse(cfg.Domain)
	if err != nil || u.Scheme == "" {
		return "", domainerrors.New(domainerrors.CodeConfigMissing,
			fmt.Sprintf("provider domain %q is not a valid URL", cfg.Domain))
	}
	u = u.JoinPath("logout")
	q := u.Query()
	q.Set("client_id", cfg.ClientID)
	q.Set("logout_uri", postLogoutRedirectURI)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
