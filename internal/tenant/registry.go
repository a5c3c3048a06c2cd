// Package tenant validates tenant identifiers against the closed, configured
// set and resolves per-tenant provider configuration. All auth state and
// sessions are partitioned by tenant; the registry is the single place that
// decides whether a tenant exists at all.
package tenant

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"

	"tenantgate/pkg/domainerrors"
)

// ProviderConfig holds one tenant's OIDC provider settings. Either IssuerURL
// is set explicitly, or it is derived Cognito-style from Region + UserPoolID.
type ProviderConfig struct {
	IssuerURL    string `envconfig:"ISSUER_URL"`
	Region       string `envconfig:"REGION"`
	UserPoolID   string `envconfig:"USER_POOL_ID"`
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`

	// Domain is the provider's hosted domain, used to build the logout URL.
	Domain string `envconfig:"DOMAIN"`

	// Derived from the deployment base URL, not read from the tenant block.
	RedirectURL           string `ignored:"true"`
	PostLogoutRedirectURL string `ignored:"true"`
}

// Issuer returns the issuer URL, deriving the Cognito form when no explicit
// issuer is configured.
func (c ProviderConfig) Issuer() string {
	if c.IssuerURL != "" {
		return c.IssuerURL
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// Registry is the closed tenant set plus a memoized view of each tenant's
// provider configuration. It is pure with respect to requests: Validate has
// no side effects and ResolveConfig only reads process configuration.
type Registry struct {
	baseURL string
	tenants map[string]struct{}
	order   []string

	mu      sync.RWMutex
	configs map[string]ProviderConfig
}

// NewRegistry builds a registry over the given closed tenant set. The base
// URL is used to derive per-tenant redirect URIs.
func NewRegistry(tenants []string, baseURL string) *Registry {
	set := make(map[string]struct{}, len(tenants))
	order := make([]string, 0, len(tenants))
	for _, t := range tenants {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := set[t]; ok {
			continue
		}
		set[t] = struct{}{}
		order = append(order, t)
	}
	return &Registry{
		baseURL: strings.TrimRight(baseURL, "/"),
		tenants: set,
		order:   order,
		configs: make(map[string]ProviderConfig, len(set)),
	}
}

// Validate reports whether tenantID belongs to the closed set. Callers
// receiving false must refuse the request; there is no default tenant.
func (r *Registry) Validate(tenantID string) bool {
	_, ok := r.tenants[tenantID]
	return ok
}

// Tenants returns the configured tenant identifiers in configuration order.
func (r *Registry) Tenants() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// RedirectURL returns the tenant's callback URL under the deployment base.
func (r *Registry) RedirectURL(tenantID string) string {
	return fmt.Sprintf("%s/%s/callback", r.baseURL, tenantID)
}

// ResolveConfig reads the tenant's provider settings from the environment,
// validating that every required field is present. Misconfiguration surfaces
// as CodeConfigMissing instead of being silently defaulted, since a
// half-configured tenant would otherwise fail authentication invisibly.
func (r *Registry) ResolveConfig(tenantID string) (ProviderConfig, error) {
	if !r.Validate(tenantID) {
		return ProviderConfig{}, domainerrors.New(domainerrors.CodeInvalidTenant,
			fmt.Sprintf("unknown tenant %q", tenantID))
	}

	r.mu.RLock()
	cfg, ok := r.configs[tenantID]
	r.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	cfg, err := r.loadConfig(tenantID)
	if err != nil {
		return ProviderConfig{}, err
	}

	r.mu.Lock()
	r.configs[tenantID] = cfg
	r.mu.Unlock()
	return cfg, nil
}

func (r *Registry) loadConfig(tenantID string) (ProviderConfig, error) {
	var cfg ProviderConfig
	prefix := envPrefix(tenantID)
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return ProviderConfig{}, domainerrors.Wrap(err, domainerrors.CodeConfigMissing,
			fmt.Sprintf("provider config for tenant %q", tenantID))
	}

	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, prefix+"_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, prefix+"_CLIENT_SECRET")
	}
	if cfg.Domain == "" {
		missing = append(missing, prefix+"_DOMAIN")
	}
	if cfg.IssuerURL == "" && (cfg.Region == "" || cfg.UserPoolID == "") {
		missing = append(missing, prefix+"_ISSUER_URL (or _REGION and _USER_POOL_ID)")
	}
	if len(missing) > 0 {
		return ProviderConfig{}, domainerrors.New(domainerrors.CodeConfigMissing,
			fmt.Sprintf("tenant %q is missing provider settings: %s", tenantID, strings.Join(missing, ", ")))
	}
	if _, err := url.ParseRequestURI(cfg.Issuer()); err != nil {
		return ProviderConfig{}, domainerrors.Wrap(err, domainerrors.CodeConfigMissing,
			fmt.Sprintf("tenant %q issuer URL is invalid", tenantID))
	}

	cfg.RedirectURL = r.RedirectURL(tenantID)
	cfg.PostLogoutRedirectURL = r.baseURL + "/"
	return cfg, nil
}

// envPrefix maps a tenant id to its environment block, e.g. "tenant-a"
// becomes OIDC_TENANT_A.
func envPrefix(tenantID string) string {
	return "OIDC_" + strings.ToUpper(strings.ReplaceAll(tenantID, "-", "_"))
}
