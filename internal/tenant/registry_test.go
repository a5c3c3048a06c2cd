package tenant

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tenantgate/pkg/domainerrors"
)

func TestValidate(t *testing.T) {
	r := NewRegistry([]string{"tenant-a", "tenant-b"}, "http://localhost:8080")

	require.True(t, r.Validate("tenant-a"))
	require.True(t, r.Validate("tenant-b"))
	require.False(t, r.Validate("tenant-c"))
	require.False(t, r.Validate(""))
	require.False(t, r.Validate("TENANT-A"), "tenant ids are case sensitive")
}

func TestNewRegistryNormalizes(t *testing.T) {
	r := NewRegistry([]string{" tenant-a ", "", "tenant-a", "tenant-b"}, "http://localhost:8080/")

	require.Equal(t, []string{"tenant-a", "tenant-b"}, r.Tenants())
	require.Equal(t, "http://localhost:8080/tenant-a/callback", r.RedirectURL("tenant-a"))
}

func TestResolveConfig(t *testing.T) {
	r := NewRegistry([]string{"tenant-a"}, "http://localhost:8080")

	t.Setenv("OIDC_TENANT_A_CLIENT_ID", "client-id")
	t.Setenv("OIDC_TENANT_A_CLIENT_SECRET", "client-secret")
	t.Setenv("OIDC_TENANT_A_DOMAIN", "https://auth.tenant-a.example.com")
	t.Setenv("OIDC_TENANT_A_REGION", "eu-west-1")
	t.Setenv("OIDC_TENANT_A_USER_POOL_ID", "eu-west-1_abc123")

	cfg, err := r.ResolveConfig("tenant-a")
	require.NoError(t, err)
	require.Equal(t, "client-id", cfg.ClientID)
	require.Equal(t, "https://cognito-idp.eu-west-1.amazonaws.com/eu-west-1_abc123", cfg.Issuer())
	require.Equal(t, "http://localhost:8080/tenant-a/callback", cfg.RedirectURL)
	require.Equal(t, "http://localhost:8080/", cfg.PostLogoutRedirectURL)
}

func TestResolveConfigExplicitIssuer(t *testing.T) {
	r := NewRegistry([]string{"tenant-a"}, "http://localhost:8080")

	t.Setenv("OIDC_TENANT_A_CLIENT_ID", "client-id")
	t.Setenv("OIDC_TENANT_A_CLIENT_SECRET", "client-secret")
	t.Setenv("OIDC_TENANT_A_DOMAIN", "https://auth.example.com")
	t.Setenv("OIDC_TENANT_A_ISSUER_URL", "https://issuer.example.com/realm")

	cfg, err := r.ResolveConfig("tenant-a")
	require.NoError(t, err)
	require.Equal(t, "https://issuer.example.com/realm", cfg.Issuer())
}

func TestResolveConfigUnknownTenant(t *testing.T) {
	r := NewRegistry([]string{"tenant-a"}, "http://localhost:8080")

	_, err := r.ResolveConfig("tenant-c")
	require.Error(t, err)
	require.True(t, domainerrors.HasCode(err, domainerrors.CodeInvalidTenant))
}

func TestResolveConfigMissingSettings(t *testing.T) {
	r := NewRegistry([]string{"tenant-a"}, "http://localhost:8080")

	t.Setenv("OIDC_TENANT_A_CLIENT_ID", "client-id")
	// No secret, domain, or issuer settings.

	_, err := r.ResolveConfig("tenant-a")
	require.Error(t, err)
	require.True(t, domainerrors.HasCode(err, domainerrors.CodeConfigMissing))
	require.Contains(t, err.Error(), "OIDC_TENANT_A_CLIENT_SECRET")
	require.Contains(t, err.Error(), "OIDC_TENANT_A_DOMAIN")
}

func TestResolveConfigMemoizes(t *testing.T) {
	r := NewRegistry([]string{"tenant-a"}, "http://localhost:8080")

	t.Setenv("OIDC_TENANT_A_CLIENT_ID", "client-id")
	t.Setenv("OIDC_TENANT_A_CLIENT_SECRET", "client-secret")
	t.Setenv("OIDC_TENANT_A_DOMAIN", "https://auth.example.com")
	t.Setenv("OIDC_TENANT_A_ISSUER_URL", "https://issuer.example.com")

	first, err := r.ResolveConfig("tenant-a")
	require.NoError(t, err)

	// Later env changes must not alter the resolved view.
	t.Setenv("OIDC_TENANT_A_CLIENT_ID", "changed")
	second, err := r.ResolveConfig("tenant-a")
	require.NoError(t, err)
	require.Equal(t, first.ClientID, second.ClientID)
}
