package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultPATHeader is the header checked for personal access tokens when
// PATConfig.HeaderName is empty.
const DefaultPATHeader = "X-API-Key"

// OAuthConfig holds bearer-token authentication configuration for an
// OpenID Connect issuer with realm-scoped endpoints (Keycloak layout).
type OAuthConfig struct {
	// ResourceURL is the public base URL of this application
	// (e.g. https://eng.example.com). Used for discovery metadata and
	// the WWW-Authenticate challenge.
	ResourceURL string `json:"resource_url"`

	// AuthServerURL is the issuer base URL (e.g. https://auth.example.com).
	AuthServerURL string `json:"auth_server_url"`

	// Realm is the issuer realm name.
	Realm string `json:"realm"`

	// ClientID is the shared public OAuth client returned by dynamic
	// client registration.
	ClientID string `json:"client_id"`

	// Audience, when set, must appear in the token's aud claim.
	Audience string `json:"audience"`

	// ServiceName is a human-readable name used in registration responses.
	ServiceName string `json:"service_name"`

	// JWKSCacheTimeout is the JWKS refresh window in seconds.
	JWKSCacheTimeout int `json:"jwks_cache_timeout"`
}

// NewOAuthConfig returns an OAuthConfig with default values.
func NewOAuthConfig() *OAuthConfig {
	return &OAuthConfig{
		ServiceName:      "Common MCP Server",
		JWKSCacheTimeout: 3600, // 1 hour
	}
}

// Validate checks that the configuration is usable.
func (c *OAuthConfig) Validate() error {
	if c.ResourceURL == "" {
		return fmt.Errorf("auth: resource_url is required")
	}
	if c.AuthServerURL == "" {
		return fmt.Errorf("auth: auth_server_url is required")
	}
	if c.Realm == "" {
		return fmt.Errorf("auth: realm is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("auth: client_id is required")
	}
	if c.JWKSCacheTimeout <= 0 {
		return fmt.Errorf("auth: jwks_cache_timeout must be positive")
	}
	return nil
}

// RealmBase returns the realm base URL, which is also the token issuer.
func (c *OAuthConfig) RealmBase() string {
	base := strings.TrimSuffix(c.AuthServerURL, "/")
	return fmt.Sprintf("%s/realms/%s", base, c.Realm)
}

// AuthorizeURL returns the issuer's authorization endpoint.
func (c *OAuthConfig) AuthorizeURL() string {
	return c.RealmBase() + "/protocol/openid-connect/auth"
}

// TokenURL returns the issuer's token endpoint.
func (c *OAuthConfig) TokenURL() string {
	return c.RealmBase() + "/protocol/openid-connect/token"
}

// UserinfoURL returns the issuer's userinfo endpoint.
func (c *OAuthConfig) UserinfoURL() string {
	return c.RealmBase() + "/protocol/openid-connect/userinfo"
}

// JWKSURL returns the issuer's JWKS endpoint.
func (c *OAuthConfig) JWKSURL() string {
	return c.RealmBase() + "/protocol/openid-connect/certs"
}

// PATVerifier checks an incoming personal access token. It returns the
// caller's identity, or (nil, nil) when the token is not recognised. A
// non-nil error signals a verification infrastructure failure, not an
// invalid token.
type PATVerifier func(ctx context.Context, token string, r *http.Request) (*Identity, error)

// PATConfig holds personal-access-token authentication configuration.
type PATConfig struct {
	// HeaderName is the request header carrying the token.
	// Defaults to DefaultPATHeader.
	HeaderName string `json:"header_name"`

	// Prefix is the required token prefix (e.g. "app_pat_"). Tokens
	// without the prefix are not passed to Verify.
	Prefix string `json:"prefix"`

	// Verify is the application-supplied verification callback.
	Verify PATVerifier `json:"-"`
}

// Validate checks that the configuration is usable.
func (c *PATConfig) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("auth: pat prefix is required")
	}
	if c.Verify == nil {
		return fmt.Errorf("auth: pat verify function is required")
	}
	return nil
}

// Header returns the configured header name, or the default.
func (c *PATConfig) Header() string {
	if c.HeaderName == "" {
		return DefaultPATHeader
	}
	return c.HeaderName
}
