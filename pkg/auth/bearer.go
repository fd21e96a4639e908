package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// BearerValidator validates OAuth bearer tokens against the issuer's JWKS.
type BearerValidator struct {
	clientID   string
	audience   string
	issuer     string
	jwksURL    string
	jwksCache  *jwk.Cache
	httpClient *http.Client
}

// Claims represents the JWT claims structure for issuer-signed tokens.
type Claims struct {
	jwt.RegisteredClaims
	Scope             string `json:"scope"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	AuthorizedParty   string `json:"azp"`
}

// NewBearerValidator creates a bearer token validator for the configured issuer.
func NewBearerValidator(config *OAuthConfig) (*BearerValidator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	jwksURL := config.JWKSURL()

	// Create JWKS cache with auto-refresh
	cache := jwk.NewCache(context.Background())

	refreshInterval := time.Duration(config.JWKSCacheTimeout/2) * time.Second
	if refreshInterval < 15*time.Minute {
		refreshInterval = 15 * time.Minute // Minimum refresh interval
	}

	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(refreshInterval)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS cache: %w", err)
	}

	return &BearerValidator{
		clientID:   config.ClientID,
		audience:   config.Audience,
		issuer:     config.RealmBase(),
		jwksURL:    jwksURL,
		jwksCache:  cache,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// ValidateToken validates a bearer JWT and returns the caller identity.
func (v *BearerValidator) ValidateToken(ctx context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify the signing method
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		// Get the key ID from the token header
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing kid in token header")
		}

		// Get the key set from cache
		keySet, err := v.jwksCache.Get(ctx, v.jwksURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get JWKS: %w", err)
		}

		// Find the key with the matching kid
		key, found := keySet.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("key %s not found in JWKS", kid)
		}

		// Extract the raw key
		var rawKey interface{}
		if err := key.Raw(&rawKey); err != nil {
			return nil, fmt.Errorf("failed to get raw key: %w", err)
		}

		return rawKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if err := v.validateBasicClaims(claims); err != nil {
		return nil, err
	}

	return &Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Username: claims.PreferredUsername,
		Name:     claims.Name,
		Method:   MethodBearer,
		Token:    tokenString,
	}, nil
}

// validateBasicClaims validates the issuer and, when configured, the audience.
func (v *BearerValidator) validateBasicClaims(claims *Claims) error {
	if claims.Issuer != v.issuer {
		return fmt.Errorf("invalid issuer: expected %s, got %s", v.issuer, claims.Issuer)
	}

	if claims.Subject == "" {
		return fmt.Errorf("missing sub claim")
	}

	if v.audience == "" {
		return nil
	}

	for _, aud := range claims.Audience {
		if aud == v.audience {
			return nil
		}
	}

	// Keycloak puts the requesting client in azp rather than aud for
	// public clients; accept it as the audience.
	if claims.AuthorizedParty == v.audience {
		return nil
	}

	return fmt.Errorf("invalid audience: expected %s, got %v", v.audience, claims.Audience)
}
