package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const testKeyID = "test-key-1"

// newIssuer starts a fake issuer serving a JWKS for the returned RSA key
// and returns a matching OAuthConfig.
func newIssuer(t *testing.T) (*OAuthConfig, *rsa.PrivateKey) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	key, err := jwk.FromRaw(privateKey.Public())
	if err != nil {
		t.Fatalf("failed to build JWK: %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, testKeyID); err != nil {
		t.Fatalf("failed to set kid: %v", err)
	}
	if err := key.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		t.Fatalf("failed to set alg: %v", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		t.Fatalf("failed to add key to set: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/example/protocol/openid-connect/certs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(set); err != nil {
			t.Errorf("failed to encode JWKS: %v", err)
		}
	})

	issuer := httptest.NewServer(mux)
	t.Cleanup(issuer.Close)

	config := NewOAuthConfig()
	config.ResourceURL = "https://eng.example.com"
	config.AuthServerURL = issuer.URL
	config.Realm = "example"
	config.ClientID = "example-api"

	return config, privateKey
}

// signToken creates an RS256 token with the given claim overrides.
func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func baseClaims(issuer string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":                issuer,
		"sub":                "user-123",
		"aud":                "example-api",
		"exp":                now.Add(time.Hour).Unix(),
		"iat":                now.Unix(),
		"email":              "user@example.com",
		"preferred_username": "user",
		"name":               "Example User",
	}
}

func TestBearerValidator_ValidToken(t *testing.T) {
	config, key := newIssuer(t)

	validator, err := NewBearerValidator(config)
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	tokenString := signToken(t, key, baseClaims(config.RealmBase()))

	identity, err := validator.ValidateToken(context.Background(), tokenString)
	if err != nil {
		t.Fatalf("expected valid token, got error: %v", err)
	}

	if identity.UserID != "user-123" {
		t.Errorf("expected UserID user-123, got %s", identity.UserID)
	}
	if identity.Email != "user@example.com" {
		t.Errorf("expected email user@example.com, got %s", identity.Email)
	}
	if identity.Username != "user" {
		t.Errorf("expected username user, got %s", identity.Username)
	}
	if identity.Method != MethodBearer {
		t.Errorf("expected method bearer, got %s", identity.Method)
	}
	if identity.Token != tokenString {
		t.Error("expected raw token to be preserved on the identity")
	}
}

func TestBearerValidator_RejectsBadTokens(t *testing.T) {
	config, key := newIssuer(t)
	config.Audience = "example-api"

	validator, err := NewBearerValidator(config)
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	issuer := config.RealmBase()

	tests := []struct {
		name  string
		token func() string
	}{
		{
			name: "expired",
			token: func() string {
				claims := baseClaims(issuer)
				claims["exp"] = time.Now().Add(-time.Hour).Unix()
				return signToken(t, key, claims)
			},
		},
		{
			name: "wrong issuer",
			token: func() string {
				claims := baseClaims(issuer)
				claims["iss"] = "https://evil.example.com/realms/example"
				return signToken(t, key, claims)
			},
		},
		{
			name: "wrong audience",
			token: func() string {
				claims := baseClaims(issuer)
				claims["aud"] = "other-api"
				return signToken(t, key, claims)
			},
		},
		{
			name: "missing sub",
			token: func() string {
				claims := baseClaims(issuer)
				delete(claims, "sub")
				return signToken(t, key, claims)
			},
		},
		{
			name: "unknown key",
			token: func() string {
				otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
				if err != nil {
					t.Fatalf("failed to generate key: %v", err)
				}
				return signToken(t, otherKey, baseClaims(issuer))
			},
		},
		{
			name: "wrong signing method",
			token: func() string {
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, baseClaims(issuer))
				token.Header["kid"] = testKeyID
				signed, err := token.SignedString([]byte("secret"))
				if err != nil {
					t.Fatalf("failed to sign token: %v", err)
				}
				return signed
			},
		},
		{
			name:  "garbage",
			token: func() string { return "not-a-token" },
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := validator.ValidateToken(context.Background(), test.token()); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestBearerValidator_AcceptsAzpAudience(t *testing.T) {
	config, key := newIssuer(t)
	config.Audience = "example-api"

	validator, err := NewBearerValidator(config)
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	claims := baseClaims(config.RealmBase())
	claims["aud"] = "account"
	claims["azp"] = "example-api"

	if _, err := validator.ValidateToken(context.Background(), signToken(t, key, claims)); err != nil {
		t.Errorf("expected azp to satisfy the audience check, got error: %v", err)
	}
}

func TestMiddleware_BearerEndToEnd(t *testing.T) {
	config, key := newIssuer(t)

	m, err := NewMiddleware(config, nil)
	if err != nil {
		t.Fatalf("failed to create middleware: %v", err)
	}

	var captured *Identity
	handler := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tokenString := signToken(t, key, baseClaims(config.RealmBase()))
	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", tokenString))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if captured == nil || captured.UserID != "user-123" {
		t.Errorf("expected bearer identity on context, got %+v", captured)
	}
}
