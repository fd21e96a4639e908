package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/originate-group/common-mcp-server/internal/logger"
)

// Middleware enforces authentication on the MCP endpoint. It accepts
// either a personal access token in the configured header or an OAuth
// bearer token in the Authorization header.
type Middleware struct {
	oauthConfig *OAuthConfig
	patConfig   *PATConfig
	validator   *BearerValidator
}

// NewMiddleware creates an authentication middleware. Either config may be
// nil, but not both.
func NewMiddleware(oauthConfig *OAuthConfig, patConfig *PATConfig) (*Middleware, error) {
	if oauthConfig == nil && patConfig == nil {
		return nil, fmt.Errorf("auth: at least one of oauth or pat config is required")
	}

	var validator *BearerValidator
	if oauthConfig != nil {
		var err error
		validator, err = NewBearerValidator(oauthConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bearer validator: %w", err)
		}
	}

	if patConfig != nil {
		if err := patConfig.Validate(); err != nil {
			return nil, err
		}
	}

	return &Middleware{
		oauthConfig: oauthConfig,
		patConfig:   patConfig,
		validator:   validator,
	}, nil
}

// Wrap returns an HTTP handler that authenticates the request before
// passing it to next. The caller identity is placed on the request context.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// PAT takes precedence: a caller sending both headers almost
		// certainly intends the application-issued token.
		if m.patConfig != nil {
			if token := r.Header.Get(m.patConfig.Header()); token != "" {
				m.authenticatePAT(w, r, next, token)
				return
			}
		}

		if m.validator != nil {
			m.authenticateBearer(w, r, next)
			return
		}

		m.sendUnauthorized(w, fmt.Sprintf("Missing %s header", m.patConfig.Header()))
	})
}

func (m *Middleware) authenticatePAT(w http.ResponseWriter, r *http.Request, next http.Handler, token string) {
	if !strings.HasPrefix(token, m.patConfig.Prefix) {
		m.sendUnauthorized(w, "Invalid token format")
		return
	}

	identity, err := m.patConfig.Verify(r.Context(), token, r)
	if err != nil {
		logger.Errorf("PAT verification failed: %v", err)
		m.sendUnauthorized(w, "Token verification failed")
		return
	}
	if identity == nil {
		m.sendUnauthorized(w, "Invalid token")
		return
	}

	identity.Method = MethodPAT
	identity.Token = token

	next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
}

func (m *Middleware) authenticateBearer(w http.ResponseWriter, r *http.Request, next http.Handler) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		m.sendUnauthorized(w, "Missing Authorization header")
		return
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		m.sendUnauthorized(w, "Invalid Authorization header format. Expected 'Bearer <token>'")
		return
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		m.sendUnauthorized(w, "Empty token")
		return
	}

	identity, err := m.validator.ValidateToken(r.Context(), token)
	if err != nil {
		logger.Debugf("bearer validation failed: %v", err)
		m.sendUnauthorized(w, "Invalid token: "+err.Error())
		return
	}

	next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
}

// sendUnauthorized sends a standardized 401 response with a
// WWW-Authenticate challenge pointing at the protected resource metadata.
func (m *Middleware) sendUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", m.challenge())
	w.WriteHeader(http.StatusUnauthorized)

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    -32600,
			"message": "Authentication required",
			"data":    message,
		},
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

func (m *Middleware) challenge() string {
	if m.oauthConfig != nil && m.oauthConfig.ResourceURL != "" {
		return fmt.Sprintf(`Bearer resource_metadata=%q`,
			strings.TrimSuffix(m.oauthConfig.ResourceURL, "/")+"/.well-known/oauth-protected-resource")
	}
	return "Bearer"
}
