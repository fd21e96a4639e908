// Package oauth provides the OAuth discovery and proxy endpoints required
// to put an MCP server behind an external OpenID Connect issuer.
//
// The server itself is not an authorization server: authorize, token and
// userinfo requests are forwarded to the issuer. The discovery documents
// (RFC 8414, RFC 9728) advertise this server's proxies so MCP clients can
// complete the authorization code flow without issuer-specific knowledge.
package oauth

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/originate-group/common-mcp-server/internal/logger"
	"github.com/originate-group/common-mcp-server/pkg/auth"
)

// proxyTimeout bounds calls forwarded to the issuer.
const proxyTimeout = 30 * time.Second

// EndpointManager registers OAuth endpoints on an HTTP mux.
type EndpointManager struct {
	config     *auth.OAuthConfig
	version    string
	httpClient *http.Client
}

// NewEndpointManager creates an endpoint manager for the given config.
func NewEndpointManager(config *auth.OAuthConfig, version string) *EndpointManager {
	return &EndpointManager{
		config:     config,
		version:    version,
		httpClient: &http.Client{Timeout: proxyTimeout},
	}
}

// RegisterEndpoints registers all OAuth endpoints on the mux.
func (m *EndpointManager) RegisterEndpoints(mux *http.ServeMux) {
	mux.HandleFunc("/.well-known/oauth-authorization-server", m.authorizationServerMetadataHandler())
	mux.HandleFunc("/.well-known/oauth-protected-resource", m.protectedResourceMetadataHandler())
	mux.HandleFunc("/oauth/authorize", m.authorizeHandler())
	mux.HandleFunc("/oauth/token", m.tokenHandler())
	mux.HandleFunc("/oauth/register", m.registerHandler())
	mux.HandleFunc("/oauth/userinfo", m.userinfoHandler())
	mux.HandleFunc("/health", m.healthHandler())
}

func (m *EndpointManager) resourceBase() string {
	return strings.TrimSuffix(m.config.ResourceURL, "/")
}

// authorizationServerMetadataHandler serves RFC 8414 metadata. The
// advertised endpoints are this server's proxies, not the issuer's.
func (m *EndpointManager) authorizationServerMetadataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		logger.Debugf("OAuth discovery request from %s", r.RemoteAddr)

		base := m.resourceBase()
		metadata := AuthorizationServerMetadata{
			Issuer:                            m.config.RealmBase(),
			AuthorizationEndpoint:             base + "/oauth/authorize",
			TokenEndpoint:                     base + "/oauth/token",
			RegistrationEndpoint:              base + "/oauth/register",
			JWKSURI:                           m.config.JWKSURL(),
			ResponseTypesSupported:            []string{"code"},
			GrantTypesSupported:               []string{"authorization_code", "refresh_token"},
			CodeChallengeMethodsSupported:     []string{"S256"},
			TokenEndpointAuthMethodsSupported: []string{"none"},
			ScopesSupported:                   []string{"openid", "profile", "email", "offline_access"},
			SubjectTypesSupported:             []string{"public"},
			IDTokenSigningAlgValuesSupported:  []string{"RS256"},
			ClaimsSupported: []string{
				"sub", "iss", "aud", "exp", "iat",
				"email", "email_verified", "name", "preferred_username",
			},
			ResourceParameterSupported: true,
			ServiceDocumentation:       base + "/docs",
		}

		writeJSON(w, http.StatusOK, metadata)
	}
}

// protectedResourceMetadataHandler serves RFC 9728 metadata.
func (m *EndpointManager) protectedResourceMetadataHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		base := m.resourceBase()
		metadata := ProtectedResourceMetadata{
			Resource:                          base + "/mcp",
			AuthorizationServers:              []string{base},
			BearerMethodsSupported:            []string{"header"},
			ResourceSigningAlgValuesSupported: []string{"RS256"},
			ScopesSupported:                   []string{"openid", "profile", "email"},
			ResourceDocumentation:             base + "/docs",
			MCPEndpoints:                      []string{base + "/mcp"},
		}

		writeJSON(w, http.StatusOK, metadata)
	}
}

// authorizeHandler redirects to the issuer's authorization endpoint,
// preserving all query parameters for the PKCE code flow.
func (m *EndpointManager) authorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			m.sendPreflight(w)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		logger.Debugf("authorization request: client_id=%s", r.URL.Query().Get("client_id"))

		target := m.config.AuthorizeURL()
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}

		http.Redirect(w, r, target, http.StatusFound)
	}
}

// tokenHandler proxies token requests (code exchange and refresh) to the issuer.
func (m *EndpointManager) tokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			m.sendPreflight(w)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
			return
		}

		logger.Debugf("token request: grant_type=%s", r.PostForm.Get("grant_type"))

		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
			m.config.TokenURL(), strings.NewReader(r.PostForm.Encode()))
		if err != nil {
			writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := m.httpClient.Do(req)
		if err != nil {
			logger.Errorf("token request failed: %v", err)
			writeOAuthError(w, http.StatusBadGateway, "server_error", err.Error())
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			logger.Warnf("issuer token error: %d", resp.StatusCode)
		}

		m.relay(w, resp)
	}
}

// registerHandler implements RFC 7591 dynamic client registration by
// returning the pre-configured shared public client. The issuer client
// must allow the MCP client's redirect URIs and the PKCE code flow.
func (m *EndpointManager) registerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			m.sendPreflight(w)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			ClientName   string   `json:"client_name"`
			RedirectURIs []string `json:"redirect_uris"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", err.Error())
			return
		}
		if body.ClientName == "" {
			body.ClientName = "MCP Client"
		}

		logger.Debugf("client registration: %s, uris=%v", body.ClientName, body.RedirectURIs)

		response := ClientRegistrationResponse{
			ClientID:                m.config.ClientID,
			ClientSecret:            "",
			ClientName:              body.ClientName,
			RedirectURIs:            body.RedirectURIs,
			GrantTypes:              []string{"authorization_code", "refresh_token"},
			ResponseTypes:           []string{"code"},
			TokenEndpointAuthMethod: "none",
			ApplicationType:         "web",
		}

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusCreated, response)
	}
}

// userinfoHandler proxies userinfo requests to the issuer with the
// caller's Authorization header.
func (m *EndpointManager) userinfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "")
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, m.config.UserinfoURL(), nil)
		if err != nil {
			writeOAuthError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		req.Header.Set("Authorization", authHeader)

		resp, err := m.httpClient.Do(req)
		if err != nil {
			logger.Errorf("userinfo request failed: %v", err)
			writeOAuthError(w, http.StatusBadGateway, "server_error", "")
			return
		}
		defer func() { _ = resp.Body.Close() }()

		m.relay(w, resp)
	}
}

// healthHandler reports service liveness.
func (m *EndpointManager) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": m.config.ServiceName,
			"version": m.version,
		})
	}
}

// relay copies an issuer response to the client verbatim.
func (m *EndpointManager) relay(w http.ResponseWriter, resp *http.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.Debugf("relay copy failed: %v", err)
	}
}

// sendPreflight answers CORS preflight requests for OAuth endpoints.
func (m *EndpointManager) sendPreflight(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("failed to encode response: %v", err)
	}
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	writeJSON(w, status, body)
}
