// Package forward implements a tool handler that relays tool calls to an
// internal REST API.
//
// Downstream failures are deliberately rendered as human-readable text
// content rather than structured errors: the MCP client always receives a
// successful-shaped result describing what went wrong.
package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/originate-group/common-mcp-server/internal/logger"
	"github.com/originate-group/common-mcp-server/pkg/auth"
)

// DefaultTimeout bounds each forwarded call.
const DefaultTimeout = 30 * time.Second

// Route maps a tool name onto an upstream REST endpoint.
type Route struct {
	Method string
	Path   string
}

// Forwarder relays tool invocations to an internal REST API, building
// per-request headers from the caller's credentials.
type Forwarder struct {
	baseURL    string
	patHeader  string
	routes     map[string]Route
	httpClient *http.Client
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		f.httpClient.Timeout = d
	}
}

// WithPATHeader sets the header used to forward PAT credentials upstream.
func WithPATHeader(name string) Option {
	return func(f *Forwarder) {
		f.patHeader = name
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		f.httpClient = c
	}
}

// New creates a Forwarder targeting the given REST API base URL.
func New(baseURL string, opts ...Option) (*Forwarder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("forward: base URL is required")
	}

	f := &Forwarder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		patHeader:  auth.DefaultPATHeader,
		routes:     make(map[string]Route),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Register maps a tool name onto a specific upstream method and path.
// Unregistered tools use POST /tools/<name>.
func (f *Forwarder) Register(tool string, route Route) {
	if route.Method == "" {
		route.Method = http.MethodPost
	}
	f.routes[tool] = route
}

// Handle relays a tool call upstream and flattens the response into text
// content. The returned error is always nil; failures become content.
func (f *Forwarder) Handle(ctx context.Context, name string, args map[string]interface{}, identity *auth.Identity) ([]mcp.Content, error) {
	route, ok := f.routes[name]
	if !ok {
		route = Route{Method: http.MethodPost, Path: "/tools/" + name}
	}

	body, err := json.Marshal(args)
	if err != nil {
		return textContent(fmt.Sprintf("Error encoding arguments for %s: %v", name, err)), nil
	}

	req, err := http.NewRequestWithContext(ctx, route.Method, f.baseURL+route.Path, bytes.NewReader(body))
	if err != nil {
		return textContent(fmt.Sprintf("Error building request for %s: %v", name, err)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	f.setCredentials(req, identity)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		logger.Warnf("forward %s: %v", name, err)
		return textContent(fmt.Sprintf("Error calling %s: %v", name, err)), nil
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return textContent(fmt.Sprintf("Error reading %s response: %v", name, err)), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debugf("forward %s: upstream status %d", name, resp.StatusCode)
		return textContent(fmt.Sprintf("Error from %s (HTTP %d): %s",
			name, resp.StatusCode, errorDetail(payload))), nil
	}

	return textContent(renderJSON(payload)), nil
}

// setCredentials builds per-request headers from the caller identity:
// PAT callers get their token replayed in the PAT header, bearer callers
// get a standard Authorization header.
func (f *Forwarder) setCredentials(req *http.Request, identity *auth.Identity) {
	if identity == nil || identity.Token == "" {
		return
	}
	if identity.IsPAT() {
		req.Header.Set(f.patHeader, identity.Token)
		return
	}
	req.Header.Set("Authorization", "Bearer "+identity.Token)
}

// errorDetail extracts a human-readable message from an upstream error
// body, preferring the conventional detail/error/message fields.
func errorDetail(payload []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			if v, ok := body[key].(string); ok && v != "" {
				return v
			}
		}
	}
	detail := strings.TrimSpace(string(payload))
	if detail == "" {
		return "no error detail"
	}
	return detail
}

// renderJSON pretty-prints a JSON payload, falling back to the raw body.
func renderJSON(payload []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return string(payload)
	}
	return buf.String()
}

func textContent(text string) []mcp.Content {
	return []mcp.Content{mcp.NewTextContent(text)}
}
