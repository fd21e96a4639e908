// Package server wires authentication, OAuth endpoints and tool dispatch
// into a mountable MCP server.
//
// The JSON-RPC framing and MCP lifecycle (initialize, tools/list,
// tools/call) are delegated to mark3labs/mcp-go; this package contributes
// the callback contracts, the auth-wrapped HTTP surface and the
// observability endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/originate-group/common-mcp-server/internal/logger"
	"github.com/originate-group/common-mcp-server/pkg/auth"
	"github.com/originate-group/common-mcp-server/pkg/oauth"
)

// Config configures an MCPServer.
type Config struct {
	// Name is the server name advertised during initialize.
	Name string

	// Version is the server version advertised during initialize.
	Version string

	// OAuth enables bearer authentication and the OAuth endpoints.
	// Optional when PAT is set.
	OAuth *auth.OAuthConfig

	// PAT enables personal-access-token authentication.
	// Optional when OAuth is set.
	PAT *auth.PATConfig

	// ToolsProvider supplies the advertised tools. Required.
	ToolsProvider ToolsProvider

	// ToolHandler executes tool calls. Required.
	ToolHandler ToolHandlerFunc

	// CallsPerMinute caps tool calls per caller. Zero uses the default.
	CallsPerMinute int
}

// MCPServer is a mountable MCP server with pluggable authentication.
type MCPServer struct {
	config     Config
	mcpServer  *server.MCPServer
	middleware *auth.Middleware
	endpoints  *oauth.EndpointManager
	limiter    *identityLimiter
}

// New creates an MCPServer from the given configuration and registers the
// provider's tools.
func New(ctx context.Context, config Config) (*MCPServer, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("server: name is required")
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if config.ToolsProvider == nil {
		return nil, fmt.Errorf("server: tools provider is required")
	}
	if config.ToolHandler == nil {
		return nil, fmt.Errorf("server: tool handler is required")
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		config:    config,
		mcpServer: mcpServer,
		limiter:   newIdentityLimiter(config.CallsPerMinute),
	}

	if config.OAuth != nil || config.PAT != nil {
		middleware, err := auth.NewMiddleware(config.OAuth, config.PAT)
		if err != nil {
			return nil, err
		}
		s.middleware = middleware
	}

	if config.OAuth != nil {
		s.endpoints = oauth.NewEndpointManager(config.OAuth, config.Version)
	}

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// Reload re-invokes the tools provider and replaces the registered tool set.
func (s *MCPServer) Reload(ctx context.Context) error {
	tools, err := s.config.ToolsProvider(ctx)
	if err != nil {
		return fmt.Errorf("server: tools provider failed: %w", err)
	}

	handler := s.adaptHandler(s.config.ToolHandler)
	serverTools := make([]server.ServerTool, 0, len(tools))
	for _, tool := range tools {
		serverTools = append(serverTools, server.ServerTool{Tool: tool, Handler: handler})
	}
	s.mcpServer.SetTools(serverTools...)

	logger.Infof("registered %d tool(s)", len(serverTools))
	return nil
}

// Handler returns the complete HTTP surface: OAuth endpoints, /metrics,
// and the authenticated MCP endpoint at /mcp.
func (s *MCPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.endpoints != nil {
		s.endpoints.RegisterEndpoints(mux)
	}
	mux.Handle("/metrics", promhttp.Handler())

	contextFunc := rawTokenFromRequest
	if s.middleware != nil {
		contextFunc = identityFromRequest
	}

	streamable := server.NewStreamableHTTPServer(s.mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(contextFunc),
		server.WithStateLess(true),
	)

	var mcpHandler http.Handler = streamable
	if s.middleware != nil {
		mcpHandler = s.middleware.Wrap(mcpHandler)
	}
	mux.Handle("/mcp", instrument(mcpHandler))

	return mux
}

// Start serves the HTTP surface on addr until the context is cancelled.
func (s *MCPServer) Start(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	logger.Infof("MCP server %s listening on %s", s.config.Name, addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// ServeStdio serves the MCP server over stdio. Authentication is skipped
// for local stdio usage, matching HTTP-only auth policy.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
