package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/originate-group/common-mcp-server/pkg/auth"
)

// identityFromRequest carries the authenticated identity from the HTTP
// request context into the MCP session context. The auth middleware has
// already validated the credential by the time this runs.
func identityFromRequest(ctx context.Context, r *http.Request) context.Context {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return auth.WithIdentity(ctx, identity)
	}
	return ctx
}

// rawTokenFromRequest extracts the bearer token from a request without
// validating it. Used only when authentication is disabled but a handler
// still wants to forward caller credentials.
func rawTokenFromRequest(ctx context.Context, r *http.Request) context.Context {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ctx
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return ctx
	}
	return auth.WithIdentity(ctx, &auth.Identity{
		Method: auth.MethodBearer,
		Token:  token,
	})
}
