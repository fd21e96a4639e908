package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/originate-group/common-mcp-server/internal/logger"
	"github.com/originate-group/common-mcp-server/pkg/auth"
)

// tracerName identifies spans emitted around tool dispatch.
const tracerName = "github.com/originate-group/common-mcp-server/pkg/server"

// ToolsProvider supplies the tool definitions the server advertises.
// It is invoked at startup and on Reload.
type ToolsProvider func(ctx context.Context) ([]mcp.Tool, error)

// ToolHandlerFunc executes a tool call on behalf of an authenticated
// caller. identity is nil when the transport carries no authentication
// (stdio). Returned errors become error-shaped tool results, never
// transport failures.
type ToolHandlerFunc func(ctx context.Context, name string, args map[string]interface{}, identity *auth.Identity) ([]mcp.Content, error)

// logToolCall logs the start of a tool call.
func logToolCall(toolName string, arguments interface{}) {
	if jsonBytes, err := json.Marshal(arguments); err == nil {
		logger.Debugf(">>> [%s] %s", toolName, string(jsonBytes))
	} else {
		logger.Debugf(">>> [%s] %v", toolName, arguments)
	}
}

// logToolResult logs the result or error of a tool call.
func logToolResult(toolName string, result *mcp.CallToolResult, err error) {
	if err != nil {
		logger.Debugf("<<< [%s] ERROR: %v", toolName, err)
		return
	}
	logger.Debugf("<<< [%s] %d content block(s)", toolName, len(result.Content))
}

// adaptHandler converts a ToolHandlerFunc into the handler shape expected
// by the MCP engine, injecting the caller identity and rate limiting.
func (s *MCPServer) adaptHandler(handler ToolHandlerFunc) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := req.Params.Arguments.(map[string]interface{})
		if !ok {
			if req.Params.Arguments == nil {
				args = map[string]interface{}{}
			} else {
				err := fmt.Errorf("arguments must be a map[string]interface{}, got %T", req.Params.Arguments)
				recordToolCall(req.Params.Name, false)
				return mcp.NewToolResultError(err.Error()), nil
			}
		}

		identity, _ := auth.IdentityFromContext(ctx)

		if !s.limiter.Allow(limiterKey(identity)) {
			recordToolCall(req.Params.Name, false)
			return mcp.NewToolResultError("Rate limit exceeded. Please slow down and try again."), nil
		}

		logToolCall(req.Params.Name, args)

		ctx, span := otel.Tracer(tracerName).Start(ctx, "tools/call")
		span.SetAttributes(attribute.String("mcp.tool", req.Params.Name))
		defer span.End()

		contents, err := handler(ctx, req.Params.Name, args, identity)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			recordToolCall(req.Params.Name, false)
			result := mcp.NewToolResultError(err.Error())
			logToolResult(req.Params.Name, result, err)
			return result, nil
		}

		result := &mcp.CallToolResult{Content: contents}
		recordToolCall(req.Params.Name, true)
		logToolResult(req.Params.Name, result, nil)
		return result, nil
	}
}

// limiterKey buckets rate limiting per caller; unauthenticated transports
// share one bucket.
func limiterKey(identity *auth.Identity) string {
	if identity == nil || identity.UserID == "" {
		return "anonymous"
	}
	return identity.UserID
}
