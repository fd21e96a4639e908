package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/originate-group/common-mcp-server/internal/config"
	"github.com/originate-group/common-mcp-server/internal/toolfile"
	"github.com/originate-group/common-mcp-server/pkg/auth"
	"github.com/originate-group/common-mcp-server/pkg/forward"
	"github.com/originate-group/common-mcp-server/pkg/server"
)

// buildTools assembles the tools provider and handler. With an upstream
// URL configured, tool calls are forwarded to the internal REST API;
// otherwise the built-in demo tools are served.
func buildTools(cfg *config.ConfigData) (server.ToolsProvider, server.ToolHandlerFunc, error) {
	if cfg.UpstreamURL == "" {
		return demoToolsProvider, demoToolHandler, nil
	}

	if cfg.ToolsFile == "" {
		return nil, nil, fmt.Errorf("tools-file is required when upstream-url is set")
	}

	tools, err := toolfile.Load(cfg.ToolsFile)
	if err != nil {
		return nil, nil, err
	}

	forwarder, err := forward.New(cfg.UpstreamURL,
		forward.WithTimeout(cfg.UpstreamTimeoutDuration()),
		forward.WithPATHeader(cfg.PATHeader),
	)
	if err != nil {
		return nil, nil, err
	}

	provider := func(ctx context.Context) ([]mcp.Tool, error) {
		return tools, nil
	}

	return provider, forwarder.Handle, nil
}

// demoToolsProvider advertises the built-in echo and greet tools.
func demoToolsProvider(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{
		{
			Name:        "echo",
			Description: "Echoes back the input message",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"message": map[string]interface{}{
						"type":        "string",
						"description": "Message to echo back",
					},
				},
				Required: []string{"message"},
			},
		},
		{
			Name:        "greet",
			Description: "Greets a user by name",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Name to greet",
					},
				},
				Required: []string{"name"},
			},
		},
	}, nil
}

// demoToolHandler executes the built-in demo tools.
func demoToolHandler(ctx context.Context, name string, args map[string]interface{}, identity *auth.Identity) ([]mcp.Content, error) {
	switch name {
	case "echo":
		message, _ := args["message"].(string)
		return []mcp.Content{mcp.NewTextContent("Echo: " + message)}, nil
	case "greet":
		who, _ := args["name"].(string)
		if who == "" {
			who = "stranger"
		}
		return []mcp.Content{mcp.NewTextContent(fmt.Sprintf("Hello, %s!", who))}, nil
	default:
		return []mcp.Content{mcp.NewTextContent("Unknown tool: " + name)}, nil
	}
}
