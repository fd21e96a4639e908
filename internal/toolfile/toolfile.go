// Package toolfile loads MCP tool definitions from a JSON file.
//
// The file is a JSON array of tool objects in MCP wire format:
//
//	[{"name": "echo", "description": "...", "inputSchema": {...}}]
package toolfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
)

// Load reads tool definitions from path.
func Load(path string) ([]mcp.Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tools file: %w", err)
	}

	var tools []mcp.Tool
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("parsing tools file %s: %w", path, err)
	}

	for i, tool := range tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("tools file %s: tool %d has no name", path, i)
		}
	}

	return tools, nil
}
