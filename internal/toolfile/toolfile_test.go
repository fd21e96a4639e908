package toolfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeToolsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write tools file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeToolsFile(t, `[
		{
			"name": "list_projects",
			"description": "List all projects",
			"inputSchema": {
				"type": "object",
				"properties": {
					"query": {"type": "string"}
				}
			}
		},
		{
			"name": "get_project",
			"inputSchema": {"type": "object"}
		}
	]`)

	tools, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load tools: %v", err)
	}

	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != "list_projects" {
		t.Errorf("expected first tool list_projects, got %s", tools[0].Name)
	}
	if tools[0].Description != "List all projects" {
		t.Errorf("expected description to be loaded, got %q", tools[0].Description)
	}
	if tools[0].InputSchema.Type != "object" {
		t.Errorf("expected input schema type object, got %s", tools[0].InputSchema.Type)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeToolsFile(t, `{"not": "an array"`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoad_ToolWithoutName(t *testing.T) {
	path := writeToolsFile(t, `[{"description": "anonymous tool"}]`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for tool without a name")
	}
}
