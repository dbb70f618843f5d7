package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

// WriteTool writes (creates or overwrites) a file in the workspace.
type WriteTool struct {
	resolver Resolver
}

// NewWriteTool creates a write tool scoped to the workspace.
func NewWriteTool(cfg Config) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *WriteTool) Name() string                   { return "write_file" }
func (t *WriteTool) Description() string            { return "Create or overwrite a file in the workspace." }
func (t *WriteTool) DangerClass() models.DangerClass { return models.DangerMutating }

func (t *WriteTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "Path to write (relative to workspace)."},
			"content": map[string]any{"type": "string", "description": "Full file content to write."},
		},
		"required": []string{"path", "content"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *WriteTool) Validate(args json.RawMessage) error {
	return tools.ValidateAgainstSchema(t.Schema(), args)
}

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var in writeArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "invalid arguments: " + err.Error()}, nil
	}

	abs, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error(),
			Metadata: map[string]any{"path": in.Path}}, nil
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: fmt.Sprintf("create directory: %v", err)}, nil
	}
	if err := os.WriteFile(abs, []byte(in.Content), 0o644); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error(),
			Metadata: map[string]any{"path": in.Path}}, nil
	}

	return &models.ToolResult{Status: models.StatusSuccess, Output: fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path)}, nil
}
