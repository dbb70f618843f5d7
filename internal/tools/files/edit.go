package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

// EditTool applies one or more find/replace edits to an existing file.
type EditTool struct {
	resolver Resolver
}

// NewEditTool creates an edit tool scoped to the workspace.
func NewEditTool(cfg Config) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *EditTool) Name() string                   { return "edit" }
func (t *EditTool) Description() string            { return "Apply find/replace edits to a file in the workspace." }
func (t *EditTool) DangerClass() models.DangerClass { return models.DangerMutating }

func (t *EditTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Path to edit (relative to workspace)."},
			"edits": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"old_text":    map[string]any{"type": "string", "description": "Text to replace."},
						"new_text":    map[string]any{"type": "string", "description": "Replacement text."},
						"replace_all": map[string]any{"type": "boolean", "description": "Replace all occurrences."},
					},
					"required": []string{"old_text", "new_text"},
				},
			},
		},
		"required": []string{"path", "edits"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *EditTool) Validate(args json.RawMessage) error {
	return tools.ValidateAgainstSchema(t.Schema(), args)
}

type editArgs struct {
	Path  string `json:"path"`
	Edits []struct {
		OldText    string `json:"old_text"`
		NewText    string `json:"new_text"`
		ReplaceAll bool   `json:"replace_all"`
	} `json:"edits"`
}

func (t *EditTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var in editArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "invalid arguments: " + err.Error()}, nil
	}
	if len(in.Edits) == 0 {
		return &models.ToolResult{Status: models.StatusError, Error: "edits must not be empty"}, nil
	}

	abs, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error(),
			Metadata: map[string]any{"path": in.Path}}, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error(),
			Metadata: map[string]any{"path": in.Path}}, nil
	}

	content := string(data)
	applied := 0
	for _, e := range in.Edits {
		if e.OldText == "" {
			continue
		}
		if !strings.Contains(content, e.OldText) {
			return &models.ToolResult{
				Status:   models.StatusError,
				Error:    fmt.Sprintf("old_text not found in %s: %q", in.Path, truncate(e.OldText, 80)),
				Metadata: map[string]any{"path": in.Path},
			}, nil
		}
		if e.ReplaceAll {
			content = strings.ReplaceAll(content, e.OldText, e.NewText)
		} else {
			content = strings.Replace(content, e.OldText, e.NewText, 1)
		}
		applied++
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error()}, nil
	}

	return &models.ToolResult{Status: models.StatusSuccess, Output: fmt.Sprintf("applied %d edit(s) to %s", applied, in.Path)}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
