// Package codegen provides a template-based source/config file generator.
// It writes boilerplate into the workspace; it never executes or evaluates
// the code it produces.
package codegen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/internal/tools/files"
	"github.com/archon-run/archon/pkg/models"
)

// Config bounds the codegen tool to a workspace.
type Config struct {
	Workspace string
}

// Tool generates a file from a named template, substituting {{var}}
// placeholders from the supplied variables map.
type Tool struct {
	resolver  files.Resolver
	templates map[string]string
}

// New creates a codegen tool with the built-in template set.
func New(cfg Config) *Tool {
	return &Tool{
		resolver:  files.Resolver{Root: cfg.Workspace},
		templates: defaultTemplates(),
	}
}

func (t *Tool) Name() string                   { return "generate_code" }
func (t *Tool) Description() string            { return "Generate a file from a named boilerplate template and write it into the workspace." }
func (t *Tool) DangerClass() models.DangerClass { return models.DangerMutating }

func (t *Tool) Schema() json.RawMessage {
	names := make([]string, 0, len(t.templates))
	for name := range t.templates {
		names = append(names, name)
	}
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"template":  map[string]any{"type": "string", "description": "Template name.", "enum": names},
			"path":      map[string]any{"type": "string", "description": "Destination path (relative to workspace)."},
			"variables": map[string]any{"type": "object", "description": "Template variable substitutions.", "additionalProperties": map[string]any{"type": "string"}},
		},
		"required": []string{"template", "path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Validate(args json.RawMessage) error {
	return tools.ValidateAgainstSchema(t.Schema(), args)
}

type codegenArgs struct {
	Template  string            `json:"template"`
	Path      string            `json:"path"`
	Variables map[string]string `json:"variables"`
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var in codegenArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "invalid arguments: " + err.Error()}, nil
	}

	template, ok := t.templates[in.Template]
	if !ok {
		return &models.ToolResult{Status: models.StatusError, Error: "unknown template: " + in.Template}, nil
	}

	abs, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error(),
			Metadata: map[string]any{"path": in.Path}}, nil
	}

	rendered := render(template, in.Variables)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: fmt.Sprintf("create directory: %v", err)}, nil
	}
	if err := os.WriteFile(abs, []byte(rendered), 0o644); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error()}, nil
	}

	return &models.ToolResult{Status: models.StatusSuccess, Output: fmt.Sprintf("generated %s from template %q", in.Path, in.Template)}, nil
}

func render(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

func defaultTemplates() map[string]string {
	return map[string]string{
		"go_package":  "package {{package}}\n\n// {{name}} is a placeholder.\ntype {{name}} struct{}\n",
		"go_test":     "package {{package}}\n\nimport \"testing\"\n\nfunc Test{{name}}(t *testing.T) {\n\tt.Skip(\"not yet implemented\")\n}\n",
		"dockerfile":  "FROM golang:1.24\nWORKDIR /app\nCOPY . .\nRUN go build -o {{name}} ./...\nCMD [\"./{{name}}\"]\n",
		"github_action": "name: {{name}}\non: [push]\njobs:\n  build:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - run: go build ./...\n",
	}
}
