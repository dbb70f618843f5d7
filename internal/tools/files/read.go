package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

// ReadTool reads a file from the workspace with an optional offset and
// byte cap.
type ReadTool struct {
	resolver   Resolver
	maxReadLen int
}

// NewReadTool creates a read tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = 200_000
	}
	return &ReadTool{resolver: Resolver{Root: cfg.Workspace}, maxReadLen: limit}
}

func (t *ReadTool) Name() string        { return "read_file" }
func (t *ReadTool) Description() string { return "Read a file from the workspace with an optional offset and byte limit." }
func (t *ReadTool) DangerClass() models.DangerClass { return models.DangerSafe }

func (t *ReadTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string", "description": "Path to the file (relative to workspace)."},
			"offset":    map[string]any{"type": "integer", "description": "Byte offset to start reading from.", "minimum": 0},
			"max_bytes": map[string]any{"type": "integer", "description": "Maximum bytes to read.", "minimum": 0},
		},
		"required": []string{"path"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *ReadTool) Validate(args json.RawMessage) error {
	return tools.ValidateAgainstSchema(t.Schema(), args)
}

type readArgs struct {
	Path     string `json:"path"`
	Offset   int    `json:"offset"`
	MaxBytes int    `json:"max_bytes"`
}

func (t *ReadTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var in readArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "invalid arguments: " + err.Error()}, nil
	}

	abs, err := t.resolver.Resolve(in.Path)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error(),
			Metadata: map[string]any{"path": in.Path}}, nil
	}

	f, err := os.Open(abs)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error(),
			Metadata: map[string]any{"path": in.Path}}, nil
	}
	defer f.Close()

	if in.Offset > 0 {
		if _, err := f.Seek(int64(in.Offset), io.SeekStart); err != nil {
			return &models.ToolResult{Status: models.StatusError, Error: fmt.Sprintf("seek: %v", err)}, nil
		}
	}

	limit := t.maxReadLen
	if in.MaxBytes > 0 && in.MaxBytes < limit {
		limit = in.MaxBytes
	}

	info, statErr := f.Stat()
	if statErr == nil && info.Size() > int64(t.maxReadLen) && in.Offset == 0 && in.MaxBytes == 0 {
		return &models.ToolResult{
			Status: models.StatusError,
			Error:  fmt.Sprintf("%s is %d bytes, exceeds the %d byte read limit", in.Path, info.Size(), t.maxReadLen),
			Metadata: map[string]any{
				"path":      in.Path,
				"file_size": info.Size(),
				"max_size":  t.maxReadLen,
			},
		}, nil
	}

	buf := make([]byte, limit)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error()}, nil
	}

	return &models.ToolResult{Status: models.StatusSuccess, Output: string(buf[:n])}, nil
}
