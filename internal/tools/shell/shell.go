// Package shell provides a sandboxed, whitelist-enforced command
// execution tool.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

// Config bounds shell tool execution.
type Config struct {
	Workspace string
	Timeout   time.Duration
	MaxOutput int
}

// Tool runs a shell command with a bounded timeout and truncated output.
// Command whitelisting and sudo policy are enforced upstream by
// tools.Guard; this tool trusts that a call reaching Execute already
// cleared that check.
type Tool struct {
	cfg Config
}

// New creates a shell execution tool.
func New(cfg Config) *Tool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = 64_000
	}
	return &Tool{cfg: cfg}
}

func (t *Tool) Name() string                   { return "shell" }
func (t *Tool) Description() string            { return "Run a shell command in the workspace and return its stdout/stderr." }
func (t *Tool) DangerClass() models.DangerClass { return models.DangerMutating }

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Shell command to run."},
			"sudo":    map[string]any{"type": "boolean", "description": "Mark the command as privileged so it is checked against the sudo policy; the command itself is run as given, without a sudo prefix."},
		},
		"required": []string{"command"},
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

type shellArgs struct {
	Command string `json:"command"`
	Sudo    bool   `json:"sudo"`
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var in shellArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "invalid arguments: " + err.Error()}, nil
	}
	command := strings.TrimSpace(in.Command)
	if command == "" {
		return &models.ToolResult{Status: models.StatusError, Error: "command must not be empty"}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = t.cfg.Workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return &models.ToolResult{
			Status:   models.StatusTimeout,
			Error:    "command timed out",
			Metadata: map[string]any{"command": command},
		}, nil
	}

	out := truncate(stdout.String(), t.cfg.MaxOutput)
	if err != nil {
		return &models.ToolResult{
			Status:   models.StatusError,
			Error:    err.Error(),
			Output:   out,
			Metadata: map[string]any{"command": command, "stderr": truncate(stderr.String(), t.cfg.MaxOutput)},
		}, nil
	}

	return &models.ToolResult{Status: models.StatusSuccess, Output: out}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}
