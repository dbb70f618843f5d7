package shell

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/archon-run/archon/pkg/models"
)

func TestTool_RunsCommandAndCapturesStdout(t *testing.T) {
	tool := New(Config{Workspace: t.TempDir()})
	args, _ := json.Marshal(map[string]any{"command": "echo hello"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s: %s", result.Status, result.Error)
	}
	if result.Output != "hello\n" {
		t.Errorf("expected captured stdout, got %q", result.Output)
	}
}

func TestTool_NonZeroExitReturnsError(t *testing.T) {
	tool := New(Config{Workspace: t.TempDir()})
	args, _ := json.Marshal(map[string]any{"command": "exit 1"})
	result, _ := tool.Execute(context.Background(), args)
	if result.Status != models.StatusError {
		t.Errorf("expected ERROR for a non-zero exit, got %s", result.Status)
	}
}

func TestTool_TimeoutReturnsTimeoutStatus(t *testing.T) {
	tool := New(Config{Workspace: t.TempDir(), Timeout: 50 * time.Millisecond})
	args, _ := json.Marshal(map[string]any{"command": "sleep 5"})
	result, _ := tool.Execute(context.Background(), args)
	if result.Status != models.StatusTimeout {
		t.Errorf("expected TIMEOUT status, got %s", result.Status)
	}
}

func TestTool_EmptyCommandRejected(t *testing.T) {
	tool := New(Config{Workspace: t.TempDir()})
	args, _ := json.Marshal(map[string]any{"command": "   "})
	result, _ := tool.Execute(context.Background(), args)
	if result.Status != models.StatusError {
		t.Errorf("expected ERROR for a blank command, got %s", result.Status)
	}
}

func TestTool_DangerClassIsMutating(t *testing.T) {
	tool := New(Config{})
	if tool.DangerClass() != models.DangerMutating {
		t.Errorf("expected shell to be MUTATING, got %s", tool.DangerClass())
	}
}

func TestTool_OutputIsTruncatedToMaxOutput(t *testing.T) {
	tool := New(Config{Workspace: t.TempDir(), MaxOutput: 5})
	args, _ := json.Marshal(map[string]any{"command": "echo 1234567890"})
	result, _ := tool.Execute(context.Background(), args)
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s: %s", result.Status, result.Error)
	}
	if len(result.Output) <= 5 {
		t.Fatalf("expected output to include truncation marker, got %q", result.Output)
	}
}
