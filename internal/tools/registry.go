// Package tools mediates every tool invocation: registration and lookup,
// JSON-schema argument validation, confirmation policy, sandbox checks, and
// output truncation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/archon-run/archon/pkg/models"
)

// MaxArgsSize caps the size of a tool's raw argument payload, guarding
// against a runaway or malicious tool call exhausting memory.
const MaxArgsSize = 1 << 20

// Registry holds the tools available to the reasoning loop, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]models.Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]models.Tool)}
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(tool models.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (models.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, in no particular order.
func (r *Registry) All() []models.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Schemas is the {name, description, schema} view used to advertise tools
// to the LLM.
type Schemas struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"input_schema"`
}

// AsLLMTools renders every registered tool's schema for a provider request.
func (r *Registry) AsLLMTools() []Schemas {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schemas, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Schemas{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
	}
	return out
}

// Dispatch validates args against the named tool's schema and sandbox
// policy, then executes it. Every failure path returns a populated
// ToolResult rather than an error, so a bad tool call always yields an
// observation the reasoning loop can feed back to the model.
func (r *Registry) Dispatch(ctx context.Context, call models.ToolCall, guard *Guard) *models.ToolResult {
	if len(call.Arguments) > MaxArgsSize {
		return blocked(call.ID, fmt.Sprintf("arguments exceed %d bytes", MaxArgsSize))
	}

	tool, ok := r.Get(call.Name)
	if !ok {
		return &models.ToolResult{ToolCallID: call.ID, Status: models.StatusError, Error: "tool not found: " + call.Name}
	}

	if err := tool.Validate(call.Arguments); err != nil {
		return &models.ToolResult{ToolCallID: call.ID, Status: models.StatusError, Error: "invalid arguments: " + err.Error()}
	}

	if guard != nil {
		if reason, blockedByGuard := guard.Check(tool, call.Arguments); blockedByGuard {
			return blocked(call.ID, reason)
		}
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		if ctx.Err() != nil {
			return &models.ToolResult{ToolCallID: call.ID, Status: models.StatusTimeout, Error: err.Error()}
		}
		return &models.ToolResult{ToolCallID: call.ID, Status: models.StatusError, Error: err.Error()}
	}
	result.ToolCallID = call.ID
	if result.Status == "" {
		result.Status = models.StatusSuccess
	}
	return result
}

func blocked(callID, reason string) *models.ToolResult {
	return &models.ToolResult{ToolCallID: callID, Status: models.StatusBlocked, Error: reason}
}
