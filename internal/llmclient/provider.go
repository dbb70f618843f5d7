// Package llmclient wraps an LLM provider with rate limiting, retry with
// exponential backoff, usage accounting, and malformed-tool-call recovery.
package llmclient

import (
	"context"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

// Usage tracks token consumption for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is one LLM turn: either assistant text, one or more tool
// calls, or both (a provider may emit commentary alongside a tool call).
type Completion struct {
	Content      string
	ToolCalls    []models.ToolCall
	StopReason   string
	Usage        Usage
	Malformed    bool   // true if the provider reported an unparseable tool call
	MalformedRaw string // raw payload for a Malformed completion, for the recovery turn
}

// Request is one call to a Provider.
type Request struct {
	System      string
	Messages    []models.Message
	Tools       []tools.Schemas
	Temperature float64
	MaxTokens   int
}

// Provider is the interface every concrete LLM backend implements.
// Anthropic and OpenAI-compatible backends both satisfy it, so the
// reasoning loop never depends on a specific SDK.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Completion, error)
}

// RetryableError is implemented by provider errors that know whether a
// retry is worth attempting (rate limits, transient 5xx) versus not
// (invalid request, auth failure).
type RetryableError interface {
	error
	Retryable() bool
}
