package reasoner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/internal/llmclient"
	"github.com/archon-run/archon/internal/ruleengine"
	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

// fakeProvider returns a scripted sequence of completions, one per call to
// Complete, so tests can drive multi-turn scenarios deterministically.
type fakeProvider struct {
	completions []llmclient.Completion
	errs        []error
	calls       int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req llmclient.Request) (llmclient.Completion, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return llmclient.Completion{}, f.errs[i]
	}
	if i >= len(f.completions) {
		return f.completions[len(f.completions)-1], nil
	}
	return f.completions[i], nil
}

func newClient(completions ...llmclient.Completion) *llmclient.Client {
	return llmclient.New(&fakeProvider{completions: completions}, llmclient.Config{MaxRetries: 1})
}

func memPersistence() ruleengine.Persistence { return nil }

func testReasoner(t *testing.T, deps Deps, cfg *config.Config) *Reasoner {
	t.Helper()
	return New(deps, cfg, "you are a test agent")
}

func TestRun_RuleMatchShortCircuitsLLM(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	if _, err := engine.Add("hello", models.TriggerContains, "hi there", 0); err != nil {
		t.Fatal(err)
	}

	provider := &fakeProvider{}
	llm := llmclient.New(provider, llmclient.Config{MaxRetries: 1})

	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Logger: zerolog.Nop()}, config.Default())

	answer, err := r.Run(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer != "hi there" {
		t.Errorf("answer = %q, want %q", answer, "hi there")
	}
	if provider.calls != 0 {
		t.Errorf("expected zero LLM calls on rule match, got %d", provider.calls)
	}
}

func TestRun_DirectTextAnswer(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	llm := newClient(llmclient.Completion{Content: "42"})

	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Logger: zerolog.Nop()}, config.Default())

	answer, err := r.Run(context.Background(), "what is the answer")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer != "42" {
		t.Errorf("answer = %q, want %q", answer, "42")
	}
	if r.TasksProcessed() != 1 {
		t.Errorf("TasksProcessed() = %d, want 1", r.TasksProcessed())
	}
}

// echoTool is a SAFE tool that echoes back its "value" argument.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"value":{"type":"string"}}}`)
}
func (echoTool) DangerClass() models.DangerClass { return models.DangerSafe }
func (echoTool) Validate(args json.RawMessage) error {
	return nil
}
func (echoTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var parsed struct {
		Value string `json:"value"`
	}
	_ = json.Unmarshal(args, &parsed)
	return &models.ToolResult{Status: models.StatusSuccess, Output: "echoed: " + parsed.Value}, nil
}

func TestRun_ToolCallThenFinalAnswer(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	toolCall := models.ToolCall{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{"value":"ping"}`)}
	llm := newClient(
		llmclient.Completion{ToolCalls: []models.ToolCall{toolCall}},
		llmclient.Completion{Content: "done: echoed ping"},
	)

	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Registry: registry, Logger: zerolog.Nop()}, config.Default())

	answer, err := r.Run(context.Background(), "echo ping please")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer != "done: echoed ping" {
		t.Errorf("answer = %q, want %q", answer, "done: echoed ping")
	}
}

// pathReadTool is a SAFE tool that reads a "path" argument, used to
// exercise the out-of-sandbox-root ASK elevation.
type pathReadTool struct{}

func (pathReadTool) Name() string        { return "path_read" }
func (pathReadTool) Description() string { return "reads a path" }
func (pathReadTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`)
}
func (pathReadTool) DangerClass() models.DangerClass { return models.DangerSafe }
func (pathReadTool) Validate(args json.RawMessage) error {
	return nil
}
func (pathReadTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	return &models.ToolResult{Status: models.StatusSuccess, Output: "read"}, nil
}

// recordingConfirmer records every tool name it was asked to confirm, and
// always approves.
type recordingConfirmer struct {
	asked []string
}

func (c *recordingConfirmer) Confirm(ctx context.Context, toolName string, args []byte) (bool, error) {
	c.asked = append(c.asked, toolName)
	return true, nil
}

func TestRun_OutOfSandboxReadIsElevatedToAsk(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	registry := tools.NewRegistry()
	registry.Register(pathReadTool{})

	toolCall := models.ToolCall{ID: "call-1", Name: "path_read", Arguments: json.RawMessage(`{"path":"../outside.txt"}`)}
	llm := newClient(
		llmclient.Completion{ToolCalls: []models.ToolCall{toolCall}},
		llmclient.Completion{Content: "done"},
	)

	guard := tools.NewGuard(config.SandboxConfig{Enabled: true, WorkingDirectory: "."}, config.SudoConfig{})
	confirmer := &recordingConfirmer{}
	confirmation := tools.NewConfirmationPolicy(config.ConfirmAuto, confirmer)

	r := testReasoner(t, Deps{
		Rules:        engine,
		LLM:          llm,
		Registry:     registry,
		Guard:        guard,
		Confirmation: confirmation,
		Logger:       zerolog.Nop(),
	}, config.Default())

	answer, err := r.Run(context.Background(), "read a file outside the sandbox")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer != "done" {
		t.Errorf("answer = %q, want %q", answer, "done")
	}
	if len(confirmer.asked) != 1 || confirmer.asked[0] != "path_read" {
		t.Errorf("expected the out-of-root read to be asked for confirmation, got %v", confirmer.asked)
	}
}

func TestRun_MalformedCompletionTriggersRecovery(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	llm := newClient(
		llmclient.Completion{Malformed: true, MalformedRaw: `{"name": "echo", "args": }`},
		llmclient.Completion{Content: "recovered"},
	)

	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Logger: zerolog.Nop()}, config.Default())

	answer, err := r.Run(context.Background(), "do something")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer != "recovered" {
		t.Errorf("answer = %q, want %q", answer, "recovered")
	}
}

func TestRun_BudgetExceededFinalizesWithMessage(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	// Every completion reports large usage so the very first turn exceeds
	// a tiny per-task budget.
	provider := &fakeProvider{completions: []llmclient.Completion{
		{Content: "", ToolCalls: nil, Usage: llmclient.Usage{InputTokens: 1000, OutputTokens: 1000}},
	}}
	llm := llmclient.New(provider, llmclient.Config{MaxRetries: 1})

	cfg := config.Default()
	cfg.Reasoner.MaxTokensPerTask = 10

	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Logger: zerolog.Nop()}, cfg)

	answer, err := r.Run(context.Background(), "a task that will blow the budget")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer == "" {
		t.Fatal("expected a non-empty user-facing message on budget exhaustion")
	}
}

func TestRun_IterationCapSynthesizesAnswer(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	registry := tools.NewRegistry()
	registry.Register(echoTool{})

	toolCall := models.ToolCall{ID: "call-1", Name: "echo", Arguments: json.RawMessage(`{"value":"loop"}`)}
	// Always emits a tool call, never a final answer: forces the
	// iteration cap path.
	provider := &fakeProvider{}
	for i := 0; i < 20; i++ {
		provider.completions = append(provider.completions, llmclient.Completion{ToolCalls: []models.ToolCall{toolCall}})
	}
	llm := llmclient.New(provider, llmclient.Config{MaxRetries: 1})

	cfg := config.Default()
	cfg.Reasoner.MaxIterations = 3

	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Registry: registry, Logger: zerolog.Nop()}, cfg)

	answer, err := r.Run(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer == "" {
		t.Fatal("expected a synthesized answer at the iteration cap")
	}
}

func TestRun_EmptyTaskIsRejected(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	llm := newClient(llmclient.Completion{Content: "unused"})
	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Logger: zerolog.Nop()}, config.Default())

	if _, err := r.Run(context.Background(), "   "); err == nil {
		t.Fatal("expected an error for an empty task")
	}
}

func TestRun_CancelledContextSurfacesAsCancellation(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	llm := newClient(llmclient.Completion{Content: "unused"})
	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Logger: zerolog.Nop()}, config.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	answer, err := r.Run(ctx, "do a thing")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer == "" {
		t.Fatal("expected a user-facing cancellation message")
	}
}

func TestRun_PermanentLLMErrorFinalizesWithMessage(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	provider := &fakeProvider{errs: []error{errors.New("boom, not retryable")}}
	llm := llmclient.New(provider, llmclient.Config{MaxRetries: 1})

	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Logger: zerolog.Nop()}, config.Default())

	answer, err := r.Run(context.Background(), "this will fail")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if answer == "" {
		t.Fatal("expected a non-empty user-facing failure message")
	}
}

func TestRun_HousekeeperRunsOnIntervalBoundary(t *testing.T) {
	engine, _ := ruleengine.New(memPersistence())
	llm := newClient(llmclient.Completion{Content: "ok"})

	hk := &countingHygiene{}
	cfg := config.Default()
	cfg.Hygiene.IntervalTasks = 2

	r := testReasoner(t, Deps{Rules: engine, LLM: llm, Housekeeper: hk, Logger: zerolog.Nop()}, cfg)

	for i := 0; i < 2; i++ {
		if _, err := r.Run(context.Background(), "task"); err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	}
	if hk.runs != 1 {
		t.Errorf("housekeeper runs = %d, want 1 after 2 tasks with interval 2", hk.runs)
	}
}

type countingHygiene struct{ runs int }

func (h *countingHygiene) Run(ctx context.Context) error {
	h.runs++
	return nil
}

