// Package reasoner implements the orchestrator: the S0-S7 state machine
// that drives one task from rule check through retrieval, LLM turns, tool
// execution, recovery, and finalization. It owns the message window and
// the per-task token budget; every other subsystem (RuleEngine, Retriever,
// LLMClient, ToolRegistry, ConfirmationPolicy, ErrorMemory, VectorStore) is
// a field it calls into, never a global.
package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/archon-run/archon/internal/apperrors"
	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/internal/contextlog"
	"github.com/archon-run/archon/internal/errormemory"
	"github.com/archon-run/archon/internal/llmclient"
	"github.com/archon-run/archon/internal/memoryfilter"
	"github.com/archon-run/archon/internal/retriever"
	"github.com/archon-run/archon/internal/ruleengine"
	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/internal/vectorstore"
	"github.com/archon-run/archon/pkg/models"
)

// Hygiene is the periodic-cleanup contract the Reasoner drives on a
// task-count cadence. internal/housekeeper.Housekeeper satisfies it.
type Hygiene interface {
	Run(ctx context.Context) error
}

// Deps collects every collaborator the Reasoner needs. All fields except
// LLM are optional and degrade gracefully when nil.
type Deps struct {
	Rules        *ruleengine.Engine
	Retriever    *retriever.Retriever
	LLM          *llmclient.Client
	Registry     *tools.Registry
	Guard        *tools.Guard
	Confirmation *tools.ConfirmationPolicy
	ErrorMemory  *errormemory.ErrorMemory
	Store        vectorstore.Store
	Housekeeper  Hygiene
	ContextLog   *contextlog.Logger
	Logger       zerolog.Logger
}

// Reasoner is the orchestrator described in spec §4.1. One Reasoner is
// built once at startup and reused across tasks on a session; Run must not
// be called concurrently on the same instance (§5: a serialized per-session
// queue is the caller's responsibility if concurrent requests share a
// session).
type Reasoner struct {
	deps Deps
	cfg  config.ReasonerConfig
	tcfg config.ToolsConfig
	hcfg config.HygieneConfig

	systemPromptBase string

	mu             sync.Mutex
	tasksProcessed int
}

// New constructs a Reasoner from its dependencies and the relevant slices
// of Config (Reasoner, Tools, Hygiene).
func New(deps Deps, cfg *config.Config, systemPromptBase string) *Reasoner {
	if systemPromptBase == "" {
		systemPromptBase = defaultSystemPrompt
	}
	r := &Reasoner{deps: deps, systemPromptBase: systemPromptBase}
	if cfg != nil {
		r.cfg = cfg.Reasoner
		r.tcfg = cfg.Tools
		r.hcfg = cfg.Hygiene
	}
	return r
}

const defaultSystemPrompt = "You are Archon, an autonomous agent. Use the available tools to accomplish the user's task, then respond with a final answer."

// taskState is the per-Run working state: the reasoning window, the
// running token count, and the iteration counter. It is never shared
// across tasks.
type taskState struct {
	window    []models.Message
	tokenUsed int
	iteration int
}

// Run drives one task to completion: S0 Initialize, S1 RuleCheck, S2
// Retrieve&Inject, then the S3..S6 LLM/tool cycle bounded by
// max_iterations, finishing at S7 Finalize. It always returns a non-empty
// string, per spec §6's "user-visible failure exits" contract: even a
// terminal error is rendered as user-facing text, never bubbled as a bare
// Go error from a successfully-initialized Reasoner. The one error it
// returns is a Configuration error for an empty task, before S0.
func (r *Reasoner) Run(ctx context.Context, task string) (string, error) {
	if strings.TrimSpace(task) == "" {
		return "", apperrors.New(apperrors.KindConfiguration, "reasoner.Run", "task must not be empty")
	}

	if r.cfg.TaskDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.TaskDeadline)
		defer cancel()
	}

	// S0 Initialize
	state := &taskState{
		window: []models.Message{
			{Role: models.RoleSystem, Content: r.systemPromptBase, CreatedAt: time.Now()},
			{Role: models.RoleUser, Content: task, CreatedAt: time.Now()},
		},
	}

	// S1 RuleCheck: evaluated solely on the raw user input, before any LLM
	// call and before retrieval runs.
	if r.deps.Rules != nil {
		if rule, ok := r.deps.Rules.Match(task); ok {
			r.logEvent(ctx, task, "rule_match", rule.Response, "SUCCESS")
			return rule.Response, nil
		}
	}

	// S2 Retrieve&Inject: the bundle is a snapshot taken here; later writes
	// within this task do not affect it (§5 Ordering guarantees).
	if r.deps.Retriever != nil {
		bundle := r.deps.Retriever.ForTask(ctx, task)
		if rendered := retriever.Render(bundle); rendered != "" {
			state.window[0].Content = r.systemPromptBase + "\n\n" + rendered
		}
	}

	final, toolsUsed, success, err := r.reasonLoop(ctx, state)
	if err != nil {
		final = r.finalizeOnError(err, state)
		success = false
	}

	// S7 Finalize: classify and store, then drive hygiene on the counter.
	r.finalize(ctx, task, final, success, toolsUsed)
	r.logEvent(ctx, task, "final", final, statusOf(success))

	return final, nil
}

// reasonLoop runs the S3..S6 cycle until a final answer, the iteration
// cap, or a terminal error. toolsUsed counts executed tool calls, used by
// MemoryFilter's actions_count signal.
func (r *Reasoner) reasonLoop(ctx context.Context, state *taskState) (final string, toolsUsed int, success bool, err error) {
	maxIter := r.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}

	for state.iteration < maxIter {
		if budgetErr := r.checkBudget(state); budgetErr != nil {
			return "", toolsUsed, false, budgetErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", toolsUsed, false, apperrors.Wrap(apperrors.KindCancellation, "reasoner.reasonLoop", "context cancelled", ctxErr)
		}

		state.window = pruneWindow(state.window, r.cfg.MaxContextMessages, r.cfg.MaxTokensPerTask)

		completion, callErr := r.llmTurn(ctx, state, r.cfg.Temperature, r.maxResponseTokens())
		if callErr != nil {
			if apperrors.KindOf(callErr) == apperrors.KindCancellation || apperrors.KindOf(callErr) == apperrors.KindLLMPermanent {
				return "", toolsUsed, false, callErr
			}
			// Transient exhaustion surfaces as a permanent failure for this
			// task; the LLMClient has already retried internally.
			return "", toolsUsed, false, callErr
		}

		if completion.Malformed {
			recovered, recErr := r.recoveryTurn(ctx, state, completion)
			if recErr != nil {
				return "", toolsUsed, false, recErr
			}
			completion = recovered
		}

		switch {
		case len(completion.ToolCalls) > 0:
			state.window = append(state.window, models.Message{
				Role:      models.RoleAssistant,
				Content:   completion.Content,
				ToolCalls: completion.ToolCalls,
				CreatedAt: time.Now(),
			})
			n := r.executeTools(ctx, state, completion.ToolCalls)
			toolsUsed += n
			state.iteration++
			continue

		case strings.TrimSpace(completion.Content) != "":
			return completion.Content, toolsUsed, true, nil

		default:
			// Neither tool calls nor text and not malformed: retry once,
			// then finalize with whatever partial text is available.
			if budgetErr := r.checkBudget(state); budgetErr != nil {
				return "", toolsUsed, false, budgetErr
			}
			retry, retryErr := r.llmTurn(ctx, state, r.cfg.Temperature, r.maxResponseTokens())
			if retryErr == nil && (len(retry.ToolCalls) > 0 || strings.TrimSpace(retry.Content) != "") {
				if len(retry.ToolCalls) > 0 {
					state.window = append(state.window, models.Message{
						Role: models.RoleAssistant, Content: retry.Content, ToolCalls: retry.ToolCalls, CreatedAt: time.Now(),
					})
					n := r.executeTools(ctx, state, retry.ToolCalls)
					toolsUsed += n
					state.iteration++
					continue
				}
				return retry.Content, toolsUsed, true, nil
			}
			return r.synthesizeFromLastObservation(state), toolsUsed, false, nil
		}
	}

	// Iteration cap reached: synthesize a final answer from the last
	// observation rather than failing the task outright.
	return r.synthesizeFromLastObservation(state), toolsUsed, false, nil
}

// llmTurn assembles an llmclient.Request from the current window and calls
// the LLMClient.
func (r *Reasoner) llmTurn(ctx context.Context, state *taskState, temperature float64, maxTokens int) (llmclient.Completion, error) {
	var tools []tools.Schemas
	if r.deps.Registry != nil {
		tools = r.deps.Registry.AsLLMTools()
	}

	messages := make([]models.Message, len(state.window)-1)
	copy(messages, state.window[1:])

	req := llmclient.Request{
		System:      state.window[0].Content,
		Messages:    messages,
		Tools:       tools,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	completion, err := r.deps.LLM.Complete(ctx, req)
	if err != nil {
		return llmclient.Completion{}, err
	}
	state.tokenUsed += completion.Usage.InputTokens + completion.Usage.OutputTokens
	return completion, nil
}

// recoveryTurn implements S6: a corrective user message plus stricter
// sampling settings, asking the model to re-emit a well-formed tool call.
func (r *Reasoner) recoveryTurn(ctx context.Context, state *taskState, malformed llmclient.Completion) (llmclient.Completion, error) {
	if budgetErr := r.checkBudget(state); budgetErr != nil {
		return llmclient.Completion{}, budgetErr
	}
	corrective := "Your previous response included a tool call that could not be parsed"
	if malformed.MalformedRaw != "" {
		corrective += fmt.Sprintf(" (%s)", truncate(malformed.MalformedRaw, 300))
	}
	corrective += ". Re-emit exactly one tool call that strictly matches the tool's declared JSON schema. Do not include any other text."

	state.window = append(state.window, models.Message{Role: models.RoleUser, Content: corrective, CreatedAt: time.Now()})

	temp := r.cfg.RecoveryTemperature
	if temp <= 0 {
		temp = 0.1
	}
	maxTokens := r.maxResponseTokens() / 2
	if maxTokens < 1 {
		maxTokens = 1
	}

	// tool_choice="required" is not wired to a specific provider SDK field
	// (§6); the corrective message text plus tightened sampling carries the
	// recovery-turn intent instead.
	completion, err := r.llmTurn(ctx, state, temp, maxTokens)
	if err != nil {
		return llmclient.Completion{}, err
	}
	if r.deps.ErrorMemory != nil {
		_, _ = r.deps.ErrorMemory.Log(ctx, "llmclient", "tool_use_failed", "tool-use-failed: "+truncate(malformed.MalformedRaw, 500), map[string]any{})
	}
	return completion, nil
}

// executeTools runs S5 for one batch of tool calls, in order. Each call's
// observation is appended to the window before the next LLM turn sees any
// of them, matching §4.1 and §5's ordering guarantee.
func (r *Reasoner) executeTools(ctx context.Context, state *taskState, calls []models.ToolCall) int {
	executed := 0
	for _, call := range calls {
		result := r.executeOne(ctx, call)
		executed++

		truncate := r.cfg.ToolOutputTruncateChars
		if truncate <= 0 {
			truncate = 500
		}
		state.window = append(state.window, models.Message{
			Role:       models.RoleTool,
			Content:    result.Observation(truncate),
			ToolCallID: call.ID,
			Name:       call.Name,
			CreatedAt:  time.Now(),
		})
	}
	return executed
}

// executeOne validates, checks pre-flight advisories, resolves
// confirmation policy, dispatches, and logs a failing result to
// ErrorMemory before it ever becomes an observation — the invariant from
// spec §3: "A tool-generated ErrorEvent is logged before the error
// surfaces to the LLM as an observation."
func (r *Reasoner) executeOne(ctx context.Context, call models.ToolCall) *models.ToolResult {
	if r.deps.Registry == nil {
		return &models.ToolResult{ToolCallID: call.ID, Status: models.StatusError, Error: "no tool registry configured"}
	}

	tool, ok := r.deps.Registry.Get(call.Name)
	if !ok {
		return &models.ToolResult{ToolCallID: call.ID, Status: models.StatusError, Error: "unknown tool: " + call.Name}
	}

	if err := tool.Validate(call.Arguments); err != nil {
		res := &models.ToolResult{ToolCallID: call.ID, Status: models.StatusError, Error: "invalid arguments: " + err.Error()}
		r.logToolError(ctx, call, res)
		return res
	}

	if r.deps.ErrorMemory != nil {
		var argMap map[string]any
		_ = json.Unmarshal(call.Arguments, &argMap)
		advisory := r.deps.ErrorMemory.Preflight(ctx, call.Name, "execute", argMap)
		if len(advisory.Warnings) > 0 {
			r.deps.Logger.Debug().Str("tool", call.Name).Strs("warnings", advisory.Warnings).Msg("preflight advisory")
		}
	}

	if r.deps.Confirmation != nil {
		danger := tool.DangerClass()
		if danger == models.DangerSafe && r.deps.Guard != nil {
			var p struct {
				Path string `json:"path"`
			}
			_ = json.Unmarshal(call.Arguments, &p)
			if r.deps.Guard.OutsideRoot(p.Path) {
				danger = models.DangerMutating
			}
		}
		proceed, reason := r.deps.Confirmation.Resolve(ctx, tool.Name(), danger, call.Arguments)
		if !proceed {
			return &models.ToolResult{ToolCallID: call.ID, Status: models.StatusBlocked, Error: reason}
		}
	}

	toolCtx := ctx
	var cancel context.CancelFunc
	if r.tcfg.ToolTimeout > 0 {
		toolCtx, cancel = context.WithTimeout(ctx, r.tcfg.ToolTimeout)
		defer cancel()
	}

	result := r.deps.Registry.Dispatch(toolCtx, call, r.deps.Guard)
	if result.Status != models.StatusSuccess {
		r.logToolError(ctx, call, result)
	}
	return result
}

func (r *Reasoner) logToolError(ctx context.Context, call models.ToolCall, result *models.ToolResult) {
	if r.deps.ErrorMemory == nil {
		return
	}
	errText := result.Error
	if errText == "" {
		errText = result.Output
	}
	meta := map[string]any{}
	for k, v := range result.Metadata {
		meta[k] = v
	}
	id, err := r.deps.ErrorMemory.Log(ctx, call.Name, "execute", errText, meta)
	if err == nil {
		result.Metadata = mergeMeta(result.Metadata, map[string]any{"error_event_id": id})
	}
}

func mergeMeta(base map[string]any, add map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	for k, v := range add {
		base[k] = v
	}
	return base
}

// checkBudget returns a Budget error once cumulative token usage reaches
// max_tokens_per_task; the Reasoner then finalizes rather than placing
// another call.
func (r *Reasoner) checkBudget(state *taskState) error {
	if r.cfg.MaxTokensPerTask <= 0 {
		return nil
	}
	if state.tokenUsed >= r.cfg.MaxTokensPerTask {
		return apperrors.New(apperrors.KindBudget, "reasoner.checkBudget",
			fmt.Sprintf("token budget of %d exceeded (used %d)", r.cfg.MaxTokensPerTask, state.tokenUsed))
	}
	return nil
}

func (r *Reasoner) maxResponseTokens() int {
	if r.deps.Registry != nil && len(r.deps.Registry.All()) > 0 {
		if r.cfg.MaxTokensToolResponse > 0 {
			return r.cfg.MaxTokensToolResponse
		}
	}
	if r.cfg.MaxTokensPerResponse > 0 {
		return r.cfg.MaxTokensPerResponse
	}
	return 1024
}

// finalizeOnError renders a terminal error as user-facing text, naming the
// budget or failure class per spec §6.
func (r *Reasoner) finalizeOnError(err error, state *taskState) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindBudget:
		return fmt.Sprintf("Token budget exceeded: %s. %s", err.Error(), r.synthesizeFromLastObservation(state))
	case apperrors.KindCancellation:
		return fmt.Sprintf("Task cancelled before completion: %s", err.Error())
	case apperrors.KindLLMPermanent:
		return fmt.Sprintf("LLM unavailable: %s", err.Error())
	case apperrors.KindLLMTransient:
		return fmt.Sprintf("LLM unavailable after retries: %s", err.Error())
	default:
		return fmt.Sprintf("Task failed: %s", err.Error())
	}
}

// synthesizeFromLastObservation builds a best-effort final message from
// whichever non-empty tool observation or assistant text is most recent in
// the window, used when the iteration cap or budget is hit mid-task or the
// model returns nothing usable.
func (r *Reasoner) synthesizeFromLastObservation(state *taskState) string {
	for i := len(state.window) - 1; i >= 0; i-- {
		m := state.window[i]
		if m.Role == models.RoleTool && strings.TrimSpace(m.Content) != "" {
			return "Stopped before a final answer was produced. Last observation: " + truncate(m.Content, 1000)
		}
		if m.Role == models.RoleAssistant && strings.TrimSpace(m.Content) != "" {
			return m.Content
		}
	}
	return "Stopped before producing a final answer."
}

// finalize runs S7: classify the interaction, persist it if warranted, and
// drive hygiene on the task counter.
func (r *Reasoner) finalize(ctx context.Context, task, final string, success bool, toolsUsed int) {
	result := memoryfilter.Classify(task, final, success, toolsUsed)

	switch result.Class {
	case models.ClassRule:
		if r.deps.Rules != nil && result.Rule != nil {
			_, _ = r.deps.Rules.Add(result.Rule.Trigger, result.Rule.TriggerKind, result.Rule.Response, 0)
		}
	case models.ClassFact:
		if r.deps.Store != nil && result.Fact != nil {
			id := uuid.NewString()
			doc := fmt.Sprintf("User's %s is %s", result.Fact.Category, result.Fact.Value)
			_ = r.deps.Store.Upsert(ctx, models.CollectionFacts, id, doc, vectorstore.Metadata{
				"category": result.Fact.Category, "value": result.Fact.Value, "ts": time.Now(),
			})
		}
	case models.ClassExperience:
		if r.deps.Store != nil {
			exp := models.Experience{
				ID: uuid.NewString(), Task: task, Outcome: final, Success: success, TS: time.Now(),
			}
			doc := fmt.Sprintf("task: %s\noutcome: %s", task, final)
			_ = r.deps.Store.Upsert(ctx, models.CollectionExperiences, exp.ID, doc, vectorstore.Metadata{
				"success": success, "ts": exp.TS, "tool_calls": toolsUsed,
			})
		}
	case models.ClassUseless:
		// §3 invariant: USELESS inputs never produce storage.
	}

	r.mu.Lock()
	r.tasksProcessed++
	n := r.tasksProcessed
	r.mu.Unlock()

	interval := r.hcfg.IntervalTasks
	if interval <= 0 {
		interval = 10
	}
	// Hygiene cadence is driven by the Reasoner's own counter, never an
	// implicit side effect of task dispatch (§9 Design Notes).
	if r.deps.Housekeeper != nil && interval > 0 && n%interval == 0 {
		if err := r.deps.Housekeeper.Run(ctx); err != nil {
			r.deps.Logger.Warn().Err(err).Msg("housekeeper run failed")
		}
	}
}

func (r *Reasoner) logEvent(ctx context.Context, task, action, result, status string) {
	if r.deps.ContextLog == nil {
		return
	}
	_ = r.deps.ContextLog.Append(contextlog.Entry{
		UserCommand: task,
		ToolAction:  action,
		Result:      result,
		Status:      status,
		TS:          time.Now(),
	})
}

func statusOf(success bool) string {
	if success {
		return "SUCCESS"
	}
	return "ERROR"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}

// TasksProcessed returns the number of tasks finalized by this Reasoner,
// for tests and diagnostics.
func (r *Reasoner) TasksProcessed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasksProcessed
}
