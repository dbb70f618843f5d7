package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/archon-run/archon/internal/backoff"
	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/internal/contextlog"
	"github.com/archon-run/archon/internal/errormemory"
	"github.com/archon-run/archon/internal/housekeeper"
	"github.com/archon-run/archon/internal/llmclient"
	"github.com/archon-run/archon/internal/llmclient/providers"
	"github.com/archon-run/archon/internal/reasoner"
	"github.com/archon-run/archon/internal/retriever"
	"github.com/archon-run/archon/internal/ruleengine"
	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/internal/tools/codegen"
	"github.com/archon-run/archon/internal/tools/files"
	"github.com/archon-run/archon/internal/tools/pentest"
	"github.com/archon-run/archon/internal/tools/shell"
	"github.com/archon-run/archon/internal/tools/websearch"
	"github.com/archon-run/archon/internal/vectorstore"
	"github.com/archon-run/archon/internal/vectorstore/embeddings"
)

// runtime bundles everything build() assembles from Config, so cobra
// command handlers need only the one struct.
type runtime struct {
	cfg     *config.Config
	logger  zerolog.Logger
	engine  *reasoner.Reasoner
	rules   *ruleengine.Engine
	hk      *housekeeper.Housekeeper
	cleanup func()
}

// build wires every subsystem from cfg: VectorStore, RuleEngine,
// ErrorMemory, Retriever, ToolRegistry + individual tools, ConfirmationPolicy,
// LLMClient + provider, Housekeeper, and finally the Reasoner.
func build(cfg *config.Config) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Logging)

	var embedder embeddings.Provider
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey != "" {
		if p, err := embeddings.NewOpenAI(embeddings.Config{APIKey: cfg.LLM.APIKey}); err == nil {
			embedder = p
		}
	}
	if embedder == nil {
		embedder = embeddings.NewLocal(64)
	}

	store, err := vectorstore.New(cfg.VectorStore.Backend, cfg.VectorStore.Path, embedder)
	if err != nil {
		return nil, fmt.Errorf("build vector store: %w", err)
	}

	rulesPersist := &ruleengine.FilePersistence{Path: rulesPath(cfg.VectorStore.Path)}
	rules, warning := ruleengine.New(rulesPersist)
	if warning != "" {
		logger.Warn().Msg(warning)
	}

	errMem, err := errormemory.NewWithAudit(store, ".errors/error_logs.json")
	if err != nil {
		logger.Warn().Err(err).Msg("error audit log disabled")
		errMem = errormemory.New(store)
	}

	retr := retriever.New(rules, store, retriever.Config{
		TopKFacts:       cfg.VectorStore.TopKFacts,
		TopKExperiences: cfg.VectorStore.TopKExperiences,
		TopKLessons:     cfg.VectorStore.TopKLessons,
		TopKStrategies:  cfg.VectorStore.TopKStrategies,
	})

	registry := tools.NewRegistry()
	registry.Register(files.NewReadTool(files.Config{Workspace: cfg.Sandbox.WorkingDirectory}))
	registry.Register(files.NewWriteTool(files.Config{Workspace: cfg.Sandbox.WorkingDirectory}))
	registry.Register(files.NewEditTool(files.Config{Workspace: cfg.Sandbox.WorkingDirectory}))
	registry.Register(codegen.New(codegen.Config{Workspace: cfg.Sandbox.WorkingDirectory}))
	registry.Register(websearch.New(websearch.Config{HTTPClient: &http.Client{Timeout: 15 * time.Second}}))
	registry.Register(pentest.NewPortScanFormatterTool())
	registry.Register(pentest.NewHeaderAuditTool(&http.Client{Timeout: 15 * time.Second}))
	registry.Register(shell.New(shell.Config{
		Workspace: cfg.Sandbox.WorkingDirectory,
		Timeout:   cfg.Tools.ToolTimeout,
	}))

	guard := tools.NewGuard(cfg.Sandbox, cfg.Sudo)
	confirmation := tools.NewConfirmationPolicy(cfg.Tools.ConfirmationMode, stdinConfirmer{})

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("build LLM provider: %w", err)
	}
	llm := llmclient.New(provider, llmclient.Config{
		RateLimitRPM: cfg.LLM.RateLimitRPM,
		MaxRetries:   cfg.LLM.APIMaxRetries,
		Policy:       backoffPolicyFrom(cfg.LLM),
	})

	hk := housekeeper.New(store, cfg.Hygiene, logger)

	ctxLog, err := contextlog.New(".context/context_log.json")
	if err != nil {
		logger.Warn().Err(err).Msg("context log disabled")
		ctxLog = nil
	}

	engine := reasoner.New(reasoner.Deps{
		Rules:        rules,
		Retriever:    retr,
		LLM:          llm,
		Registry:     registry,
		Guard:        guard,
		Confirmation: confirmation,
		ErrorMemory:  errMem,
		Store:        store,
		Housekeeper:  hk,
		ContextLog:   ctxLog,
		Logger:       logger,
	}, cfg, "")

	return &runtime{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		rules:  rules,
		hk:     hk,
		cleanup: func() {
			hk.Stop()
			_ = store.Close()
		},
	}, nil
}

func buildProvider(cfg config.LLMConfig) (llmclient.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return providers.NewOpenAI(providers.OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, DefaultModel: cfg.Model})
	case "anthropic", "":
		return providers.NewAnthropic(providers.AnthropicConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, DefaultModel: cfg.Model})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// backoffPolicyFrom derives a retry Policy from the configured initial
// delay, keeping DefaultPolicy's factor/jitter/ceiling shape.
func backoffPolicyFrom(cfg config.LLMConfig) backoff.Policy {
	policy := backoff.DefaultPolicy()
	if cfg.APIRetryDelaySeconds > 0 {
		policy.InitialMs = cfg.APIRetryDelaySeconds * 1000
	}
	return policy
}

func rulesPath(vectorStorePath string) string {
	if vectorStorePath == "" {
		return ".memory/rules.json"
	}
	return vectorStorePath + "/rules.json"
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out zerolog.ConsoleWriter
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// stdinConfirmer asks for confirmation on stdin/stdout, the simplest
// Confirmer implementation for an interactive CLI session.
type stdinConfirmer struct{}

func (stdinConfirmer) Confirm(ctx context.Context, toolName string, args []byte) (bool, error) {
	fmt.Printf("Allow tool %q with args %s? [y/N]: ", toolName, string(args))
	var resp string
	_, _ = fmt.Scanln(&resp)
	return resp == "y" || resp == "Y" || resp == "yes", nil
}
