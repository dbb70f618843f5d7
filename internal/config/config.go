// Package config defines and validates Archon's configuration surface:
// reasoning loop bounds, LLM provider settings, tool mediation policy,
// sandbox/sudo restrictions, hygiene cadence, and vector store selection.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for an Archon runtime instance.
type Config struct {
	Reasoner    ReasonerConfig    `yaml:"reasoner"`
	LLM         LLMConfig         `yaml:"llm"`
	Tools       ToolsConfig       `yaml:"tools"`
	Sandbox     SandboxConfig     `yaml:"sandbox"`
	Sudo        SudoConfig        `yaml:"sudo"`
	Hygiene     HygieneConfig     `yaml:"hygiene"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ReasonerConfig bounds the reasoning loop: iteration and token ceilings,
// sampling temperature, and the per-task deadline.
type ReasonerConfig struct {
	MaxIterations           int           `yaml:"max_iterations"`
	MaxContextMessages      int           `yaml:"max_context_messages"`
	MaxTokensPerTask        int           `yaml:"max_tokens_per_task"`
	MaxTokensPerResponse    int           `yaml:"max_tokens_per_response"`
	MaxTokensToolResponse   int           `yaml:"max_tokens_per_tool_response"`
	Temperature             float64       `yaml:"temperature"`
	RecoveryTemperature     float64       `yaml:"recovery_temperature"`
	ToolOutputTruncateChars int           `yaml:"tool_output_truncate_chars"`
	TaskDeadline            time.Duration `yaml:"task_deadline"`
}

// LLMConfig configures the LLMClient: provider selection, credentials,
// rate limiting, and retry behavior.
type LLMConfig struct {
	Provider             string  `yaml:"provider"` // anthropic, openai
	Model                string  `yaml:"model"`
	APIKey               string  `yaml:"api_key"`
	BaseURL              string  `yaml:"base_url"`
	RateLimitRPM         int     `yaml:"rate_limit_rpm"`
	APIMaxRetries        int     `yaml:"api_max_retries"`
	APIRetryDelaySeconds float64 `yaml:"api_retry_delay_seconds"`
	APITimeoutSeconds    int     `yaml:"api_timeout_seconds"`
}

// Timeout returns the configured API timeout as a Duration.
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.APITimeoutSeconds) * time.Second
}

// RetryDelay returns the configured base retry delay as a Duration.
func (l LLMConfig) RetryDelay() time.Duration {
	return time.Duration(l.APIRetryDelaySeconds * float64(time.Second))
}

// ConfirmationMode selects how ConfirmationPolicy decides EXECUTE vs ASK.
type ConfirmationMode string

const (
	ConfirmYes  ConfirmationMode = "YES"
	ConfirmNo   ConfirmationMode = "NO"
	ConfirmAuto ConfirmationMode = "AUTO"
)

// ToolsConfig configures tool mediation: confirmation policy and timeouts.
type ToolsConfig struct {
	ConfirmationMode ConfirmationMode `yaml:"confirmation_mode"`
	ToolTimeout      time.Duration    `yaml:"tool_timeout"`
	AskTimeout       time.Duration    `yaml:"ask_timeout"`
}

// SandboxConfig bounds filesystem/shell tool access.
type SandboxConfig struct {
	Enabled           bool     `yaml:"sandbox_mode"`
	WorkingDirectory  string   `yaml:"working_directory"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	BlockedPaths      []string `yaml:"blocked_paths"`
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	CommandWhitelist  []string `yaml:"command_whitelist"`
}

// SudoConfig governs privileged shell execution.
type SudoConfig struct {
	SuperuserMode              bool     `yaml:"superuser_mode"`
	RequireSudoConfirmation    bool     `yaml:"require_sudo_confirmation"`
	SudoWhitelist              []string `yaml:"sudo_whitelist"`
	DangerousCommandsBlocklist []string `yaml:"dangerous_commands_blocklist"`
}

// HygieneConfig governs Housekeeper cadence and collection caps.
type HygieneConfig struct {
	IntervalTasks    int    `yaml:"hygiene_interval_tasks"`
	MaxAgeDays       int    `yaml:"max_age_days"`
	KeepSuccessful   bool   `yaml:"keep_successful"`
	FactsLimit       int    `yaml:"facts_limit"`
	ExperiencesLimit int    `yaml:"experiences_limit"`
	LessonsLimit     int    `yaml:"lessons_limit"`
	StrategiesLimit  int    `yaml:"strategies_limit"`
	ErrorsLimit      int    `yaml:"errors_limit"`
	IdleSweepCron    string `yaml:"idle_sweep_cron"`
}

// VectorStoreConfig selects the VectorStore backend and its retrieval widths.
type VectorStoreConfig struct {
	Backend         string `yaml:"backend"` // "memory" or "sqlite"
	Path            string `yaml:"path"`
	TopKFacts       int    `yaml:"top_k_facts"`
	TopKExperiences int    `yaml:"top_k_experiences"`
	TopKLessons     int    `yaml:"top_k_lessons"`
	TopKStrategies  int    `yaml:"top_k_strategies"`
}

// LoggingConfig configures the zerolog writer/level.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config populated with sensible out-of-the-box defaults.
func Default() *Config {
	return &Config{
		Reasoner: ReasonerConfig{
			MaxIterations:           10,
			MaxContextMessages:      20,
			MaxTokensPerTask:        20000,
			MaxTokensPerResponse:    1024,
			MaxTokensToolResponse:   768,
			Temperature:             0.2,
			RecoveryTemperature:     0.1,
			ToolOutputTruncateChars: 500,
		},
		LLM: LLMConfig{
			Provider:             "anthropic",
			RateLimitRPM:         60,
			APIMaxRetries:        3,
			APIRetryDelaySeconds: 1,
			APITimeoutSeconds:    60,
		},
		Tools: ToolsConfig{
			ConfirmationMode: ConfirmAuto,
			ToolTimeout:      30 * time.Second,
			AskTimeout:       2 * time.Minute,
		},
		Sandbox: SandboxConfig{
			Enabled:          true,
			WorkingDirectory: ".",
			MaxFileSizeMB:    10,
		},
		Sudo: SudoConfig{
			SuperuserMode:           false,
			RequireSudoConfirmation: true,
		},
		Hygiene: HygieneConfig{
			IntervalTasks:    10,
			MaxAgeDays:       90,
			KeepSuccessful:   true,
			FactsLimit:       5000,
			ExperiencesLimit: 5000,
			LessonsLimit:     2000,
			StrategiesLimit:  500,
			ErrorsLimit:      5000,
		},
		VectorStore: VectorStoreConfig{
			Backend:         "memory",
			Path:            ".memory",
			TopKFacts:       5,
			TopKExperiences: 5,
			TopKLessons:     3,
			TopKStrategies:  3,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Validate checks the configuration for internal consistency. A
// validation failure is fatal at startup rather than recoverable.
func (c *Config) Validate() error {
	if c.Reasoner.MaxIterations <= 0 {
		return fmt.Errorf("reasoner.max_iterations must be positive")
	}
	if c.Reasoner.MaxTokensPerTask <= 0 {
		return fmt.Errorf("reasoner.max_tokens_per_task must be positive")
	}
	if c.Reasoner.MaxTokensPerResponse <= 0 {
		return fmt.Errorf("reasoner.max_tokens_per_response must be positive")
	}
	switch c.Tools.ConfirmationMode {
	case ConfirmYes, ConfirmNo, ConfirmAuto:
	default:
		return fmt.Errorf("tools.confirmation_mode must be one of YES, NO, AUTO; got %q", c.Tools.ConfirmationMode)
	}
	if c.LLM.Provider != "anthropic" && c.LLM.Provider != "openai" {
		return fmt.Errorf("llm.provider must be one of anthropic, openai; got %q", c.LLM.Provider)
	}
	switch c.VectorStore.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("vector_store.backend must be one of memory, sqlite; got %q", c.VectorStore.Backend)
	}
	return nil
}
