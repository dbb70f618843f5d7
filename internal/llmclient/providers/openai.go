package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/archon-run/archon/internal/llmclient"
	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

// OpenAIConfig configures an OpenAIProvider. BaseURL lets this provider
// target any OpenAI-compatible chat-completions endpoint (local models,
// OpenRouter, Azure OpenAI, etc.).
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAIProvider implements llmclient.Provider over the OpenAI
// chat-completions API (or a compatible one).
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAI creates an OpenAIProvider.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("providers: openai API key is required")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = openai.GPT4o
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), defaultModel: model}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req llmclient.Request) (llmclient.Completion, error) {
	messages := convertChatMessages(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:    p.defaultModel,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = float32(req.Temperature)
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertChatTools(req.Tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return llmclient.Completion{}, wrapRetryable(err)
	}
	if len(resp.Choices) == 0 {
		return llmclient.Completion{}, fmt.Errorf("openai: empty choices in response")
	}

	choice := resp.Choices[0]
	completion := llmclient.Completion{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: llmclient.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		args := tc.Function.Arguments
		var probe any
		if args != "" && json.Unmarshal([]byte(args), &probe) != nil {
			completion.Malformed = true
			completion.MalformedRaw = args
			continue
		}
		completion.ToolCalls = append(completion.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	if choice.FinishReason == "tool_calls" && len(completion.ToolCalls) == 0 && !completion.Malformed {
		completion.Malformed = true
		completion.MalformedRaw = choice.Message.Content
	}
	return completion, nil
}

func convertChatMessages(messages []models.Message, system string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}
		m := openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content}
		if msg.Role == models.RoleTool {
			m.Role = openai.ChatMessageRoleTool
			m.ToolCallID = msg.ToolCallID
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, m)
	}
	return out
}

func convertChatTools(schemas []tools.Schemas) []openai.Tool {
	out := make([]openai.Tool, 0, len(schemas))
	for _, t := range schemas {
		var params map[string]any
		if err := json.Unmarshal(t.Schema, &params); err != nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
