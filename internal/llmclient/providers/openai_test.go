package providers

import (
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

func TestNewOpenAI_RequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
		t.Error("expected an error when no API key is configured")
	}
}

func TestNewOpenAI_DefaultsModelWhenUnset(t *testing.T) {
	p, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.defaultModel != openai.GPT4o {
		t.Errorf("expected the default model, got %q", p.defaultModel)
	}
}

func TestConvertChatMessages_PrependsSystemPrompt(t *testing.T) {
	out := convertChatMessages([]models.Message{{Role: models.RoleUser, Content: "hi"}}, "be helpful")
	if len(out) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleSystem || out[0].Content != "be helpful" {
		t.Errorf("expected a leading system message, got %+v", out[0])
	}
}

func TestConvertChatMessages_DropsEmbeddedSystemRoleMessages(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "ignored"},
		{Role: models.RoleUser, Content: "hi"},
	}
	out := convertChatMessages(msgs, "")
	if len(out) != 1 {
		t.Fatalf("expected the embedded system message dropped, got %d messages", len(out))
	}
}

func TestConvertChatMessages_ToolRoleCarriesToolCallID(t *testing.T) {
	msgs := []models.Message{{Role: models.RoleTool, Content: "result", ToolCallID: "call_1"}}
	out := convertChatMessages(msgs, "")
	if out[0].Role != openai.ChatMessageRoleTool || out[0].ToolCallID != "call_1" {
		t.Errorf("expected tool role with propagated call id, got %+v", out[0])
	}
}

func TestConvertChatTools_FallsBackOnInvalidSchema(t *testing.T) {
	schemas := []tools.Schemas{{Name: "broken", Description: "d", Schema: json.RawMessage("not-json")}}
	out := convertChatTools(schemas)
	if len(out) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out))
	}
	if out[0].Function.Parameters == nil {
		t.Error("expected a fallback empty-object schema when parsing fails")
	}
}

func TestConvertChatTools_PreservesNameAndDescription(t *testing.T) {
	schemas := []tools.Schemas{{Name: "read_file", Description: "reads a file", Schema: json.RawMessage(`{"type":"object"}`)}}
	out := convertChatTools(schemas)
	if out[0].Function.Name != "read_file" || out[0].Function.Description != "reads a file" {
		t.Errorf("expected name/description preserved, got %+v", out[0].Function)
	}
}
