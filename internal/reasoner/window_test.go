package reasoner

import (
	"testing"

	"github.com/archon-run/archon/pkg/models"
)

func msg(role models.Role, content string) models.Message {
	return models.Message{Role: role, Content: content}
}

func TestEstimateTokens(t *testing.T) {
	messages := []models.Message{msg(models.RoleUser, "hello world")}
	if got := estimateTokens(messages); got <= 0 {
		t.Errorf("estimateTokens() = %d, want > 0", got)
	}
}

func TestPruneWindow_BelowCapsIsUnchanged(t *testing.T) {
	messages := []models.Message{
		msg(models.RoleSystem, "sys"),
		msg(models.RoleUser, "task"),
		msg(models.RoleAssistant, "short reply"),
	}
	out := pruneWindow(messages, 20, 20000)
	if len(out) != len(messages) {
		t.Fatalf("pruneWindow changed length: got %d, want %d", len(out), len(messages))
	}
}

func TestPruneWindow_PinsSystemAndFirstUserMessage(t *testing.T) {
	messages := []models.Message{
		msg(models.RoleSystem, "sys"),
		msg(models.RoleUser, "original task"),
	}
	for i := 0; i < 50; i++ {
		messages = append(messages, msg(models.RoleAssistant, "filler filler filler filler"))
	}

	out := pruneWindow(messages, 5, 20000)
	if len(out) > 5 {
		t.Fatalf("pruneWindow did not respect maxMessages: got %d entries", len(out))
	}
	if out[0].Content != "sys" {
		t.Errorf("pinned system message was evicted: got %q", out[0].Content)
	}
	if out[1].Content != "original task" {
		t.Errorf("pinned first user message was evicted: got %q", out[1].Content)
	}
}

func TestPruneWindow_DropsOldestWhenOverTokenBudget(t *testing.T) {
	big := make([]byte, 2000)
	for i := range big {
		big[i] = 'x'
	}
	messages := []models.Message{
		msg(models.RoleSystem, "sys"),
		msg(models.RoleUser, "task"),
		msg(models.RoleAssistant, string(big)),
		msg(models.RoleAssistant, "recent and short"),
	}

	out := pruneWindow(messages, 0, 100)
	if len(out) == 0 {
		t.Fatal("pruneWindow returned no messages")
	}
	last := out[len(out)-1]
	if last.Content != "recent and short" {
		t.Errorf("most recent non-pinned message was dropped, last = %q", last.Content)
	}
}

func TestPruneWindow_TwoOrFewerMessagesNeverShrinks(t *testing.T) {
	messages := []models.Message{msg(models.RoleSystem, "sys")}
	out := pruneWindow(messages, 0, 1)
	if len(out) != 1 {
		t.Fatalf("pruneWindow shrank a single-message window: got %d", len(out))
	}
}
