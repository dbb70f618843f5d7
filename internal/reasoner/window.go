package reasoner

import "github.com/archon-run/archon/pkg/models"

// estimateTokens sums EstimatedTokens across a window.
func estimateTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += m.EstimatedTokens()
	}
	return total
}

// pruneWindow is a pure function of (messages, maxMessages, budget): it
// drops the oldest non-pinned messages until the window satisfies both the
// message-count cap and the 0.7*budget token threshold. The system message
// (index 0) and the original user task (index 1) are never evicted.
func pruneWindow(messages []models.Message, maxMessages int, budget int) []models.Message {
	if len(messages) <= 2 {
		return messages
	}

	tokenCeiling := int(float64(budget) * 0.7)
	needsPrune := func(msgs []models.Message) bool {
		if maxMessages > 0 && len(msgs) > maxMessages {
			return true
		}
		if budget > 0 && estimateTokens(msgs) > tokenCeiling {
			return true
		}
		return false
	}

	if !needsPrune(messages) {
		return messages
	}

	pinned := append([]models.Message(nil), messages[:2]...)
	rest := append([]models.Message(nil), messages[2:]...)

	for len(rest) > 0 && needsPrune(append(pinned, rest...)) {
		rest = rest[1:]
	}

	out := make([]models.Message, 0, len(pinned)+len(rest))
	out = append(out, pinned...)
	out = append(out, rest...)
	return out
}
