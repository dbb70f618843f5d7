// Package memoryfilter classifies a completed interaction as one of
// {RULE, FACT, EXPERIENCE, USELESS} using only surface and structural
// signals. Classification never consults the LLM; it is resolved
// deterministically from surface patterns alone.
package memoryfilter

import (
	"regexp"
	"strings"

	"github.com/archon-run/archon/pkg/models"
)

// MinInputLength is the shortest input worth classifying at all.
const MinInputLength = 3

var uselessPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hello|hey|halo|hai)[!. ]*$`),
	regexp.MustCompile(`(?i)^(thanks|thank you|terima kasih|makasih|ty)[!. ]*$`),
	regexp.MustCompile(`(?i)^(ok|okay|oke|sure|got it|noted|understood)[!. ]*$`),
	regexp.MustCompile(`(?i)^(yes|no|yep|nope|ya|yup|tidak|iya)[!. ]*$`),
	regexp.MustCompile(`(?i)^(bye|goodbye|see you|dadah)[!. ]*$`),
}

// rulePattern matches a trigger/response template. responseFirst marks
// templates whose capture groups read (response, trigger) instead of the
// usual (trigger, response), e.g. "always respond X when Y".
type rulePattern struct {
	re            *regexp.Regexp
	responseFirst bool
}

var rulePatterns = []rulePattern{
	{regexp.MustCompile(`(?i)^if\s+(.+?)\s+then\s+(.+)$`), false},
	{regexp.MustCompile(`(?i)^always\s+respond\s+(.+?)\s+when\s+(.+)$`), true},
	{regexp.MustCompile(`(?i)^kalau\s+(.+?)\s*,?\s*(?:maka|jawab)\s+(.+)$`), false},
	{regexp.MustCompile(`(?i)^jika\s+(.+?)\s*,?\s*(?:maka|jawab)\s+(.+)$`), false},
}

type factPattern struct {
	re       *regexp.Regexp
	category string
}

var factPatterns = []factPattern{
	{regexp.MustCompile(`(?i)^(?:my name is|i am|i'm)\s+(.+)$`), "name"},
	{regexp.MustCompile(`(?i)^nama saya\s+(.+)$`), "name"},
	{regexp.MustCompile(`(?i)^i prefer\s+(.+)$`), "preference"},
	{regexp.MustCompile(`(?i)^saya (?:suka|lebih suka)\s+(.+)$`), "preference"},
}

var solutionArtifactPattern = regexp.MustCompile("(?s)```|^\\s*(?:1\\.|- )")

// RuleExtraction is the (trigger, response) pair extracted for a RULE
// classification. TriggerKind defaults to contains.
type RuleExtraction struct {
	Trigger     string
	TriggerKind models.TriggerKind
	Response    string
}

// FactExtraction is the (category, value) pair extracted for a FACT
// classification.
type FactExtraction struct {
	Category string
	Value    string
}

// Result is the outcome of Classify: Rule is populated for ClassRule, Fact
// for ClassFact, and neither for ClassExperience or ClassUseless.
type Result struct {
	Class models.MemoryClass
	Rule  *RuleExtraction
	Fact  *FactExtraction
}

// Classify runs the five-step classification policy: useless-pattern
// filter, rule extraction, fact extraction, experience heuristics, and a
// final useless fallback.
func Classify(userInput, assistantText string, success bool, actionsCount int) Result {
	trimmed := strings.TrimSpace(userInput)

	if len(trimmed) < MinInputLength || matchesAny(uselessPatterns, trimmed) {
		return Result{Class: models.ClassUseless}
	}

	if rule, ok := extractRule(trimmed); ok {
		return Result{Class: models.ClassRule, Rule: &rule}
	}

	if fact, ok := extractFact(trimmed); ok {
		return Result{Class: models.ClassFact, Fact: &fact}
	}

	if actionsCount >= 1 || !success || solutionArtifactPattern.MatchString(assistantText) {
		return Result{Class: models.ClassExperience}
	}

	return Result{Class: models.ClassUseless}
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func extractRule(input string) (RuleExtraction, bool) {
	for _, p := range rulePatterns {
		m := p.re.FindStringSubmatch(input)
		if m == nil {
			continue
		}
		trigger, response := m[1], m[2]
		if p.responseFirst {
			trigger, response = m[2], m[1]
		}
		return RuleExtraction{
			Trigger:     strings.TrimSpace(trigger),
			TriggerKind: models.TriggerContains,
			Response:    strings.TrimSpace(response),
		}, true
	}
	return RuleExtraction{}, false
}

func extractFact(input string) (FactExtraction, bool) {
	for _, p := range factPatterns {
		if m := p.re.FindStringSubmatch(input); m != nil {
			return FactExtraction{
				Category: p.category,
				Value:    strings.TrimSpace(m[1]),
			}, true
		}
	}
	return FactExtraction{}, false
}
