// Package ruleengine implements the deterministic trigger→response matcher
// checked before any LLM call. Persistence is a single keyed list, rewritten
// atomically on each mutation; readers must tolerate absent or corrupt
// persistence by starting empty.
package ruleengine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archon-run/archon/pkg/models"
)

// Persistence is the storage contract the RuleEngine rewrites atomically on
// every mutation. A Persistence implementation that cannot load existing
// rules must return an empty slice rather than an error, so a corrupt or
// missing store degrades to an empty rule set instead of failing startup.
type Persistence interface {
	Load() ([]models.Rule, error)
	Save(rules []models.Rule) error
}

// Engine holds the live rule set and its persistence backend.
type Engine struct {
	mu    sync.RWMutex
	rules []models.Rule
	store Persistence
}

// New creates a RuleEngine, loading any previously persisted rules. A
// failure to load is tolerated and logged by the caller via the returned
// warning string; the engine itself always starts usable.
func New(store Persistence) (*Engine, string) {
	e := &Engine{store: store}
	if store == nil {
		return e, ""
	}
	rules, err := store.Load()
	if err != nil {
		return e, fmt.Sprintf("ruleengine: starting empty, failed to load persisted rules: %v", err)
	}
	e.rules = rules
	return e, ""
}

// Add creates a new rule and persists the updated set. Uniqueness on
// (trigger_kind, trigger) is not enforced.
func (e *Engine) Add(trigger string, kind models.TriggerKind, response string, priority int) (string, error) {
	if strings.TrimSpace(trigger) == "" {
		return "", fmt.Errorf("ruleengine: trigger must not be empty")
	}
	if kind == "" {
		kind = models.TriggerContains
	}
	if kind == models.TriggerRegex {
		if _, err := regexp.Compile("(?im)" + trigger); err != nil {
			return "", fmt.Errorf("ruleengine: invalid regex trigger: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rule := models.Rule{
		ID:          uuid.NewString(),
		Trigger:     trigger,
		TriggerKind: kind,
		Response:    response,
		Priority:    priority,
		CreatedAt:   time.Now(),
	}
	e.rules = append(e.rules, rule)
	return rule.ID, e.persistLocked()
}

// Remove deletes a rule by id, returning whether it existed.
func (e *Engine) Remove(id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true, e.persistLocked()
		}
	}
	return false, nil
}

// All returns a snapshot copy of every persisted rule, ordered by
// (priority desc, created_at desc) — the order Retriever injects them in.
func (e *Engine) All() []models.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Rule, len(e.rules))
	copy(out, e.rules)
	sortRules(out)
	return out
}

// Match returns the highest-priority rule matching input, or ok=false if
// none matches. Matching is evaluated solely on the raw input string.
func (e *Engine) Match(input string) (rule models.Rule, ok bool) {
	e.mu.RLock()
	candidates := make([]models.Rule, len(e.rules))
	copy(candidates, e.rules)
	e.mu.RUnlock()

	sortRules(candidates)
	for _, r := range candidates {
		if ruleMatches(r, input) {
			return r, true
		}
	}
	return models.Rule{}, false
}

func sortRules(rules []models.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.After(rules[j].CreatedAt)
	})
}

func ruleMatches(r models.Rule, input string) bool {
	switch r.TriggerKind {
	case models.TriggerExact:
		return strings.EqualFold(strings.TrimSpace(r.Trigger), strings.TrimSpace(input))
	case models.TriggerRegex:
		re, err := regexp.Compile("(?im)" + r.Trigger)
		if err != nil {
			return false
		}
		return re.MatchString(input)
	case models.TriggerContains:
		fallthrough
	default:
		return strings.Contains(strings.ToLower(input), strings.ToLower(r.Trigger))
	}
}

func (e *Engine) persistLocked() error {
	if e.store == nil {
		return nil
	}
	snapshot := make([]models.Rule, len(e.rules))
	copy(snapshot, e.rules)
	return e.store.Save(snapshot)
}
