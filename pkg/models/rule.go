package models

import "time"

// TriggerKind is the matching strategy for a Rule.
type TriggerKind string

const (
	TriggerExact    TriggerKind = "exact"
	TriggerContains TriggerKind = "contains"
	TriggerRegex    TriggerKind = "regex"
)

// Rule is a deterministic (trigger, response) pair applied before LLM
// reasoning. Uniqueness on (TriggerKind, Trigger) is not enforced; ties are
// broken by descending Priority then descending CreatedAt.
type Rule struct {
	ID          string      `json:"id"`
	Trigger     string      `json:"trigger"`
	TriggerKind TriggerKind `json:"trigger_kind"`
	Response    string      `json:"response"`
	Priority    int         `json:"priority"`
	CreatedAt   time.Time   `json:"created_at"`
}
