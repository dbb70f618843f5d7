package models

import "time"

// MemoryClass is the classification MemoryFilter assigns to a completed
// interaction.
type MemoryClass string

const (
	ClassUseless    MemoryClass = "USELESS"
	ClassRule       MemoryClass = "RULE"
	ClassFact       MemoryClass = "FACT"
	ClassExperience MemoryClass = "EXPERIENCE"
)

// Collection names the type-segregated VectorStore collections.
type Collection string

const (
	CollectionRules       Collection = "rules"
	CollectionFacts       Collection = "facts"
	CollectionExperiences Collection = "experiences"
	CollectionLessons     Collection = "lessons"
	CollectionStrategies  Collection = "strategies"
	CollectionErrors      Collection = "errors"
)

// Experience records one completed task: input, actions taken, and outcome.
type Experience struct {
	ID      string         `json:"id"`
	Task    string         `json:"task"`
	Actions []string       `json:"actions"`
	Outcome string         `json:"outcome"`
	Success bool           `json:"success"`
	TS      time.Time      `json:"ts"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Lesson is summarized guidance derived from past experiences.
type Lesson struct {
	ID         string    `json:"id"`
	Lesson     string    `json:"lesson"`
	Context    string    `json:"context"`
	Category   string    `json:"category"`
	Importance float64   `json:"importance"` // [0,1]
	TS         time.Time `json:"ts"`
}

// Strategy is a reusable approach for a class of task.
type Strategy struct {
	ID          string    `json:"id"`
	Strategy    string    `json:"strategy"`
	TaskType    string    `json:"task_type"`
	SuccessRate float64   `json:"success_rate"` // [0,1]
	UsageCount  int       `json:"usage_count"`
	TS          time.Time `json:"ts"`
}

// Fact is a durable statement about the user carried across tasks.
type Fact struct {
	ID       string    `json:"id"`
	Fact     string    `json:"fact"`
	Category string    `json:"category"`
	Value    string    `json:"value"`
	TS       time.Time `json:"ts"`
}

// ErrorEvent logs one tool/LLM error for pattern analysis and remediation.
type ErrorEvent struct {
	ID          string         `json:"id"`
	Tool        string         `json:"tool"`
	Operation   string         `json:"operation"`
	Error       string         `json:"error"`
	TS          time.Time      `json:"ts"`
	Meta        map[string]any `json:"meta,omitempty"` // path, extension, file_size, max_size, ...
	Remediation string         `json:"remediation,omitempty"`
	Success     bool           `json:"success"` // always false: an ErrorEvent only exists for failures
}

// PatternReport summarizes ErrorMemory.analyze(window_days, tool?).
type PatternReport struct {
	ByTool           map[string]int `json:"by_tool"`
	ByOperation      map[string]int `json:"by_operation"`
	TopErrorTypes    []string       `json:"top_error_types"`
	ByExtension      map[string]int `json:"by_extension"`
	ProblematicPaths []string       `json:"problematic_paths"`
	Recommendations  []string       `json:"recommendations"`
}
