// Package errormemory logs tool/LLM errors, matches them against a
// remediation catalog, and exposes pre-flight warnings and pattern reports.
package errormemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archon-run/archon/internal/vectorstore"
	"github.com/archon-run/archon/pkg/models"
)

// ErrorMemory implements the log/preflight/remediate/analyze contract over
// the errors VectorStore collection.
type ErrorMemory struct {
	store   vectorstore.Store
	catalog []Pattern
	audit   *auditLogger
}

// New creates an ErrorMemory backed by store, using the default
// remediation catalog (DefaultCatalog). Its audit mirror is disabled; use
// NewWithAudit to also write .errors/error_logs.json.
func New(store vectorstore.Store) *ErrorMemory {
	return &ErrorMemory{store: store, catalog: DefaultCatalog()}
}

// NewWithAudit creates an ErrorMemory that mirrors every logged ErrorEvent
// to an append-only JSON-lines file at auditPath, independent of store.
func NewWithAudit(store vectorstore.Store, auditPath string) (*ErrorMemory, error) {
	audit, err := newAuditLogger(auditPath)
	if err != nil {
		return nil, err
	}
	return &ErrorMemory{store: store, catalog: DefaultCatalog(), audit: audit}, nil
}

// Log records an ErrorEvent, attaching a remediation suggestion when the
// catalog matches, and returns its id. This must be called before the
// error surfaces to the LLM as an observation.
func (m *ErrorMemory) Log(ctx context.Context, tool, operation, errText string, meta map[string]any) (string, error) {
	event := models.ErrorEvent{
		ID:        uuid.NewString(),
		Tool:      tool,
		Operation: operation,
		Error:     errText,
		TS:        time.Now(),
		Meta:      meta,
		Success:   false,
	}
	if rem := m.Remediate(event); rem != nil {
		event.Remediation = rem.Suggestion
	}
	if err := m.audit.append(event); err != nil {
		return event.ID, err
	}

	doc := fmt.Sprintf("%s.%s: %s", tool, operation, errText)
	metadata := vectorstore.Metadata{
		"ts":        event.TS,
		"success":   false,
		"tool":      tool,
		"operation": operation,
	}
	for k, v := range meta {
		metadata[k] = v
	}
	if m.store != nil {
		if err := m.store.Upsert(ctx, models.CollectionErrors, event.ID, doc, metadata); err != nil {
			return event.ID, fmt.Errorf("errormemory: persist event: %w", err)
		}
	}
	return event.ID, nil
}

// Preflight returns warnings and recommended validations based on similar
// past errors for the given tool/operation/args context: a past error is
// similar when its query distance is at most 0.6 or it was recorded
// against the same "path" argument.
func (m *ErrorMemory) Preflight(ctx context.Context, tool, operation string, args map[string]any) Advisory {
	if m.store == nil {
		return Advisory{}
	}
	query := fmt.Sprintf("%s %s", tool, operation)
	path, _ := args["path"].(string)
	if path != "" {
		query = query + " " + path
	}
	results, err := m.store.Query(ctx, models.CollectionErrors, query, 5)
	if err != nil || len(results) == 0 {
		return Advisory{}
	}

	var warnings []string
	seen := map[string]bool{}
	for _, r := range results {
		rTool, _ := r.Metadata["tool"].(string)
		if rTool != "" && rTool != tool {
			continue
		}
		rPath, _ := r.Metadata["path"].(string)
		if r.Distance > 0.6 && (path == "" || rPath != path) {
			continue
		}
		if !seen[r.Document] {
			warnings = append(warnings, "similar past failure: "+r.Document)
			seen[r.Document] = true
		}
	}
	if len(warnings) == 0 {
		return Advisory{}
	}
	confidence := 1.0 - float64(results[0].Distance)
	if confidence < 0 {
		confidence = 0
	}
	return Advisory{
		Warnings:               warnings,
		RecommendedValidations: recommendedValidationsFor(tool, operation),
		Confidence:             confidence,
	}
}

// Advisory is the result of Preflight.
type Advisory struct {
	Warnings               []string
	RecommendedValidations []string
	Confidence             float64
}

func recommendedValidationsFor(tool, operation string) []string {
	switch tool {
	case "read_file", "write_file", "edit":
		return []string{"verify path exists and is within the sandbox root before executing"}
	case "shell", "exec":
		return []string{"verify the command is on the whitelist before executing"}
	default:
		return nil
	}
}

// Remediate matches event against the catalog, returning the first
// matching suggestion (first match wins).
func (m *ErrorMemory) Remediate(event models.ErrorEvent) *Remediation {
	for _, p := range m.catalog {
		if p.Matches(event) {
			return p.Remediation(event)
		}
	}
	return genericFallback(event)
}

// Analyze produces a PatternReport over the errors logged within
// window_days, optionally filtered to a single tool.
func (m *ErrorMemory) Analyze(ctx context.Context, windowDays int, tool string) (models.PatternReport, error) {
	report := models.PatternReport{
		ByTool:      map[string]int{},
		ByOperation: map[string]int{},
		ByExtension: map[string]int{},
	}
	if m.store == nil {
		return report, nil
	}

	count, err := m.store.Count(ctx, models.CollectionErrors)
	if err != nil {
		return report, fmt.Errorf("errormemory: count: %w", err)
	}
	if count == 0 {
		return report, nil
	}

	results, err := m.store.Query(ctx, models.CollectionErrors, tool, count)
	if err != nil {
		return report, fmt.Errorf("errormemory: query: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -windowDays)
	pathCounts := map[string]int{}
	typeCounts := map[string]int{}

	for _, r := range results {
		ts := tsOf(r.Metadata)
		if windowDays > 0 && ts.Before(cutoff) {
			continue
		}
		rTool, _ := r.Metadata["tool"].(string)
		if tool != "" && rTool != tool {
			continue
		}
		rOp, _ := r.Metadata["operation"].(string)
		report.ByTool[rTool]++
		report.ByOperation[rOp]++
		if ext, ok := r.Metadata["extension"].(string); ok && ext != "" {
			report.ByExtension[ext]++
		}
		if path, ok := r.Metadata["path"].(string); ok && path != "" {
			pathCounts[path]++
		}
		typeCounts[classifyErrorType(r.Document)]++
	}

	report.ProblematicPaths = topKeys(pathCounts, 5)
	report.TopErrorTypes = topKeys(typeCounts, 5)
	report.Recommendations = recommendationsFor(report)
	return report, nil
}

func tsOf(meta vectorstore.Metadata) time.Time {
	if meta == nil {
		return time.Time{}
	}
	if t, ok := meta["ts"].(time.Time); ok {
		return t
	}
	return time.Time{}
}

func classifyErrorType(errText string) string {
	lower := strings.ToLower(errText)
	switch {
	case strings.Contains(lower, "not found"):
		return "not_found"
	case strings.Contains(lower, "permission"):
		return "permission"
	case strings.Contains(lower, "timeout"):
		return "timeout"
	case strings.Contains(lower, "too large") || strings.Contains(lower, "exceeds"):
		return "size_limit"
	default:
		return "other"
	}
}

func topKeys(counts map[string]int, n int) []string {
	type kv struct {
		k string
		v int
	}
	items := make([]kv, 0, len(counts))
	for k, v := range counts {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].v > items[j].v })
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.k
	}
	return out
}

func recommendationsFor(report models.PatternReport) []string {
	var out []string
	for _, t := range report.TopErrorTypes {
		switch t {
		case "not_found":
			out = append(out, "verify paths exist before operating on them")
		case "permission":
			out = append(out, "review sandbox and sudo policy for the affected tools")
		case "timeout":
			out = append(out, "consider raising tool_timeout or breaking the operation into smaller steps")
		case "size_limit":
			out = append(out, "raise max_file_size_mb or split large files before reading/writing")
		}
	}
	return out
}
