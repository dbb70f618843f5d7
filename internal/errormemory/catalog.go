package errormemory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/archon-run/archon/pkg/models"
)

// Severity ranks how disruptive a remediation's underlying failure is.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// ActionKind classifies the kind of follow-up a remediation implies.
type ActionKind string

const (
	ActionCreate     ActionKind = "CREATE"
	ActionValidate   ActionKind = "VALIDATE"
	ActionConfig     ActionKind = "CONFIG"
	ActionPermission ActionKind = "PERMISSION"
	ActionInstall    ActionKind = "INSTALL"
	ActionManual     ActionKind = "MANUAL"
)

// Remediation is the suggested follow-up for a matched error.
type Remediation struct {
	Suggestion  string
	Severity    Severity
	ActionKind  ActionKind
	AutoFixable bool
}

// Pattern matches a class of ErrorEvent by keyword and produces a
// templated Remediation with {placeholder} substitution from event.Meta.
type Pattern struct {
	Name     string
	Keywords []string
	Template string
	Severity Severity
	Action   ActionKind
	AutoFix  bool
}

// Matches reports whether every keyword in p appears in event.Error
// (case-insensitive). An empty Keywords list never matches.
func (p Pattern) Matches(event models.ErrorEvent) bool {
	if len(p.Keywords) == 0 {
		return false
	}
	lower := strings.ToLower(event.Error)
	for _, kw := range p.Keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

// Remediation renders p's template against event.Meta, substituting
// {key} placeholders with their stringified values.
func (p Pattern) Remediation(event models.ErrorEvent) *Remediation {
	return &Remediation{
		Suggestion:  substitute(p.Template, event.Meta),
		Severity:    p.Severity,
		ActionKind:  p.Action,
		AutoFixable: p.AutoFix,
	}
}

func substitute(template string, meta map[string]any) string {
	out := template
	for k, v := range meta {
		out = strings.ReplaceAll(out, "{"+k+"}", stringify(v))
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// DefaultCatalog is the ordered list of known failure patterns, checked
// first match wins. File/path errors precede shell/network errors since
// the file tools run far more often than shell tools.
func DefaultCatalog() []Pattern {
	return []Pattern{
		{
			Name:     "file_not_found",
			Keywords: []string{"no such file"},
			Template: "the path {path} does not exist; create it or list the parent directory before reading or writing it",
			Severity: SeverityLow,
			Action:   ActionCreate,
			AutoFix:  false,
		},
		{
			Name:     "file_too_large",
			Keywords: []string{"exceeds", "max"},
			Template: "{path} is {file_size} bytes, over the {max_size} byte limit; read it in chunks or raise max_file_size_mb",
			Severity: SeverityMedium,
			Action:   ActionConfig,
			AutoFix:  false,
		},
		{
			Name:     "permission_denied",
			Keywords: []string{"permission denied"},
			Template: "{path} is not writable by the current user; confirm the sandbox root and file ownership",
			Severity: SeverityHigh,
			Action:   ActionPermission,
			AutoFix:  false,
		},
		{
			Name:     "path_outside_sandbox",
			Keywords: []string{"outside", "sandbox"},
			Template: "{path} resolves outside the sandbox root; use a path relative to the workspace",
			Severity: SeverityHigh,
			Action:   ActionValidate,
			AutoFix:  false,
		},
		{
			Name:     "command_not_whitelisted",
			Keywords: []string{"not whitelisted"},
			Template: "the command {command} is not on the shell whitelist; request it be added or use an allowed equivalent",
			Severity: SeverityMedium,
			Action:   ActionConfig,
			AutoFix:  false,
		},
		{
			Name:     "tool_timeout",
			Keywords: []string{"timed out"},
			Template: "{tool} exceeded its timeout; retry with a narrower scope or raise tool_timeout",
			Severity: SeverityMedium,
			Action:   ActionConfig,
			AutoFix:  false,
		},
		{
			Name:     "rate_limited",
			Keywords: []string{"rate limit"},
			Template: "the provider rate limit was hit; back off and retry",
			Severity: SeverityLow,
			Action:   ActionManual,
			AutoFix:  true,
		},
		{
			Name:     "malformed_tool_call",
			Keywords: []string{"tool-use-failed"},
			Template: "the model emitted a malformed tool call; resend with an explicit schema reminder",
			Severity: SeverityMedium,
			Action:   ActionValidate,
			AutoFix:  true,
		},
		{
			Name:     "schema_validation",
			Keywords: []string{"schema", "invalid"},
			Template: "tool arguments failed schema validation; re-derive arguments from the tool's declared schema",
			Severity: SeverityMedium,
			Action:   ActionValidate,
			AutoFix:  false,
		},
	}
}

func genericFallback(event models.ErrorEvent) *Remediation {
	if event.Error == "" {
		return nil
	}
	return &Remediation{
		Suggestion:  "no known pattern matched; inspect the error text and tool metadata directly",
		Severity:    SeverityLow,
		ActionKind:  ActionManual,
		AutoFixable: false,
	}
}
