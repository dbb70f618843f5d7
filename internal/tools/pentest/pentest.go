// Package pentest provides SAFE helper tools for interpreting security
// scan output the user already has in hand. It never initiates network
// scans or active probing itself — only an HTTP header fetch against a
// caller-supplied URL and a pure-text formatter over caller-supplied
// scan results.
package pentest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

var recommendedHeaders = map[string]string{
	"Strict-Transport-Security": "enforces HTTPS; absence allows downgrade attacks",
	"Content-Security-Policy":   "restricts script/resource origins; absence widens XSS blast radius",
	"X-Content-Type-Options":    "prevents MIME sniffing; should be \"nosniff\"",
	"X-Frame-Options":           "mitigates clickjacking; should be DENY or SAMEORIGIN",
	"Referrer-Policy":           "controls referrer leakage across origins",
}

// HeaderAuditTool fetches a URL's response headers and reports which
// well-known security headers are present or missing. It performs a
// single GET request — no port scanning, fuzzing, or payload injection.
type HeaderAuditTool struct {
	client *http.Client
}

// NewHeaderAuditTool creates a header-audit tool.
func NewHeaderAuditTool(client *http.Client) *HeaderAuditTool {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HeaderAuditTool{client: client}
}

func (t *HeaderAuditTool) Name() string        { return "audit_security_headers" }
func (t *HeaderAuditTool) Description() string {
	return "Fetch a URL's response headers and report which common security headers are present or missing."
}
func (t *HeaderAuditTool) DangerClass() models.DangerClass { return models.DangerSafe }

func (t *HeaderAuditTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"url": map[string]any{"type": "string", "description": "URL to audit."}},
		"required":   []string{"url"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *HeaderAuditTool) Validate(args json.RawMessage) error {
	return tools.ValidateAgainstSchema(t.Schema(), args)
}

type headerAuditArgs struct {
	URL string `json:"url"`
}

// HeaderAuditReport is the structured finding set for one URL.
type HeaderAuditReport struct {
	URL     string   `json:"url"`
	Present []string `json:"present"`
	Missing []string `json:"missing"`
	Notes   []string `json:"notes"`
}

func (t *HeaderAuditTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var in headerAuditArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "invalid arguments: " + err.Error()}, nil
	}
	if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
		return &models.ToolResult{Status: models.StatusError, Error: "url must start with http:// or https://"}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error()}, nil
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	report := HeaderAuditReport{URL: in.URL}
	for name, note := range recommendedHeaders {
		if resp.Header.Get(name) != "" {
			report.Present = append(report.Present, name)
		} else {
			report.Missing = append(report.Missing, name)
			report.Notes = append(report.Notes, fmt.Sprintf("%s: %s", name, note))
		}
	}
	sort.Strings(report.Present)
	sort.Strings(report.Missing)

	body, err := json.Marshal(report)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "encode report: " + err.Error()}, nil
	}
	return &models.ToolResult{Status: models.StatusSuccess, Output: string(body)}, nil
}
