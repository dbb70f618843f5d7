package pentest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/archon-run/archon/pkg/models"
)

func TestHeaderAuditTool_ReportsPresentAndMissingHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=63072000")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tool := NewHeaderAuditTool(server.Client())
	args, _ := json.Marshal(map[string]any{"url": server.URL})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s: %s", result.Status, result.Error)
	}

	var report HeaderAuditReport
	if err := json.Unmarshal([]byte(result.Output), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	found := false
	for _, h := range report.Present {
		if h == "Strict-Transport-Security" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected HSTS in present headers, got %v", report.Present)
	}
	if len(report.Missing) == 0 {
		t.Error("expected at least one missing header to be reported")
	}
}

func TestHeaderAuditTool_RejectsNonHTTPURL(t *testing.T) {
	tool := NewHeaderAuditTool(nil)
	args, _ := json.Marshal(map[string]any{"url": "ftp://example.com"})
	result, _ := tool.Execute(context.Background(), args)
	if result.Status != models.StatusError {
		t.Errorf("expected ERROR for a non-HTTP URL, got %s", result.Status)
	}
}

func TestHeaderAuditTool_DangerClassIsSafe(t *testing.T) {
	tool := NewHeaderAuditTool(nil)
	if tool.DangerClass() != models.DangerSafe {
		t.Errorf("expected audit_security_headers to be SAFE, got %s", tool.DangerClass())
	}
}

func TestPortScanFormatterTool_ParsesAndAnnotatesRiskyPorts(t *testing.T) {
	tool := NewPortScanFormatterTool()
	args, _ := json.Marshal(map[string]any{"scan_output": "445/tcp microsoft-ds\n80/tcp http\n"})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s: %s", result.Status, result.Error)
	}

	var ports []OpenPort
	if err := json.Unmarshal([]byte(result.Output), &ports); err != nil {
		t.Fatalf("decode ports: %v", err)
	}
	if len(ports) != 2 {
		t.Fatalf("expected 2 parsed ports, got %d", len(ports))
	}
	if ports[0].Port != 80 || ports[1].Port != 445 {
		t.Errorf("expected ports sorted ascending, got %v", ports)
	}
	if ports[1].Risk == "" {
		t.Error("expected port 445 to carry a risk annotation")
	}
	if ports[0].Risk != "" {
		t.Error("expected port 80 to carry no risk annotation")
	}
}

func TestPortScanFormatterTool_IgnoresBlankAndMalformedLines(t *testing.T) {
	tool := NewPortScanFormatterTool()
	args, _ := json.Marshal(map[string]any{"scan_output": "\n   \nnot-a-port extra\n22/tcp ssh\n"})
	result, _ := tool.Execute(context.Background(), args)

	var ports []OpenPort
	if err := json.Unmarshal([]byte(result.Output), &ports); err != nil {
		t.Fatalf("decode ports: %v", err)
	}
	if len(ports) != 1 || ports[0].Port != 22 {
		t.Errorf("expected only the valid ssh line parsed, got %v", ports)
	}
}

func TestPortScanFormatterTool_DangerClassIsSafe(t *testing.T) {
	tool := NewPortScanFormatterTool()
	if tool.DangerClass() != models.DangerSafe {
		t.Errorf("expected format_port_scan to be SAFE, got %s", tool.DangerClass())
	}
}
