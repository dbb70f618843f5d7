package pentest

import (
	"bufio"
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

var knownRiskyPorts = map[int]string{
	21:   "FTP: often plaintext credentials",
	23:   "Telnet: unencrypted remote shell",
	25:   "SMTP: potential open relay",
	445:  "SMB: common ransomware propagation vector",
	3389: "RDP: frequent brute-force target",
	6379: "Redis: often unauthenticated by default",
	9200: "Elasticsearch: often unauthenticated by default",
}

// PortScanFormatterTool summarizes scan output the caller already
// collected (e.g. from nmap) into an open-port table with well-known
// risk annotations. It never runs a scan itself.
type PortScanFormatterTool struct{}

// NewPortScanFormatterTool creates a port-scan-result formatter tool.
func NewPortScanFormatterTool() *PortScanFormatterTool {
	return &PortScanFormatterTool{}
}

func (t *PortScanFormatterTool) Name() string { return "format_port_scan" }
func (t *PortScanFormatterTool) Description() string {
	return "Summarize caller-supplied port scan output (\"port/proto service\" or \"port service\" lines) into an annotated table. Does not perform any scanning."
}
func (t *PortScanFormatterTool) DangerClass() models.DangerClass { return models.DangerSafe }

func (t *PortScanFormatterTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scan_output": map[string]any{
				"type":        "string",
				"description": "Raw scan output, one open port per line as \"port/proto service\" or \"port service\".",
			},
		},
		"required": []string{"scan_output"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *PortScanFormatterTool) Validate(args json.RawMessage) error {
	return tools.ValidateAgainstSchema(t.Schema(), args)
}

type portScanArgs struct {
	ScanOutput string `json:"scan_output"`
}

// OpenPort is one parsed line of scan output.
type OpenPort struct {
	Port    int    `json:"port"`
	Proto   string `json:"proto,omitempty"`
	Service string `json:"service,omitempty"`
	Risk    string `json:"risk,omitempty"`
}

func (t *PortScanFormatterTool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var in portScanArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "invalid arguments: " + err.Error()}, nil
	}

	ports := parsePorts(in.ScanOutput)
	sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })

	body, err := json.Marshal(ports)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "encode report: " + err.Error()}, nil
	}
	return &models.ToolResult{Status: models.StatusSuccess, Output: string(body)}, nil
}

func parsePorts(raw string) []OpenPort {
	var ports []OpenPort
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		portField := fields[0]
		proto := ""
		if idx := strings.Index(portField, "/"); idx != -1 {
			proto = portField[idx+1:]
			portField = portField[:idx]
		}
		port, err := strconv.Atoi(portField)
		if err != nil {
			continue
		}

		service := ""
		if len(fields) > 1 {
			service = strings.Join(fields[1:], " ")
		}

		risk := ""
		if note, known := knownRiskyPorts[port]; known {
			risk = note
		}

		ports = append(ports, OpenPort{Port: port, Proto: proto, Service: service, Risk: risk})
	}
	return ports
}
