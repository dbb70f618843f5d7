package tools

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/archon-run/archon/internal/config"
	"github.com/archon-run/archon/pkg/models"
)

// Guard enforces sandbox and sudo restrictions on tool arguments before
// dispatch. It inspects the common "path" and "command" argument keys by
// convention rather than requiring every tool to implement a shared
// interface, so a new file or shell tool is covered automatically.
type Guard struct {
	sandbox config.SandboxConfig
	sudo    config.SudoConfig
}

// NewGuard creates a Guard from sandbox and sudo configuration.
func NewGuard(sandbox config.SandboxConfig, sudo config.SudoConfig) *Guard {
	return &Guard{sandbox: sandbox, sudo: sudo}
}

type pathArgs struct {
	Path string `json:"path"`
}

type commandArgs struct {
	Command string `json:"command"`
	Sudo    bool   `json:"sudo"`
}

// Check inspects a tool call's arguments against sandbox and sudo policy.
// It returns (reason, true) when the call must be blocked.
func (g *Guard) Check(tool models.Tool, args json.RawMessage) (string, bool) {
	if g == nil {
		return "", false
	}

	if g.sandbox.Enabled {
		var p pathArgs
		if err := json.Unmarshal(args, &p); err == nil && p.Path != "" {
			if reason, blocked := g.checkPath(tool, p.Path); blocked {
				return reason, true
			}
		}
	}

	var c commandArgs
	if err := json.Unmarshal(args, &c); err == nil && c.Command != "" {
		if reason, blocked := g.checkCommand(c.Command); blocked {
			return reason, true
		}
		if c.Sudo {
			if reason, blocked := g.checkSudo(c.Command); blocked {
				return reason, true
			}
		}
	}

	return "", false
}

// checkPath hard-blocks blocked_paths/allowed_extensions violations for
// every tool. A path that resolves outside the sandbox root is only
// hard-blocked for non-SAFE tools; a SAFE (read) tool is instead left to
// the reasoner, which elevates it to an ASK confirmation via OutsideRoot.
func (g *Guard) checkPath(tool models.Tool, path string) (string, bool) {
	absPath, outsideRoot, err := g.resolvePath(path)
	if err != nil {
		return err.Error(), true
	}
	danger := models.DangerMutating
	if tool != nil {
		danger = tool.DangerClass()
	}
	if outsideRoot && danger != models.DangerSafe {
		return "path " + path + " resolves outside the sandbox root", true
	}

	for _, blocked := range g.sandbox.BlockedPaths {
		if blocked != "" && strings.Contains(absPath, blocked) {
			return "path " + path + " matches a blocked pattern", true
		}
	}

	if len(g.sandbox.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(path))
		allowed := false
		for _, a := range g.sandbox.AllowedExtensions {
			if strings.ToLower(a) == ext {
				allowed = true
				break
			}
		}
		if !allowed {
			return "extension " + ext + " is not in the allowed_extensions list", true
		}
	}

	return "", false
}

// resolvePath resolves path against the sandbox root and reports whether it
// falls outside that root.
func (g *Guard) resolvePath(path string) (absPath string, outsideRoot bool, err error) {
	root := g.sandbox.WorkingDirectory
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", false, fmt.Errorf("cannot resolve sandbox root")
	}
	absPath, err = filepath.Abs(filepath.Join(root, path))
	if filepath.IsAbs(path) {
		absPath, err = filepath.Abs(path)
	}
	if err != nil {
		return "", false, fmt.Errorf("cannot resolve path: %s", path)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	outsideRoot = err != nil || strings.HasPrefix(rel, "..")
	return absPath, outsideRoot, nil
}

// OutsideRoot reports whether path resolves outside the sandbox root when
// sandbox_mode is enabled. The reasoner uses this to elevate an otherwise
// SAFE read of an out-of-root path to an ASK confirmation, since Guard
// itself no longer hard-blocks that case for SAFE tools.
func (g *Guard) OutsideRoot(path string) bool {
	if g == nil || !g.sandbox.Enabled || path == "" {
		return false
	}
	_, outside, err := g.resolvePath(path)
	return err == nil && outside
}

func (g *Guard) checkCommand(command string) (string, bool) {
	if len(g.sandbox.CommandWhitelist) == 0 {
		return "", false
	}
	head := strings.Fields(command)
	if len(head) == 0 {
		return "empty command", true
	}
	for _, allowed := range g.sandbox.CommandWhitelist {
		if allowed == head[0] {
			return "", false
		}
	}
	return "command " + head[0] + " is not whitelisted", true
}

func (g *Guard) checkSudo(command string) (string, bool) {
	if !g.sudo.SuperuserMode {
		return "superuser mode is disabled", true
	}
	for _, blocked := range g.sudo.DangerousCommandsBlocklist {
		if blocked != "" && strings.Contains(command, blocked) {
			return "command matches the dangerous commands blocklist", true
		}
	}
	if len(g.sudo.SudoWhitelist) == 0 {
		return "", false
	}
	head := strings.Fields(command)
	if len(head) == 0 {
		return "empty command", true
	}
	for _, allowed := range g.sudo.SudoWhitelist {
		if allowed == head[0] {
			return "", false
		}
	}
	return "command " + head[0] + " is not on the sudo whitelist", true
}
