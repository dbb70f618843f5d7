package errormemory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/archon-run/archon/pkg/models"
)

// auditLogger mirrors every logged ErrorEvent to an append-only JSON-lines
// file (spec §6 Persistent state layout: .errors/error_logs.json), kept
// independent of whatever VectorStore backend is configured. A nil
// *auditLogger is never dereferenced by callers that guard with a nil
// check, matching contextlog.Logger's best-effort pattern.
type auditLogger struct {
	mu   sync.Mutex
	path string
}

func newAuditLogger(path string) (*auditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("errormemory: create audit directory: %w", err)
	}
	return &auditLogger{path: path}, nil
}

func (l *auditLogger) append(event models.ErrorEvent) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("errormemory: open audit log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("errormemory: marshal audit entry: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("errormemory: write audit entry: %w", err)
	}
	return nil
}
