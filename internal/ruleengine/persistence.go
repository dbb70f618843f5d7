package ruleengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archon-run/archon/pkg/models"
)

// FilePersistence stores the rule list as a single JSON file
// (.memory/rules.json), rewritten atomically via a write-to-temp-then-rename
// so a crash mid-write never corrupts the live file.
type FilePersistence struct {
	Path string
}

var _ Persistence = (*FilePersistence)(nil)

// Load reads the persisted rule list. A missing or corrupt file yields an
// empty list rather than an error.
func (p *FilePersistence) Load() ([]models.Rule, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil
	}
	var rules []models.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, nil
	}
	return rules, nil
}

// Save atomically rewrites the rule list file.
func (p *FilePersistence) Save(rules []models.Rule) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("ruleengine: create directory: %w", err)
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("ruleengine: marshal rules: %w", err)
	}
	tmp := p.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("ruleengine: write temp file: %w", err)
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		return fmt.Errorf("ruleengine: rename temp file: %w", err)
	}
	return nil
}
