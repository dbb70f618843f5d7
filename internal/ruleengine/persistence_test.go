package ruleengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/archon-run/archon/pkg/models"
)

func TestFilePersistence_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := &FilePersistence{Path: filepath.Join(dir, "nested", "rules.json")}

	rules := []models.Rule{
		{ID: "1", Trigger: "hello", TriggerKind: models.TriggerExact, Response: "hi"},
		{ID: "2", Trigger: "deploy", TriggerKind: models.TriggerContains, Response: "careful", Priority: 5},
	}
	if err := p.Save(rules); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := p.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(loaded) != len(rules) {
		t.Fatalf("got %d rules, want %d", len(loaded), len(rules))
	}
	if loaded[0].Trigger != "hello" || loaded[1].Trigger != "deploy" {
		t.Errorf("unexpected round-tripped rules: %+v", loaded)
	}
}

func TestFilePersistence_LoadMissingFileReturnsEmpty(t *testing.T) {
	p := &FilePersistence{Path: filepath.Join(t.TempDir(), "does-not-exist.json")}
	rules, err := p.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if rules != nil {
		t.Errorf("expected nil rules for a missing file, got %+v", rules)
	}
}

func TestFilePersistence_LoadCorruptFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := &FilePersistence{Path: path}
	rules, err := p.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if rules != nil {
		t.Errorf("expected nil rules for a corrupt file, got %+v", rules)
	}
}

func TestFilePersistence_SaveDoesNotLeaveTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	p := &FilePersistence{Path: path}
	if err := p.Save([]models.Rule{{ID: "1"}}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected the temp file to be renamed away, not left behind")
	}
}
