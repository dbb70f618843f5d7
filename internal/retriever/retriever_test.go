package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/archon-run/archon/internal/ruleengine"
	"github.com/archon-run/archon/internal/vectorstore"
	"github.com/archon-run/archon/pkg/models"
)

func TestForTask_AlwaysReturnsAllRules(t *testing.T) {
	rules, _ := ruleengine.New(nil)
	rules.Add("deploy", models.TriggerContains, "careful!", 0)
	store := vectorstore.NewMemoryStore(nil)

	r := New(rules, store, Config{})
	bundle := r.ForTask(context.Background(), "anything")
	if len(bundle.Rules) != 1 {
		t.Fatalf("expected 1 rule in the bundle, got %d", len(bundle.Rules))
	}
}

func TestForTask_NilStoreDegradesToEmptyCollectionsButKeepsRules(t *testing.T) {
	rules, _ := ruleengine.New(nil)
	rules.Add("deploy", models.TriggerContains, "careful!", 0)

	r := New(rules, nil, Config{})
	bundle := r.ForTask(context.Background(), "deploy now")
	if len(bundle.Rules) != 1 {
		t.Errorf("expected rules to survive a nil vector store, got %d", len(bundle.Rules))
	}
	if bundle.Facts != nil || bundle.Experiences != nil {
		t.Error("expected empty collections when no vector store is configured")
	}
}

func TestForTask_QueriesEachCollection(t *testing.T) {
	store := vectorstore.NewMemoryStore(nil)
	ctx := context.Background()
	store.Upsert(ctx, models.CollectionFacts, "f1", "User's name is Budi", vectorstore.Metadata{})
	store.Upsert(ctx, models.CollectionExperiences, "e1", "wrote a script", vectorstore.Metadata{})

	r := New(nil, store, Config{TopKFacts: 2, TopKExperiences: 2})
	bundle := r.ForTask(ctx, "Budi")
	if len(bundle.Facts) != 1 {
		t.Errorf("expected 1 fact, got %d", len(bundle.Facts))
	}
	if len(bundle.Experiences) != 1 {
		t.Errorf("expected 1 experience, got %d", len(bundle.Experiences))
	}
}

func TestRender_OmitsEmptySections(t *testing.T) {
	bundle := Bundle{}
	out := Render(bundle)
	if out != "" {
		t.Errorf("expected empty render for an empty bundle, got %q", out)
	}
}

func TestRender_IncludesPopulatedSections(t *testing.T) {
	bundle := Bundle{
		Rules: []models.Rule{{Trigger: "deploy", TriggerKind: models.TriggerContains, Response: "careful!"}},
		Facts: []vectorstore.QueryResult{{Record: vectorstore.Record{Document: "User's name is Budi"}}},
	}
	out := Render(bundle)
	if !strings.Contains(out, "Known Rules") {
		t.Error("expected rules section header")
	}
	if !strings.Contains(out, "Facts About The User") {
		t.Error("expected facts section header")
	}
	if !strings.Contains(out, "User's name is Budi") {
		t.Error("expected fact document to be rendered")
	}
	if strings.Contains(out, "Lessons Learned") {
		t.Error("expected empty Lessons section to be omitted")
	}
}
