// Package retriever builds the typed context bundle injected into the
// system prompt before the first LLM call of a task.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/archon-run/archon/internal/ruleengine"
	"github.com/archon-run/archon/internal/vectorstore"
	"github.com/archon-run/archon/pkg/models"
)

// Config bounds how many semantically-similar records of each collection
// are pulled into a Bundle.
type Config struct {
	TopKFacts       int
	TopKExperiences int
	TopKLessons     int
	TopKStrategies  int
}

// Retriever assembles Bundles from the RuleEngine (all rules, always) and
// the VectorStore (top-k per collection, by semantic similarity).
type Retriever struct {
	rules *ruleengine.Engine
	store vectorstore.Store
	cfg   Config
}

// New creates a Retriever over the given RuleEngine and VectorStore.
func New(rules *ruleengine.Engine, store vectorstore.Store, cfg Config) *Retriever {
	return &Retriever{rules: rules, store: store, cfg: cfg}
}

// Bundle is the typed context assembled for one task.
type Bundle struct {
	Rules       []models.Rule
	Facts       []vectorstore.QueryResult
	Experiences []vectorstore.QueryResult
	Lessons     []vectorstore.QueryResult
	Strategies  []vectorstore.QueryResult
}

// ForTask assembles a Bundle for the given task string. Rules are always
// returned in full; other collections degrade to empty lists (not an
// error) if the similarity backend is unavailable.
func (r *Retriever) ForTask(ctx context.Context, task string) Bundle {
	bundle := Bundle{}
	if r.rules != nil {
		bundle.Rules = r.rules.All()
	}
	if r.store == nil {
		return bundle
	}

	bundle.Facts, _ = r.store.Query(ctx, models.CollectionFacts, task, orDefault(r.cfg.TopKFacts, 5))
	bundle.Experiences, _ = r.store.Query(ctx, models.CollectionExperiences, task, orDefault(r.cfg.TopKExperiences, 5))
	bundle.Lessons, _ = r.store.Query(ctx, models.CollectionLessons, task, orDefault(r.cfg.TopKLessons, 3))
	bundle.Strategies, _ = r.store.Query(ctx, models.CollectionStrategies, task, orDefault(r.cfg.TopKStrategies, 3))
	return bundle
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// Render produces a stable, labeled block suitable for injection into the
// system prompt. Sections are omitted when empty so an unpopulated bundle
// does not pad the prompt with empty headers.
func Render(bundle Bundle) string {
	var sb strings.Builder

	if len(bundle.Rules) > 0 {
		sb.WriteString("## Known Rules\n")
		for _, rule := range bundle.Rules {
			fmt.Fprintf(&sb, "- if %q (%s) then %q\n", rule.Trigger, rule.TriggerKind, rule.Response)
		}
		sb.WriteString("\n")
	}

	renderSection(&sb, "Facts About The User", bundle.Facts)
	renderSection(&sb, "Relevant Past Experiences", bundle.Experiences)
	renderSection(&sb, "Lessons Learned", bundle.Lessons)
	renderSection(&sb, "Known Strategies", bundle.Strategies)

	return strings.TrimSpace(sb.String())
}

func renderSection(sb *strings.Builder, title string, results []vectorstore.QueryResult) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n", title)
	for _, res := range results {
		fmt.Fprintf(sb, "- %s\n", res.Document)
	}
	sb.WriteString("\n")
}
