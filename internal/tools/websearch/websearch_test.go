package websearch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/archon-run/archon/pkg/models"
)

const sampleHTML = `
<div class="result">
  <a rel="nofollow" class="result__a" href="https://example.com/a">Example <b>A</b></a>
  <a class="result__snippet">First snippet</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://example.com/b">Example B</a>
  <a class="result__snippet">Second snippet</a>
</div>
`

// TestResultPattern_ParsesAndStripsTags exercises the regex/clean pipeline
// search() runs against a DuckDuckGo HTML response, independent of the
// network call itself (search()'s endpoint is hardcoded, not injectable).
func TestResultPattern_ParsesAndStripsTags(t *testing.T) {
	matches := resultPattern.FindAllStringSubmatch(sampleHTML, 5)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{URL: m[1], Title: cleanHTML(m[2]), Snippet: cleanHTML(m[3])})
	}
	if results[0].URL != "https://example.com/a" {
		t.Errorf("expected first result URL, got %q", results[0].URL)
	}
	if results[0].Title != "Example A" {
		t.Errorf("expected HTML tags stripped from title, got %q", results[0].Title)
	}
	if results[1].Snippet != "Second snippet" {
		t.Errorf("expected second snippet, got %q", results[1].Snippet)
	}
}

func TestExecute_RejectsEmptyQuery(t *testing.T) {
	tool := New(Config{})
	args, _ := json.Marshal(map[string]any{"query": ""})
	result, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != models.StatusError {
		t.Errorf("expected ERROR for an empty query, got %s", result.Status)
	}
}

func TestCache_StoresAndExpires(t *testing.T) {
	tool := New(Config{CacheTTL: 10 * time.Millisecond})
	resp := Response{Query: "golang", Results: []Result{{Title: "t"}}}
	tool.storeCache("golang", resp)

	if cached, ok := tool.lookupCache("golang"); !ok || cached.Query != "golang" {
		t.Fatal("expected a fresh cache hit")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := tool.lookupCache("golang"); ok {
		t.Error("expected the cache entry to expire")
	}
}

func TestDangerClassIsSafe(t *testing.T) {
	tool := New(Config{})
	if tool.DangerClass() != models.DangerSafe {
		t.Errorf("expected web_search to be SAFE, got %s", tool.DangerClass())
	}
}

func TestValidate_RejectsMissingQuery(t *testing.T) {
	tool := New(Config{})
	if err := tool.Validate(json.RawMessage(`{}`)); err == nil {
		t.Error("expected validation to fail without a query")
	}
}
