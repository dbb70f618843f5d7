// Package websearch provides a read-only web search tool backed by
// DuckDuckGo's HTML endpoint, with a short-lived result cache.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/archon-run/archon/internal/tools"
	"github.com/archon-run/archon/pkg/models"
)

// Config configures the search tool.
type Config struct {
	DefaultResultCount int
	CacheTTL           time.Duration
	HTTPClient         *http.Client
}

type cacheEntry struct {
	response  Response
	expiresAt time.Time
}

// Tool is a SAFE, read-only web search tool.
type Tool struct {
	cfg    Config
	client *http.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates a web search tool.
func New(cfg Config) *Tool {
	if cfg.DefaultResultCount <= 0 {
		cfg.DefaultResultCount = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Tool{cfg: cfg, client: client, cache: make(map[string]cacheEntry)}
}

func (t *Tool) Name() string                   { return "web_search" }
func (t *Tool) Description() string            { return "Search the public web and return titles, URLs, and snippets." }
func (t *Tool) DangerClass() models.DangerClass { return models.DangerSafe }

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":        map[string]any{"type": "string", "description": "Search query."},
			"result_count": map[string]any{"type": "integer", "description": "Number of results to return.", "minimum": 1, "maximum": 20},
		},
		"required": []string{"query"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Validate(args json.RawMessage) error {
	return tools.ValidateAgainstSchema(t.Schema(), args)
}

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Response is the full search response, returned to the model as JSON.
type Response struct {
	Query       string   `json:"query"`
	Results     []Result `json:"results"`
	ResultCount int      `json:"result_count"`
}

type searchArgs struct {
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (*models.ToolResult, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "invalid arguments: " + err.Error()}, nil
	}
	if in.Query == "" {
		return &models.ToolResult{Status: models.StatusError, Error: "query must not be empty"}, nil
	}
	count := in.ResultCount
	if count <= 0 {
		count = t.cfg.DefaultResultCount
	}

	if cached, ok := t.lookupCache(in.Query); ok {
		return asResult(cached), nil
	}

	resp, err := t.search(ctx, in.Query, count)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: err.Error()}, nil
	}
	t.storeCache(in.Query, resp)
	return asResult(resp), nil
}

func asResult(resp Response) *models.ToolResult {
	body, err := json.Marshal(resp)
	if err != nil {
		return &models.ToolResult{Status: models.StatusError, Error: "encode response: " + err.Error()}
	}
	return &models.ToolResult{Status: models.StatusSuccess, Output: string(body)}
}

func (t *Tool) lookupCache(query string) (Response, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.cache[query]
	if !ok || time.Now().After(entry.expiresAt) {
		return Response{}, false
	}
	return entry.response, true
}

func (t *Tool) storeCache(query string, resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache[query] = cacheEntry{response: resp, expiresAt: time.Now().Add(t.cfg.CacheTTL)}
}

var resultPattern = regexp.MustCompile(`(?s)<a rel="nofollow" class="result__a" href="([^"]+)">(.*?)</a>.*?<a class="result__snippet"[^>]*>(.*?)</a>`)
var tagStripper = regexp.MustCompile(`<[^>]+>`)

func (t *Tool) search(ctx context.Context, query string, count int) (Response, error) {
	endpoint := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "archon-run/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	matches := resultPattern.FindAllStringSubmatch(string(body), count)
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		results = append(results, Result{
			URL:     m[1],
			Title:   cleanHTML(m[2]),
			Snippet: cleanHTML(m[3]),
		})
	}

	return Response{Query: query, Results: results, ResultCount: len(results)}, nil
}

func cleanHTML(s string) string {
	return tagStripper.ReplaceAllString(s, "")
}
