package web_search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/harwoodlabs/kingfisher/config"
	"github.com/harwoodlabs/kingfisher/internal/cache"
	"github.com/harwoodlabs/kingfisher/tools/web_search/models"
)

type countingSearcher struct {
	calls   int
	results []models.Result
}

func (c *countingSearcher) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	c.calls++
	return c.results, nil
}

func newTestTool(t *testing.T, searcher WebSearcher, offline bool) *SearchTool {
	t.Helper()
	tool, err := NewSearchTool(config.SearchConfig{Provider: "brave", MaxResults: 3}, cache.NewMemory(10), time.Minute, offline)
	if err != nil {
		t.Fatalf("NewSearchTool: %v", err)
	}
	if searcher != nil {
		tool.searcher = searcher
	}
	return tool
}

func TestSearchToolCachesResults(t *testing.T) {
	searcher := &countingSearcher{results: []models.Result{{Title: "Flathead rigs", URL: "https://example.com/rigs"}}}
	tool := newTestTool(t, searcher, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		payload, err := tool.Call(ctx, map[string]any{"q": "flathead rigs"})
		if err != nil {
			t.Fatalf("Call: %v", err)
		}
		p := payload.(Payload)
		if len(p.Results) != 1 || p.Results[0].URL != "https://example.com/rigs" {
			t.Fatalf("unexpected payload: %+v", p)
		}
	}
	if searcher.calls != 1 {
		t.Fatalf("expected one provider call, got %d", searcher.calls)
	}
}

func TestSearchToolOfflineStub(t *testing.T) {
	tool := newTestTool(t, nil, true)
	payload, err := tool.Call(context.Background(), map[string]any{"q": "tide times yamba"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	p := payload.(Payload)
	if len(p.Results) == 0 || !strings.Contains(p.Results[0].Title, "tide times yamba") {
		t.Fatalf("unexpected stub payload: %+v", p)
	}
}

func TestSearchToolRequiresQuery(t *testing.T) {
	tool := newTestTool(t, nil, true)
	if _, err := tool.Call(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected error for missing query")
	}
}

func TestNewWebSearcherUnsupported(t *testing.T) {
	if _, err := NewWebSearcher("bing", "key"); err != ErrUnsupportedProvider {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
