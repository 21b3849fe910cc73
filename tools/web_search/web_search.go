package web_search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/harwoodlabs/kingfisher/config"
	"github.com/harwoodlabs/kingfisher/internal/cache"
	"github.com/harwoodlabs/kingfisher/tools"
	"github.com/harwoodlabs/kingfisher/tools/web_search/brave"
	"github.com/harwoodlabs/kingfisher/tools/web_search/models"
	"github.com/harwoodlabs/kingfisher/tools/web_search/serper"
)

// WebSearcher is an interchangeable web search provider.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// Payload is what a search call yields: ranked results that double as
// citation sources.
type Payload struct {
	Results []models.Result `json:"results"`
}

// SearchTool exposes web search through the tool registry, with a TTL cache
// in front of the provider and a deterministic stub in offline mode.
type SearchTool struct {
	searcher   WebSearcher
	cache      cache.Cache
	ttl        time.Duration
	offline    bool
	maxResults int
	logger     *log.Logger
}

// NewSearchTool wires a search tool from config.
func NewSearchTool(cfg config.SearchConfig, c cache.Cache, ttl time.Duration, offline bool) (*SearchTool, error) {
	var searcher WebSearcher
	if !offline {
		var err error
		searcher, err = NewWebSearcher(Provider(cfg.Provider), cfg.APIKey)
		if err != nil {
			return nil, err
		}
	}
	k := cfg.MaxResults
	if k <= 0 {
		k = 3
	}
	return &SearchTool{
		searcher:   searcher,
		cache:      c,
		ttl:        ttl,
		offline:    offline,
		maxResults: k,
		logger:     log.New(log.Writer(), "[SEARCH] ", log.LstdFlags),
	}, nil
}

func (t *SearchTool) Kind() tools.Kind { return tools.KindSearch }

func (t *SearchTool) Call(ctx context.Context, params map[string]any) (any, error) {
	q, _ := params["q"].(string)
	if q == "" {
		q, _ = params["query"].(string)
	}
	if q == "" {
		return nil, fmt.Errorf("search requires a q parameter")
	}
	if len(q) > 100 {
		q = q[:100]
	}

	key := tools.CallKey(tools.KindSearch, map[string]any{"q": q})
	if b, ok := t.cache.Get(ctx, key); ok {
		var p Payload
		if err := json.Unmarshal(b, &p); err == nil {
			return p, nil
		}
	}

	if t.offline {
		p := stubPayload(q)
		t.store(ctx, key, p)
		return p, nil
	}

	results, err := t.searcher.Discover(ctx, q, t.maxResults)
	if err != nil {
		return nil, err
	}
	p := Payload{Results: results}
	t.store(ctx, key, p)
	return p, nil
}

func (t *SearchTool) store(ctx context.Context, key string, p Payload) {
	b, err := json.Marshal(p)
	if err != nil {
		t.logger.Printf("marshal cache entry: %v", err)
		return
	}
	t.cache.Set(ctx, key, b, t.ttl)
}

func stubPayload(q string) Payload {
	return Payload{Results: []models.Result{{
		Title:   "Test Result for " + q,
		URL:     "https://example.com/test",
		Snippet: "This is a test search result for: " + q,
	}}}
}
