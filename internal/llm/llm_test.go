package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harwoodlabs/kingfisher/config"
)

func testProvider(t *testing.T, handler http.HandlerFunc) (*OpenAIProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	p, err := NewOpenAIProvider(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		srv.Close()
		t.Fatalf("NewOpenAIProvider: %v", err)
	}
	return p, srv
}

func TestGenerateSendsSchemaAndParsesContent(t *testing.T) {
	var gotBody map[string]any
	p, srv := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": `{"ok":true}`}}},
		})
	})
	defer srv.Close()

	out, err := p.Generate(context.Background(), "sys", "user", map[string]any{
		"json_schema": `{"type":"object"}`,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("unexpected content %q", out)
	}
	if _, ok := gotBody["response_format"]; !ok {
		t.Fatalf("expected response_format in request, got %v", gotBody)
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %v", msgs)
	}
}

func TestGenerateUpstreamErrorSurfaced(t *testing.T) {
	p, srv := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
	})
	defer srv.Close()

	if _, err := p.Generate(context.Background(), "", "hi", nil); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestPing(t *testing.T) {
	p, srv := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	defer srv.Close()

	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNewOpenAIProviderRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewOpenAIProvider(config.LLMConfig{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
