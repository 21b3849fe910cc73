package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.General.AppName != "kingfisher" {
		t.Fatalf("app name: %q", cfg.General.AppName)
	}
	if cfg.General.DefaultPlace != "Clarence River, NSW" {
		t.Fatalf("default place: %q", cfg.General.DefaultPlace)
	}
	if cfg.Tools.CallTimeout != 10*time.Second || cfg.Tools.GlobalBudget != 25*time.Second {
		t.Fatalf("tool budgets: %+v", cfg.Tools)
	}
	if cfg.Cache.Backend != "memory" || cfg.Cache.TTL != 30*time.Minute {
		t.Fatalf("cache defaults: %+v", cfg.Cache)
	}
	if cfg.Images.ProviderOrder != "unsplash,pexels,generate" {
		t.Fatalf("image chain: %q", cfg.Images.ProviderOrder)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("KINGFISHER_TOOLS_OFFLINE", "true")
	t.Setenv("KINGFISHER_LLM_MODEL", "gpt-4o")
	t.Setenv("KINGFISHER_SERVER_ADDRESS", ":9999")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Tools.Offline {
		t.Fatalf("offline override not applied")
	}
	if cfg.LLM.Model != "gpt-4o" || cfg.Server.Address != ":9999" {
		t.Fatalf("env overrides: %+v %+v", cfg.LLM, cfg.Server)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
general:
  timezone: Australia/Brisbane
tools:
  call_timeout: 2s
  global_budget: 8s
  search:
    provider: serper
cache:
  backend: memory
  ttl: 5m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.General.Timezone != "Australia/Brisbane" {
		t.Fatalf("timezone: %q", cfg.General.Timezone)
	}
	if cfg.Tools.CallTimeout != 2*time.Second || cfg.Tools.GlobalBudget != 8*time.Second {
		t.Fatalf("budgets: %+v", cfg.Tools)
	}
	if cfg.Tools.Search.Provider != "serper" {
		t.Fatalf("search provider: %q", cfg.Tools.Search.Provider)
	}
}

func TestLoadConfigRejectsBudgetInversion(t *testing.T) {
	t.Setenv("KINGFISHER_TOOLS_GLOBAL_BUDGET", "5s")
	// default call_timeout is 10s, so the global budget is smaller
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected budget inversion to be rejected")
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("KINGFISHER_CACHE_BACKEND", "memcached")
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected unknown cache backend to be rejected")
	}
}

func TestLoadConfigRejectsUnknownSearchProvider(t *testing.T) {
	t.Setenv("KINGFISHER_TOOLS_SEARCH_PROVIDER", "bing")
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected unknown search provider to be rejected")
	}
}
