package images

import (
	"context"
	"strings"
	"testing"

	"github.com/harwoodlabs/kingfisher/config"
)

func TestFetchOfflineFallsBackToPlaceholder(t *testing.T) {
	f := NewFetcher(config.ImagesConfig{ProviderOrder: "unsplash,pexels,generate"}, true)
	img := f.Fetch(context.Background(), "clarence river sunset")
	if img.Provider != "generate" {
		t.Fatalf("expected generate provider, got %q", img.Provider)
	}
	if !strings.Contains(img.URL, "clarence+river+sunset") {
		t.Fatalf("placeholder url should carry the query: %s", img.URL)
	}
	if img.Alt != "clarence river sunset" {
		t.Fatalf("unexpected alt: %q", img.Alt)
	}
}

func TestFetchNeverReturnsEmpty(t *testing.T) {
	// Chain without a generate entry still yields a placeholder.
	f := NewFetcher(config.ImagesConfig{ProviderOrder: "unsplash,pexels"}, true)
	img := f.Fetch(context.Background(), "bait rig")
	if img.URL == "" {
		t.Fatalf("image fetch must always yield a url")
	}
}

func TestFetchDeterministicOffline(t *testing.T) {
	f := NewFetcher(config.ImagesConfig{ProviderOrder: "generate"}, true)
	a := f.Fetch(context.Background(), "q")
	b := f.Fetch(context.Background(), "q")
	if a != b {
		t.Fatalf("offline fetch must be deterministic: %+v vs %+v", a, b)
	}
}
