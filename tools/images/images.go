// Package images fetches illustration candidates through an ordered provider
// fallback chain: Unsplash, then Pexels, then a generated placeholder.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harwoodlabs/kingfisher/config"
)

// Image is a single fetched illustration reference.
type Image struct {
	URL      string `json:"url"`
	Alt      string `json:"alt,omitempty"`
	Credit   string `json:"credit,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Fetcher resolves image queries through the configured provider chain. Every
// query yields exactly one image; the placeholder provider cannot fail.
type Fetcher struct {
	order       []string
	unsplashKey string
	pexelsKey   string
	perProvider time.Duration
	perQuery    int
	offline     bool
	client      *http.Client
}

func NewFetcher(cfg config.ImagesConfig, offline bool) *Fetcher {
	order := strings.Split(cfg.ProviderOrder, ",")
	for i := range order {
		order[i] = strings.TrimSpace(order[i])
	}
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	perQuery := cfg.PerQuery
	if perQuery <= 0 {
		perQuery = 3
	}
	return &Fetcher{
		order:       order,
		unsplashKey: cfg.UnsplashKey,
		pexelsKey:   cfg.PexelsKey,
		perProvider: timeout,
		perQuery:    perQuery,
		offline:     offline,
		client:      &http.Client{Timeout: timeout},
	}
}

// Fetch tries each provider in order with a short per-provider timeout and
// returns the first hit, falling back to a deterministic placeholder so the
// result is never empty.
func (f *Fetcher) Fetch(ctx context.Context, query string) Image {
	for _, provider := range f.order {
		var (
			imgs []Image
			err  error
		)
		pctx, cancel := context.WithTimeout(ctx, f.perProvider)
		switch provider {
		case "unsplash":
			if !f.offline {
				imgs, err = f.searchUnsplash(pctx, query)
			}
		case "pexels":
			if !f.offline {
				imgs, err = f.searchPexels(pctx, query)
			}
		case "generate":
			imgs = []Image{placeholder(query)}
		}
		cancel()
		if err == nil && len(imgs) > 0 {
			return imgs[0]
		}
	}
	return placeholder(query)
}

func placeholder(query string) Image {
	return Image{
		URL:      "https://dummyimage.com/1200x800/111/fff&text=" + url.QueryEscape(query),
		Alt:      query,
		Credit:   "Generated",
		Provider: "generate",
	}
}

func (f *Fetcher) searchUnsplash(ctx context.Context, q string) ([]Image, error) {
	if f.unsplashKey == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("query", q)
	params.Set("per_page", fmt.Sprintf("%d", f.perQuery))
	params.Set("orientation", "landscape")
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.unsplash.com/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Client-ID "+f.unsplashKey)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash status %d", resp.StatusCode)
	}
	var raw struct {
		Results []struct {
			URLs struct {
				Regular string `json:"regular"`
			} `json:"urls"`
			AltDescription string `json:"alt_description"`
			User           struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []Image
	for _, it := range raw.Results {
		alt := it.AltDescription
		if alt == "" {
			alt = q
		}
		out = append(out, Image{URL: it.URLs.Regular, Alt: alt, Credit: it.User.Name, Provider: "unsplash"})
	}
	return out, nil
}

func (f *Fetcher) searchPexels(ctx context.Context, q string) ([]Image, error) {
	if f.pexelsKey == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("query", q)
	params.Set("per_page", fmt.Sprintf("%d", f.perQuery))
	params.Set("orientation", "landscape")
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.pexels.com/v1/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", f.pexelsKey)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels status %d", resp.StatusCode)
	}
	var raw struct {
		Photos []struct {
			Src struct {
				Large string `json:"large"`
			} `json:"src"`
			Alt          string `json:"alt"`
			Photographer string `json:"photographer"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []Image
	for _, it := range raw.Photos {
		alt := it.Alt
		if alt == "" {
			alt = q
		}
		out = append(out, Image{URL: it.Src.Large, Alt: alt, Credit: it.Photographer, Provider: "pexels"})
	}
	return out, nil
}
