package chat

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/harwoodlabs/kingfisher/tools"
	"github.com/harwoodlabs/kingfisher/tools/weather"
	"github.com/harwoodlabs/kingfisher/tools/web_search"
)

// conditionKeywords marks plan-card steps that describe external facts and
// should carry search citations. Matching is a case-insensitive substring
// test against the step title.
var conditionKeywords = []string{"condition", "weather", "tide", "forecast"}

// Merge combines a frozen Plan with the terminal tool results and fetched
// images into a Result. It is pure, deterministic and idempotent: inputs are
// never mutated, annotations are append-only, and re-applying the same
// results to an already-merged card set changes nothing.
func Merge(plan Plan, results map[string]ToolResult, imgs []ImageRef) Result {
	plan.normalize()
	cards := cloneCards(plan.Cards)

	citations := searchCitations(results)
	attachCitations(cards, citations)
	appendConditions(cards, results)
	fillImages(cards, imgs)

	return Result{
		Text:            plan.Text,
		Cards:           cards,
		ToolCalls:       requestedTools(plan),
		NeedsFreshFacts: plan.NeedsFreshFacts,
	}
}

// searchCitations collects citations from every successful search result,
// keeping only absolute URLs and deduplicating across results. Ordering is
// stable: results are visited in sorted key order.
func searchCitations(results map[string]ToolResult) []Citation {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Citation
	seen := make(map[string]bool)
	for _, k := range keys {
		r := results[k]
		if r.Tool != tools.KindSearch || !r.OK {
			continue
		}
		payload, ok := r.Payload.(web_search.Payload)
		if !ok {
			continue
		}
		for _, hit := range payload.Results {
			u, err := url.Parse(hit.URL)
			if err != nil || !u.IsAbs() {
				continue
			}
			if seen[hit.URL] {
				continue
			}
			seen[hit.URL] = true
			out = append(out, Citation{URL: hit.URL, Title: hit.Title, Snippet: hit.Snippet})
		}
	}
	return out
}

func attachCitations(cards []Card, citations []Citation) {
	if len(citations) == 0 {
		return
	}
	for i := range cards {
		card := &cards[i]
		switch card.Kind {
		case CardConcept, CardReference:
			card.Citations = appendNewCitations(card.Citations, citations)
		case CardPlan:
			for j := range card.Steps {
				step := &card.Steps[j]
				// Synthesized steps keep their own provenance and never
				// pick up search citations.
				if step.Source == "" && stepMatchesConditions(step.Title) {
					step.Citations = appendNewCitations(step.Citations, citations)
				}
			}
		}
	}
}

func stepMatchesConditions(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range conditionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// appendNewCitations appends citations not already present, deduplicating by
// URL, which keeps repeated merges stable.
func appendNewCitations(existing, incoming []Citation) []Citation {
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.URL] = true
	}
	for _, c := range incoming {
		if have[c.URL] {
			continue
		}
		have[c.URL] = true
		existing = append(existing, c)
	}
	return existing
}

// appendConditions synthesizes at most one appendix step per plan card from
// the weather/marine results. Each appendix is tagged with the contributing
// tools; tools already represented on the card contribute nothing on re-merge.
// Failed tools are silently omitted, never surfaced as errors.
func appendConditions(cards []Card, results map[string]ToolResult) {
	parts := map[tools.Kind]string{}
	if p, ok := successPayload[weather.Payload](results, tools.KindWeather); ok {
		parts[tools.KindWeather] = fmt.Sprintf("%.1f°C, wind %.0f km/h", p.Current.Temp, p.Current.WindSpeed)
	}
	if p, ok := successPayload[weather.MarinePayload](results, tools.KindMarine); ok {
		parts[tools.KindMarine] = fmt.Sprintf("waves %.1f m, swell period %.0f s", p.Current.WaveHeight, p.Current.SwellPeriod)
	}
	if len(parts) == 0 {
		return
	}

	for i := range cards {
		card := &cards[i]
		if card.Kind != CardPlan {
			continue
		}
		covered := make(map[string]bool)
		for _, step := range card.Steps {
			for _, src := range strings.Split(step.Source, ",") {
				if src != "" {
					covered[src] = true
				}
			}
		}

		var srcs []string
		var body []string
		for _, kind := range []tools.Kind{tools.KindWeather, tools.KindMarine} {
			if text, ok := parts[kind]; ok && !covered[string(kind)] {
				srcs = append(srcs, string(kind))
				body = append(body, text)
			}
		}
		if len(srcs) == 0 {
			continue
		}
		card.Steps = append(card.Steps, Step{
			Title:     "Current conditions",
			Body:      strings.Join(body, " | "),
			Citations: []Citation{},
			Source:    strings.Join(srcs, ","),
		})
	}
}

func successPayload[T any](results map[string]ToolResult, kind tools.Kind) (T, bool) {
	var zero T
	for _, r := range results {
		if r.Tool != kind || !r.OK {
			continue
		}
		if p, ok := r.Payload.(T); ok {
			return p, true
		}
	}
	return zero, false
}

// fillImages assigns the Nth not-yet-seen image to the Nth unfilled slot in
// card order: step slots first, then the card hero slot. Images already
// present anywhere in the card set are skipped, so re-merging the same batch
// fills nothing.
func fillImages(cards []Card, imgs []ImageRef) {
	if len(imgs) == 0 {
		return
	}
	used := make(map[string]bool)
	for _, card := range cards {
		for _, step := range card.Steps {
			if step.Image != nil {
				used[step.Image.URL] = true
			}
		}
		for _, img := range card.Images {
			used[img.URL] = true
		}
	}

	fresh := make([]ImageRef, 0, len(imgs))
	for _, img := range imgs {
		if img.URL == "" || used[img.URL] {
			continue
		}
		used[img.URL] = true
		fresh = append(fresh, img)
	}

	next := 0
	for i := range cards {
		card := &cards[i]
		for j := range card.Steps {
			if next >= len(fresh) {
				return
			}
			if card.Steps[j].Image == nil {
				img := fresh[next]
				card.Steps[j].Image = &img
				next++
			}
		}
		if next >= len(fresh) {
			return
		}
		if len(card.Images) == 0 {
			card.Images = append(card.Images, fresh[next])
			next++
		}
	}
}

// requestedTools reports the tool names the plan actually asked for, images
// included when image queries were present.
func requestedTools(plan Plan) []string {
	out := []string{}
	if len(plan.ImageQueries) > 0 {
		out = append(out, string(tools.KindImages))
	}
	seen := make(map[string]bool)
	for _, call := range plan.ToolCalls {
		name := string(call.Tool)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func cloneCards(cards []Card) []Card {
	out := make([]Card, len(cards))
	for i, card := range cards {
		c := card
		c.Steps = make([]Step, len(card.Steps))
		for j, step := range card.Steps {
			s := step
			if step.Image != nil {
				img := *step.Image
				s.Image = &img
			}
			s.Citations = append([]Citation{}, step.Citations...)
			c.Steps[j] = s
		}
		c.Images = append([]ImageRef{}, card.Images...)
		c.Citations = append([]Citation{}, card.Citations...)
		out[i] = c
	}
	return out
}
