package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/harwoodlabs/kingfisher/config"
	"github.com/harwoodlabs/kingfisher/internal/llm"
	plannerv1 "github.com/harwoodlabs/kingfisher/internal/planner"
	"github.com/harwoodlabs/kingfisher/tools"
)

// PlanOutcome records how the plan was obtained. It is diagnostic only;
// callers always receive a plain Plan.
type PlanOutcome string

const (
	PlanDirect    PlanOutcome = "direct"
	PlanRepaired  PlanOutcome = "repaired"
	PlanDefaulted PlanOutcome = "defaulted"
)

// Planner turns a raw query into a validated Plan. Malformed model output is
// recovered internally (one repair pass, then a safe default); the only error
// it returns is the generation backend itself being unreachable or rejecting
// the request.
type Planner struct {
	provider llm.Provider
	cfg      config.LLMConfig
	timezone string
	logger   *log.Logger
}

// NewPlanner creates a planner over the given generation backend.
func NewPlanner(provider llm.Provider, cfg config.LLMConfig, timezone string) *Planner {
	return &Planner{
		provider: provider,
		cfg:      cfg,
		timezone: timezone,
		logger:   log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Plan runs the first generation pass. The returned Plan is structurally
// valid (arrays never nil) in every recovery path.
func (p *Planner) Plan(ctx context.Context, query string) (Plan, PlanOutcome, error) {
	opts := map[string]any{
		"temperature": p.cfg.Temperature,
		"max_tokens":  p.cfg.MaxTokens,
	}
	if p.cfg.UseJSONSchema {
		opts["json_schema"] = plannerv1.SchemaJSON()
	}

	raw, err := p.provider.Generate(ctx, systemPrompt(p.timezone), query, opts)
	if err != nil {
		return Plan{}, "", fmt.Errorf("generation backend: %w", err)
	}

	if doc, err := parsePlanJSON(raw); err == nil {
		return fromDocument(doc), PlanDirect, nil
	} else {
		p.logger.Printf("plan output failed validation, attempting repair: %v", err)
	}

	// Exactly one repair attempt, re-prompting with the invalid output.
	repaired, err := p.provider.Generate(ctx, repairSystemPrompt, repairPrompt(raw), map[string]any{
		"temperature": 0.1,
		"max_tokens":  p.cfg.MaxTokens,
	})
	if err == nil {
		if doc, perr := parsePlanJSON(repaired); perr == nil {
			return fromDocument(doc), PlanRepaired, nil
		} else {
			p.logger.Printf("repair output still invalid, defaulting: %v", perr)
		}
	} else {
		p.logger.Printf("repair call failed, defaulting: %v", err)
	}

	return defaultPlan(raw), PlanDefaulted, nil
}

// parsePlanJSON extracts the first balanced JSON object from the response and
// validates it against the plan schema.
func parsePlanJSON(response string) (plannerv1.PlanDocument, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return plannerv1.PlanDocument{}, fmt.Errorf("no JSON object found in response")
	}
	return plannerv1.ParsePlanDocument([]byte(jsonStr))
}

// extractJSON scans for the first balanced top-level brace pair.
func extractJSON(response string) string {
	start := -1
	depth := 0
	for i, ch := range response {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return response[start : i+1]
			}
		}
	}
	return ""
}

// fromDocument converts the validated wire document into the internal Plan,
// deduplicating tool calls by canonical identity. Tool selection is entirely
// declarative: only what the document names is kept.
func fromDocument(doc plannerv1.PlanDocument) Plan {
	plan := Plan{
		Text:            doc.Text,
		NeedsFreshFacts: doc.NeedsFreshFacts,
		ImageQueries:    doc.ImageQueries,
	}
	seen := make(map[string]bool)
	for _, tc := range doc.ToolCalls {
		kind := tools.Kind(tc.Tool)
		if kind == tools.KindImages {
			// Image work rides on image_queries, not the registry.
			continue
		}
		call := ToolCall{Tool: kind, Params: tc.Params}
		key := call.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		plan.ToolCalls = append(plan.ToolCalls, call)
	}
	for _, c := range doc.Cards {
		card := Card{
			Kind:    CardKind(c.Kind),
			Title:   c.Title,
			Theme:   c.Theme,
			Summary: c.Summary,
		}
		for _, s := range c.Steps {
			card.Steps = append(card.Steps, Step{Title: s.Title, Body: s.Body})
		}
		plan.Cards = append(plan.Cards, card)
	}
	plan.normalize()
	return plan
}

// defaultPlan is the safe fallback when both passes produced unusable output:
// any readable text is preserved, everything else is empty.
func defaultPlan(raw string) Plan {
	text := strings.TrimSpace(raw)
	if extractJSON(text) == text && text != "" {
		// The whole response was a JSON blob that failed validation; there is
		// no prose worth surfacing.
		text = ""
	}
	plan := Plan{Text: text}
	plan.normalize()
	return plan
}
