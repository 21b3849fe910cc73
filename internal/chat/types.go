package chat

import (
	"time"

	"github.com/harwoodlabs/kingfisher/tools"
)

// CardKind classifies a card's content.
type CardKind string

const (
	CardHowto     CardKind = "howto"
	CardConcept   CardKind = "concept"
	CardPlan      CardKind = "plan"
	CardReference CardKind = "reference"
)

// Citation is a source attribution attached to a card or step. URL is always
// absolute; relative or unparsable URLs are dropped at merge time.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// ImageRef is a resolved illustration for a card or step.
type ImageRef struct {
	URL      string `json:"url"`
	Alt      string `json:"alt,omitempty"`
	Credit   string `json:"credit,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Step is a single step within a card. Source names the tool that synthesized
// the step when it was appended during merge rather than planned.
type Step struct {
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Image     *ImageRef  `json:"image,omitempty"`
	Citations []Citation `json:"citations"`
	Source    string     `json:"source,omitempty"`
}

// Card is a themed content unit. Identity is positional within Plan.Cards and
// stable through merge.
type Card struct {
	Kind      CardKind   `json:"kind"`
	Title     string     `json:"title"`
	Theme     string     `json:"theme"`
	Summary   string     `json:"summary,omitempty"`
	Steps     []Step     `json:"steps"`
	Images    []ImageRef `json:"images"`
	Citations []Citation `json:"citations"`
}

// ToolCall is one requested tool invocation from the plan.
type ToolCall struct {
	Tool   tools.Kind     `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// Key returns the canonical call identity.
func (c ToolCall) Key() string { return tools.CallKey(c.Tool, c.Params) }

// Plan is the validated output of the first generation pass. It is produced
// once per request and frozen before enrichment; merge only appends.
type Plan struct {
	Text            string     `json:"text"`
	NeedsFreshFacts bool       `json:"needs_fresh_facts"`
	Cards           []Card     `json:"cards"`
	ToolCalls       []ToolCall `json:"tool_calls"`
	ImageQueries    []string   `json:"image_queries"`
}

// normalize guarantees the structural invariant that arrays are never nil,
// even for defaulted plans.
func (p *Plan) normalize() {
	if p.Cards == nil {
		p.Cards = []Card{}
	}
	if p.ToolCalls == nil {
		p.ToolCalls = []ToolCall{}
	}
	if p.ImageQueries == nil {
		p.ImageQueries = []string{}
	}
	for i := range p.Cards {
		card := &p.Cards[i]
		if card.Theme == "" {
			card.Theme = "river"
		}
		if card.Steps == nil {
			card.Steps = []Step{}
		}
		if card.Images == nil {
			card.Images = []ImageRef{}
		}
		if card.Citations == nil {
			card.Citations = []Citation{}
		}
		for j := range card.Steps {
			if card.Steps[j].Citations == nil {
				card.Steps[j].Citations = []Citation{}
			}
		}
	}
}

// ToolResult is the terminal state of one launched call. Every launched call
// produces exactly one ToolResult; a missing result is a coordinator bug.
type ToolResult struct {
	Tool    tools.Kind    `json:"tool"`
	Key     string        `json:"-"`
	OK      bool          `json:"ok"`
	Payload any           `json:"payload,omitempty"`
	Err     string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Result is the final merged response.
type Result struct {
	Text            string   `json:"text"`
	Cards           []Card   `json:"cards"`
	ToolCalls       []string `json:"tool_calls"`
	Model           string   `json:"model"`
	TookMs          int64    `json:"took_ms"`
	NeedsFreshFacts bool     `json:"needs_fresh_facts"`
}
