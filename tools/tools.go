package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind is the closed set of tool identities the planner may request.
type Kind string

const (
	KindSearch  Kind = "search"
	KindWeather Kind = "weather"
	KindMarine  Kind = "marine"
	KindTides   Kind = "tides"
	// KindImages is reserved for image queries, which run through the image
	// provider chain rather than the registry.
	KindImages Kind = "images"
)

// Tool is a single executable capability: typed params in, typed payload out.
// Implementations handle their own caching and offline stubs so the contract
// is exercisable without live providers.
type Tool interface {
	Kind() Kind
	Call(ctx context.Context, params map[string]any) (any, error)
}

// CallKey produces the canonical identity of a call: kind plus normalized
// params. json.Marshal sorts map keys, so equal param sets always produce
// equal keys regardless of construction order.
func CallKey(kind Kind, params map[string]any) string {
	if len(params) == 0 {
		return fmt.Sprintf("tool:%s:{}", kind)
	}
	b, err := json.Marshal(params)
	if err != nil {
		// Unmarshalable params still need a stable identity.
		return fmt.Sprintf("tool:%s:%v", kind, params)
	}
	return fmt.Sprintf("tool:%s:%s", kind, b)
}

// Registry is a startup-built lookup table from tool identity to capability.
type Registry struct {
	tools map[Kind]Tool
}

// NewRegistry builds a registry over the given tools.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[Kind]Tool, len(ts))}
	for _, t := range ts {
		r.tools[t.Kind()] = t
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) { r.tools[t.Kind()] = t }

// Lookup resolves a tool identity. Unknown identities resolve to a trivial
// tool whose calls succeed with an empty payload: an unrecognised request
// from the planner is never fatal.
func (r *Registry) Lookup(kind Kind) Tool {
	if t, ok := r.tools[kind]; ok {
		return t
	}
	return emptyTool{kind: kind}
}

// Kinds lists the registered tool identities.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.tools))
	for k := range r.tools {
		out = append(out, k)
	}
	return out
}

type emptyTool struct{ kind Kind }

func (e emptyTool) Kind() Kind { return e.kind }

func (e emptyTool) Call(context.Context, map[string]any) (any, error) {
	return map[string]any{}, nil
}
