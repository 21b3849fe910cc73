package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed plan_schema.json
var planSchemaJSON string

// PlanDocument represents the canonical JSON plan produced by the first
// generation pass.
type PlanDocument struct {
	Text            string         `json:"text"`
	NeedsFreshFacts bool           `json:"needs_fresh_facts"`
	ToolCalls       []PlanToolCall `json:"tool_calls"`
	ImageQueries    []string       `json:"image_queries"`
	Cards           []PlanCard     `json:"cards"`
}

// PlanToolCall is a single requested tool invocation.
type PlanToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// PlanCard is a themed content unit in the plan.
type PlanCard struct {
	Kind    string     `json:"kind"`
	Title   string     `json:"title"`
	Theme   string     `json:"theme,omitempty"`
	Summary string     `json:"summary,omitempty"`
	Steps   []PlanStep `json:"steps,omitempty"`
}

// PlanStep is a single step within a card.
type PlanStep struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

var (
	compileOnce sync.Once
	planSchema  *jsonschema.Schema
	compileErr  error
)

// PlanSchema returns the compiled JSON Schema for plan documents.
func PlanSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("plan_schema.json", strings.NewReader(planSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("plan_schema.json")
		if err != nil {
			compileErr = fmt.Errorf("compile plan schema: %w", err)
			return
		}
		planSchema = schema
	})
	return planSchema, compileErr
}

// SchemaJSON returns the raw embedded schema, for the response_format request
// option and the schema CLI command.
func SchemaJSON() string { return planSchemaJSON }

// ValidatePlanDocument validates the provided JSON bytes against the plan schema.
func ValidatePlanDocument(data []byte) error {
	schema, err := PlanSchema()
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("plan is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("plan does not match schema: %w", err)
	}
	return nil
}

// ParsePlanDocument validates and decodes plan JSON in one step.
func ParsePlanDocument(data []byte) (PlanDocument, error) {
	if err := ValidatePlanDocument(data); err != nil {
		return PlanDocument{}, err
	}
	var doc PlanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return PlanDocument{}, fmt.Errorf("decode plan: %w", err)
	}
	return doc, nil
}
