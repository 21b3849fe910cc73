package planner

import "testing"

func TestValidatePlanDocument(t *testing.T) {
	payload := []byte(`{
        "text": "Evening flathead session",
        "needs_fresh_facts": true,
        "tool_calls": [{"tool": "weather"}, {"tool": "search", "params": {"q": "flathead lures"}}],
        "image_queries": ["clarence river sunset"],
        "cards": [
            {"kind": "plan", "title": "Session plan", "theme": "river", "steps": [
                {"title": "Check conditions", "body": "Look at wind and tide."}
            ]}
        ]
    }`)
	if err := ValidatePlanDocument(payload); err != nil {
		t.Fatalf("expected payload to validate: %v", err)
	}
}

func TestValidatePlanDocumentFails(t *testing.T) {
	payload := []byte(`{"text": "missing everything else"}`)
	if err := ValidatePlanDocument(payload); err == nil {
		t.Fatalf("expected schema validation to fail")
	}
}

func TestValidatePlanDocumentRejectsUnknownTool(t *testing.T) {
	payload := []byte(`{
        "text": "",
        "needs_fresh_facts": false,
        "tool_calls": [{"tool": "crystal_ball"}],
        "image_queries": [],
        "cards": []
    }`)
	if err := ValidatePlanDocument(payload); err == nil {
		t.Fatalf("expected unknown tool to fail validation")
	}
}

func TestParsePlanDocument(t *testing.T) {
	payload := []byte(`{
        "text": "hi",
        "needs_fresh_facts": false,
        "tool_calls": [],
        "image_queries": [],
        "cards": [{"kind": "concept", "title": "Tides"}]
    }`)
	doc, err := ParsePlanDocument(payload)
	if err != nil {
		t.Fatalf("ParsePlanDocument: %v", err)
	}
	if len(doc.Cards) != 1 || doc.Cards[0].Kind != "concept" {
		t.Fatalf("unexpected cards: %+v", doc.Cards)
	}
}
