package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

// extractionEnvelope mirrors the structured-output schema shared by all
// question kinds. final_answer stays raw until decoded per kind.
type extractionEnvelope struct {
	StepByStepAnalysis string          `json:"step_by_step_analysis"`
	ReasoningSummary   string          `json:"reasoning_summary"`
	RelevantPages      []int           `json:"relevant_pages"`
	FinalAnswer        json.RawMessage `json:"final_answer"`
}

type decomposition struct {
	Questions []domain.SubQuestion `json:"questions"`
}

func chainOfThoughtProperties() map[string]any {
	return map[string]any{
		"step_by_step_analysis": map[string]any{
			"type": "string",
			"description": "Detailed step-by-step analysis of the answer, at least 5 steps. " +
				"Pay special attention to the wording of the question: a similar-looking value " +
				"in the context may not be the requested one. If the metric requires a " +
				"calculation not present in the text, state that explicitly.",
		},
		"reasoning_summary": map[string]any{
			"type":        "string",
			"description": "Concise summary of the reasoning, around 50 words.",
		},
		"relevant_pages": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "integer"},
			"description": "Page numbers containing information directly used to answer. " +
				"Include only pages with direct answers or key supporting statements.",
		},
	}
}

func finalAnswerSchema(kind domain.QuestionKind) map[string]any {
	switch kind {
	case domain.KindNumber:
		return map[string]any{
			"type": []string{"number", "string"},
			"description": "The exact metric value. Percentages as plain numbers (58.3% -> 58.3), " +
				"parenthesised negatives as negative (  (2,124) -> -2124 ), values reported in " +
				"thousands scaled up (4,970.5 thousands -> 4970500). 'N/A' if the currency differs " +
				"from the question or the value is not directly stated.",
		}
	case domain.KindBoolean:
		return map[string]any{
			"type": "boolean",
			"description": "True if the text states it happened, false if it states it did not " +
				"or mentions nothing about it.",
		}
	case domain.KindNames:
		return map[string]any{
			"anyOf": []map[string]any{
				{"type": "array", "items": map[string]any{"type": "string"}},
				{"type": "string", "enum": []string{domain.NASentinel}},
			},
			"description": "Names extracted exactly as they appear, no duplicates. " +
				"For positions return only titles. 'N/A' if not available.",
		}
	case domain.KindComparative:
		return map[string]any{
			"type":        "string",
			"description": "The winning company name exactly as written in the question, or 'N/A'.",
		}
	default: // name
		return map[string]any{
			"type": "string",
			"description": "The specific entity/person/product name, extracted exactly as it " +
				"appears in context. 'N/A' if not available.",
		}
	}
}

func extractionSchema(kind domain.QuestionKind) map[string]any {
	properties := chainOfThoughtProperties()
	required := []string{"step_by_step_analysis", "reasoning_summary", "relevant_pages", "final_answer"}

	// Comparative answers synthesize per-entity summaries, not pages.
	if kind == domain.KindComparative {
		delete(properties, "relevant_pages")
		required = []string{"step_by_step_analysis", "reasoning_summary", "final_answer"}
	}
	properties["final_answer"] = finalAnswerSchema(kind)

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func decompositionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":        "array",
				"description": "One rephrased question per company.",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"company_name": map[string]any{
							"type":        "string",
							"description": "Company name exactly as provided in the original question.",
						},
						"question": map[string]any{
							"type":        "string",
							"description": "Rephrased question specific to this company.",
						},
					},
					"required":             []string{"company_name", "question"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"questions"},
		"additionalProperties": false,
	}
}

// decodeFinalAnswer turns the raw final_answer into the typed value the
// router expects for the kind, falling back to the negative sentinel on a
// shape the schema should have prevented.
func decodeFinalAnswer(kind domain.QuestionKind, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return domain.NegativeValue(kind), nil
	}

	switch kind {
	case domain.KindNumber:
		var number float64
		if err := json.Unmarshal(raw, &number); err == nil {
			return number, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if strings.EqualFold(strings.TrimSpace(s), domain.NASentinel) {
				return domain.NASentinel, nil
			}
			return nil, fmt.Errorf("number answer is non-sentinel string %q", s)
		}
		return nil, fmt.Errorf("number answer has unexpected shape: %s", raw)
	case domain.KindBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("boolean answer has unexpected shape: %s", raw)
		}
		return b, nil
	case domain.KindNames:
		var names []string
		if err := json.Unmarshal(raw, &names); err == nil {
			if names == nil {
				names = []string{}
			}
			return names, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.EqualFold(strings.TrimSpace(s), domain.NASentinel) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("names answer has unexpected shape: %s", raw)
	default: // name, comparative
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("string answer has unexpected shape: %s", raw)
		}
		return s, nil
	}
}
