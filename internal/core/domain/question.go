package domain

import (
	"fmt"
	"strings"
)

// QuestionKind classifies the expected answer shape of a question.
type QuestionKind string

const (
	KindNumber      QuestionKind = "number"
	KindName        QuestionKind = "name"
	KindBoolean     QuestionKind = "boolean"
	KindNames       QuestionKind = "names"
	KindComparative QuestionKind = "comparative"
)

func ParseQuestionKind(s string) (QuestionKind, error) {
	switch QuestionKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindNumber:
		return KindNumber, nil
	case KindName:
		return KindName, nil
	case KindBoolean:
		return KindBoolean, nil
	case KindNames:
		return KindNames, nil
	case KindComparative:
		return KindComparative, nil
	default:
		return "", fmt.Errorf("%w: unknown question kind %q", ErrInvalidInput, s)
	}
}

// NASentinel is the textual "no answer" value for number, name and
// comparative questions.
const NASentinel = "N/A"

// AnswerResult is the typed outcome of one extraction call. Value holds a
// float64, string, bool or []string depending on the question kind, or the
// kind-appropriate negative sentinel.
type AnswerResult struct {
	Value            any    `json:"value"`
	ClaimedPages     []int  `json:"relevant_pages"`
	Analysis         string `json:"step_by_step_analysis"`
	ReasoningSummary string `json:"reasoning_summary"`
}

// SubQuestion is one entity-specific rephrasing of a comparative question.
type SubQuestion struct {
	EntityName string `json:"company_name"`
	Question   string `json:"question"`
}

// Reference is a validated evidence pointer into a source document.
type Reference struct {
	DocumentID string `json:"pdf_sha1"`
	PageIndex  int    `json:"page_index"`
}

// RouterResult is the final outcome for one question.
type RouterResult struct {
	Value      any         `json:"value"`
	References []Reference `json:"references"`
}

// NegativeValue returns the "no answer" value for the given kind:
// false for boolean, an empty list for names, "N/A" otherwise.
func NegativeValue(kind QuestionKind) any {
	switch kind {
	case KindBoolean:
		return false
	case KindNames:
		return []string{}
	default:
		return NASentinel
	}
}

// FallbackAnswer builds the degraded AnswerResult used whenever extraction
// cannot produce a real answer. It never carries claimed pages.
func FallbackAnswer(kind QuestionKind, reason string) AnswerResult {
	return AnswerResult{
		Value:            NegativeValue(kind),
		ClaimedPages:     []int{},
		ReasoningSummary: reason,
	}
}

// IsNegativeValue reports whether value is the negative sentinel for kind.
// It tolerates the loosely typed values produced by JSON decoding
// ([]any for lists, nil for absent answers).
func IsNegativeValue(kind QuestionKind, value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok && strings.EqualFold(strings.TrimSpace(s), NASentinel) {
		return true
	}
	switch kind {
	case KindBoolean:
		if b, ok := value.(bool); ok {
			return !b
		}
	case KindNames:
		switch v := value.(type) {
		case []string:
			return len(v) == 0
		case []any:
			return len(v) == 0
		}
	}
	return false
}
