package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

type extractorFake struct {
	mu       sync.Mutex
	calls    []string
	contexts []string
	fn       func(question, contextText string, kind domain.QuestionKind) (domain.AnswerResult, error)
}

func (f *extractorFake) Extract(_ context.Context, question, contextText string, kind domain.QuestionKind) (domain.AnswerResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, question)
	f.contexts = append(f.contexts, contextText)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(question, contextText, kind)
	}
	return domain.AnswerResult{Value: "answer", ClaimedPages: []int{}}, nil
}

type decomposerFake struct {
	subs []domain.SubQuestion
	err  error
}

func (f *decomposerFake) Split(_ context.Context, _ string, _ []string) ([]domain.SubQuestion, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs, nil
}

type capturingSemantic struct {
	mu      sync.Mutex
	queries []string
	byDoc   map[string][]domain.Passage
}

func (f *capturingSemantic) Search(_ context.Context, query, documentID string, _ int) ([]domain.Passage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.byDoc[documentID], nil
}

func newTestRouter(
	t *testing.T,
	entries map[string]string,
	semantic *capturingSemantic,
	extractor *extractorFake,
	decomposer *decomposerFake,
) *QuestionRouter {
	t.Helper()
	dir := mustDirectory(t, entries)
	retriever := NewHybridRetriever(dir, semantic, NewLexicalSearch(&passageStoreFake{}), &rerankerFake{}, 5, 30)
	return NewQuestionRouter(dir, retriever, extractor, decomposer, 3)
}

func TestRouterNoKnownEntityFallsBack(t *testing.T) {
	cases := []struct {
		kind domain.QuestionKind
		want any
	}{
		{domain.KindNumber, "N/A"},
		{domain.KindBoolean, false},
		{domain.KindNames, []string{}},
	}

	extractor := &extractorFake{}
	router := newTestRouter(t, map[string]string{"Acme Inc": "doc1"}, &capturingSemantic{}, extractor, &decomposerFake{})

	for _, tc := range cases {
		got, err := router.Answer(context.Background(), "What was Initech's revenue?", tc.kind)
		if err != nil {
			t.Fatalf("Answer() error = %v", err)
		}
		if !reflect.DeepEqual(got.Value, tc.want) {
			t.Fatalf("kind %s: value = %v, want %v", tc.kind, got.Value, tc.want)
		}
		if len(got.References) != 0 {
			t.Fatalf("kind %s: expected empty references, got %v", tc.kind, got.References)
		}
	}
	if len(extractor.calls) != 0 {
		t.Fatalf("extractor must not be called without a resolved entity")
	}
}

func TestRouterSingleEntityEndToEnd(t *testing.T) {
	semantic := &capturingSemantic{byDoc: map[string][]domain.Passage{
		"doc1": {
			{Text: "revenue 2023: $4.2M", DocumentID: "doc1", PageIndex: 12},
			{Text: "litigation update", DocumentID: "doc1", PageIndex: 30},
		},
	}}
	extractor := &extractorFake{fn: func(_, _ string, _ domain.QuestionKind) (domain.AnswerResult, error) {
		return domain.AnswerResult{Value: 4200000.0, ClaimedPages: []int{12}}, nil
	}}
	router := newTestRouter(t, map[string]string{"Acme Inc": "doc1"}, semantic, extractor, &decomposerFake{})

	question := "What was Acme Inc's revenue in 2023? Answer in dollars."
	got, err := router.Answer(context.Background(), question, domain.KindNumber)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got.Value != 4200000.0 {
		t.Fatalf("value = %v, want 4200000", got.Value)
	}
	want := []domain.Reference{{DocumentID: "doc1", PageIndex: 12}}
	if !reflect.DeepEqual(got.References, want) {
		t.Fatalf("references = %v, want %v", got.References, want)
	}

	// Retrieval uses the question truncated at '?', the extractor the
	// full question.
	if len(semantic.queries) != 1 || strings.Contains(semantic.queries[0], "?") {
		t.Fatalf("retrieval query not truncated: %v", semantic.queries)
	}
	if len(extractor.calls) != 1 || extractor.calls[0] != question {
		t.Fatalf("extractor question = %v, want full question", extractor.calls)
	}
	if !strings.Contains(extractor.contexts[0], "--- Page 12 ---") {
		t.Fatalf("evidence context missing page prefix: %q", extractor.contexts[0])
	}
}

func TestRouterNoEvidenceFallsBackWithoutExtraction(t *testing.T) {
	extractor := &extractorFake{}
	router := newTestRouter(t, map[string]string{"Acme Inc": "doc1"}, &capturingSemantic{}, extractor, &decomposerFake{})

	got, err := router.Answer(context.Background(), "What was Acme Inc's revenue?", domain.KindNumber)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got.Value != "N/A" || len(got.References) != 0 {
		t.Fatalf("expected N/A with no references, got %+v", got)
	}
	if len(extractor.calls) != 0 {
		t.Fatalf("extractor must not run without evidence")
	}
}

func TestRouterComparativeDecompositionFailureUsesOriginalQuestion(t *testing.T) {
	semantic := &capturingSemantic{byDoc: map[string][]domain.Passage{
		"doc1": {{Text: "acme revenue 1M", DocumentID: "doc1", PageIndex: 1}},
		"doc2": {{Text: "global revenue 2M", DocumentID: "doc2", PageIndex: 2}},
	}}
	extractor := &extractorFake{fn: func(_, _ string, kind domain.QuestionKind) (domain.AnswerResult, error) {
		if kind == domain.KindComparative {
			return domain.AnswerResult{Value: "Global Corp", ClaimedPages: []int{}}, nil
		}
		return domain.AnswerResult{Value: 1.0, ClaimedPages: []int{}}, nil
	}}
	router := newTestRouter(
		t,
		map[string]string{"Acme Inc": "doc1", "Global Corp": "doc2"},
		semantic,
		extractor,
		&decomposerFake{err: errors.New("decompose down")},
	)

	question := "Which company had higher revenue, Acme Inc or Global Corp?"
	got, err := router.Answer(context.Background(), question, domain.KindComparative)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got.Value != "Global Corp" {
		t.Fatalf("value = %v, want Global Corp", got.Value)
	}

	// Both sub-extractions fell back to the original question verbatim.
	subCalls := 0
	for _, q := range extractor.calls {
		if q == question {
			subCalls++
		}
	}
	if subCalls != 3 { // two sub-questions plus the final synthesis
		t.Fatalf("expected 3 calls with the original question, got %d (%v)", subCalls, extractor.calls)
	}
}

func TestRouterComparativeSummaryKeepsEntityOrder(t *testing.T) {
	semantic := &capturingSemantic{byDoc: map[string][]domain.Passage{
		"doc1": {{Text: "acme metric", DocumentID: "doc1", PageIndex: 1}},
		"doc2": {{Text: "global metric", DocumentID: "doc2", PageIndex: 2}},
	}}
	var comparativeContext string
	extractor := &extractorFake{fn: func(question, contextText string, kind domain.QuestionKind) (domain.AnswerResult, error) {
		if kind == domain.KindComparative {
			comparativeContext = contextText
			return domain.AnswerResult{Value: "Acme Inc"}, nil
		}
		// Delay the first entity so the second one finishes earlier.
		if strings.Contains(contextText, "acme") {
			time.Sleep(30 * time.Millisecond)
			return domain.AnswerResult{Value: 10.0}, nil
		}
		return domain.AnswerResult{Value: 20.0}, nil
	}}
	router := newTestRouter(
		t,
		map[string]string{"Acme Inc": "doc1", "Global Corp": "doc2"},
		semantic,
		extractor,
		&decomposerFake{},
	)

	_, err := router.Answer(context.Background(), "Compare Acme Inc revenue with Global Corp revenue", domain.KindComparative)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	acmePos := strings.Index(comparativeContext, "Company: Acme Inc")
	globalPos := strings.Index(comparativeContext, "Company: Global Corp")
	if acmePos < 0 || globalPos < 0 || acmePos > globalPos {
		t.Fatalf("summary order wrong:\n%s", comparativeContext)
	}
}

func TestRouterComparativePartialFailureSkipsEntity(t *testing.T) {
	semantic := &capturingSemantic{byDoc: map[string][]domain.Passage{
		"doc1": {{Text: "acme metric", DocumentID: "doc1", PageIndex: 1}},
		"doc2": {{Text: "global metric", DocumentID: "doc2", PageIndex: 2}},
	}}
	var comparativeContext string
	extractor := &extractorFake{fn: func(_, contextText string, kind domain.QuestionKind) (domain.AnswerResult, error) {
		if kind == domain.KindComparative {
			comparativeContext = contextText
			return domain.AnswerResult{Value: "Global Corp"}, nil
		}
		if strings.Contains(contextText, "acme") {
			panic("sub-pipeline blew up")
		}
		return domain.AnswerResult{Value: 20.0, ClaimedPages: []int{2}}, nil
	}}
	router := newTestRouter(
		t,
		map[string]string{"Acme Inc": "doc1", "Global Corp": "doc2"},
		semantic,
		extractor,
		&decomposerFake{},
	)

	got, err := router.Answer(context.Background(), "Compare Acme Inc revenue with Global Corp revenue", domain.KindComparative)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if got.Value != "Global Corp" {
		t.Fatalf("value = %v, want Global Corp", got.Value)
	}
	if strings.Contains(comparativeContext, "Acme Inc") {
		t.Fatalf("failed entity must be excluded from the summary:\n%s", comparativeContext)
	}
	want := []domain.Reference{{DocumentID: "doc2", PageIndex: 2}}
	if !reflect.DeepEqual(got.References, want) {
		t.Fatalf("references = %v, want %v", got.References, want)
	}
}

func TestRouterDecomposerRephrasingApplied(t *testing.T) {
	semantic := &capturingSemantic{byDoc: map[string][]domain.Passage{
		"doc1": {{Text: "acme metric", DocumentID: "doc1", PageIndex: 1}},
		"doc2": {{Text: "global metric", DocumentID: "doc2", PageIndex: 2}},
	}}
	extractor := &extractorFake{fn: func(_, _ string, _ domain.QuestionKind) (domain.AnswerResult, error) {
		return domain.AnswerResult{Value: 1.0}, nil
	}}
	router := newTestRouter(
		t,
		map[string]string{"Acme Inc": "doc1", "Global Corp": "doc2"},
		semantic,
		extractor,
		&decomposerFake{subs: []domain.SubQuestion{
			{EntityName: "Acme Inc", Question: "What was Acme Inc's revenue?"},
			{EntityName: "Global Corp", Question: "What was Global Corp's revenue?"},
		}},
	)

	_, err := router.Answer(context.Background(), "Which of Acme Inc and Global Corp earned more?", domain.KindComparative)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	found := 0
	for _, q := range extractor.calls {
		if q == "What was Acme Inc's revenue?" || q == "What was Global Corp's revenue?" {
			found++
		}
	}
	if found != 2 {
		t.Fatalf("expected both rephrased sub-questions, saw %d in %v", found, extractor.calls)
	}
}
