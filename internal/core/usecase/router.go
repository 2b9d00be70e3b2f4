package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/antonkh/filings-qa/internal/core/domain"
	"github.com/antonkh/filings-qa/internal/core/ports"
)

const DefaultComparativeConcurrency = 4

// QuestionRouter classifies a question's entity scope, drives the
// single-entity and comparative pipelines and assembles the final result.
// Collaborator failures never abort a question: every path terminates in a
// well-typed RouterResult, degraded to the kind's negative sentinel when
// nothing better is available.
type QuestionRouter struct {
	directory  *EntityDirectory
	retriever  *HybridRetriever
	extractor  ports.AnswerExtractor
	decomposer ports.QuestionDecomposer

	concurrency int
}

func NewQuestionRouter(
	directory *EntityDirectory,
	retriever *HybridRetriever,
	extractor ports.AnswerExtractor,
	decomposer ports.QuestionDecomposer,
	concurrency int,
) *QuestionRouter {
	if concurrency <= 0 {
		concurrency = DefaultComparativeConcurrency
	}
	return &QuestionRouter{
		directory:   directory,
		retriever:   retriever,
		extractor:   extractor,
		decomposer:  decomposer,
		concurrency: concurrency,
	}
}

func (r *QuestionRouter) Answer(ctx context.Context, questionText string, kind domain.QuestionKind) (domain.RouterResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RouterResult{}, err
	}

	entities := r.directory.Scan(questionText)

	var (
		answer domain.AnswerResult
		refs   []domain.Reference
	)
	switch {
	case len(entities) == 1:
		slog.Info("route_single", "entity", entities[0])
		answer, refs = r.handleSingle(ctx, entities[0], questionText, kind)
	case len(entities) > 1:
		slog.Info("route_comparative", "entities", entities)
		answer, refs = r.handleComparative(ctx, entities, questionText)
	default:
		slog.Warn("route_no_entity", "question", questionText)
		answer = domain.FallbackAnswer(kind, "entity not identified in question")
	}

	if refs == nil {
		refs = []domain.Reference{}
	}
	return domain.RouterResult{Value: answer.Value, References: refs}, nil
}

func (r *QuestionRouter) handleSingle(ctx context.Context, entity, query string, kind domain.QuestionKind) (domain.AnswerResult, []domain.Reference) {
	// Trailing qualifier clauses after the question mark add retrieval
	// noise, not signal. The full question still goes to the extractor.
	retrievalQuery, _, _ := strings.Cut(query, "?")

	evidence := r.retriever.Retrieve(ctx, retrievalQuery, entity)
	if len(evidence) == 0 {
		slog.Warn("no_evidence", "entity", entity)
		return domain.FallbackAnswer(kind, fmt.Sprintf("no information found for %s", entity)), nil
	}

	answer, err := r.extractor.Extract(ctx, query, aggregateEvidence(evidence), kind)
	if err != nil {
		slog.Error("extract_failed", "entity", entity, "error", err)
		return domain.FallbackAnswer(kind, fmt.Sprintf("extraction failed for %s", entity)), nil
	}

	return answer, validateReferences(kind, evidence, answer.ClaimedPages, answer.Value)
}

type entityOutcome struct {
	answer domain.AnswerResult
	refs   []domain.Reference
	failed bool
}

func (r *QuestionRouter) handleComparative(ctx context.Context, entities []string, query string) (domain.AnswerResult, []domain.Reference) {
	subQuestions := r.decompose(ctx, entities, query)

	// Fan out the per-entity extractions; slots are written by entity
	// index so the summary below keeps the input entity order no matter
	// which sub-pipeline finishes first.
	outcomes := make([]entityOutcome, len(entities))
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for i, entity := range entities {
		wg.Add(1)
		go func(slot int, entity string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("entity_pipeline_panic", "entity", entity, "panic", rec)
					outcomes[slot] = entityOutcome{failed: true}
				}
			}()

			// Comparison needs commensurable values, so sub-answers
			// are always solicited as numeric extractions.
			answer, refs := r.handleSingle(ctx, entity, subQuestions[entity], domain.KindNumber)
			outcomes[slot] = entityOutcome{answer: answer, refs: refs}
		}(i, entity)
	}
	wg.Wait()

	var summaries []string
	var allRefs []domain.Reference
	for i, entity := range entities {
		if outcomes[i].failed {
			continue
		}
		summaries = append(summaries, fmt.Sprintf(
			"Company: %s\nExtracted Data: %v\nContext: %s\n",
			entity, outcomes[i].answer.Value, outcomes[i].answer.ReasoningSummary,
		))
		allRefs = append(allRefs, outcomes[i].refs...)
	}

	final, err := r.extractor.Extract(ctx, query, strings.Join(summaries, "\n---\n"), domain.KindComparative)
	if err != nil {
		slog.Error("comparative_extract_failed", "error", err)
		return domain.FallbackAnswer(domain.KindComparative, "comparative synthesis failed"), allRefs
	}
	// The comparative call itself carries no page references; only the
	// per-entity sub-calls do.
	return final, allRefs
}

func (r *QuestionRouter) decompose(ctx context.Context, entities []string, query string) map[string]string {
	out := make(map[string]string, len(entities))
	for _, entity := range entities {
		out[entity] = query
	}

	subs, err := r.decomposer.Split(ctx, query, entities)
	if err != nil {
		slog.Warn("decompose_failed_using_original", "error", err)
		return out
	}
	for _, sub := range subs {
		name := strings.TrimSpace(sub.EntityName)
		if _, known := out[name]; known && strings.TrimSpace(sub.Question) != "" {
			out[name] = sub.Question
		}
	}
	return out
}

func aggregateEvidence(evidence []domain.RetrievedCandidate) string {
	parts := make([]string, 0, len(evidence))
	for _, c := range evidence {
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", c.PageIndex, c.Text))
	}
	return strings.Join(parts, "\n\n")
}
