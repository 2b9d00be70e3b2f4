package ports

import (
	"context"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

// SemanticSearcher performs vector similarity search scoped to one document.
type SemanticSearcher interface {
	Search(ctx context.Context, query, documentID string, k int) ([]domain.Passage, error)
}

// Reranker scores (query, passage) pairs in one batch; higher is more
// relevant, no normalization guarantee across calls.
type Reranker interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// AnswerExtractor produces a typed answer from a question and aggregated
// evidence. Implementations retry internally and degrade to the negative
// sentinel on irrecoverable failure rather than returning an error.
type AnswerExtractor interface {
	Extract(ctx context.Context, question, contextText string, kind domain.QuestionKind) (domain.AnswerResult, error)
}

// QuestionDecomposer rephrases a comparative question into one
// entity-specific sub-question per entity. Best effort; callers substitute
// the original question on error.
type QuestionDecomposer interface {
	Split(ctx context.Context, question string, entityNames []string) ([]domain.SubQuestion, error)
}

// PassageStore bulk-reads the indexed passages of one document.
type PassageStore interface {
	FetchByDocument(ctx context.Context, documentID string) ([]domain.Passage, error)
}

// Embedder builds the query vector used for semantic search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
