package ports

import (
	"context"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

// QuestionService is the inbound contract for answering one question.
// A degraded pipeline still yields a well-typed RouterResult; the error
// return is reserved for context cancellation.
type QuestionService interface {
	Answer(ctx context.Context, questionText string, kind domain.QuestionKind) (domain.RouterResult, error)
}
