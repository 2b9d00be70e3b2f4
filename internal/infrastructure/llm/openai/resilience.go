package openai

import (
	"context"
	"errors"
	"net"
	"net/http"

	openai "github.com/openai/openai-go/v3"

	"github.com/antonkh/filings-qa/internal/infrastructure/resilience"
)

// classifyError decides retry and breaker accounting for OpenAI calls.
// Rate limits, server errors, transport errors and malformed structured
// output are retried; client errors such as an invalid request are not.
func classifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode >= http.StatusInternalServerError
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	// Anything else (empty choices, schema violations) is usually model
	// nondeterminism and worth another attempt.
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
