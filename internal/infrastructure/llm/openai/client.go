package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/antonkh/filings-qa/internal/core/domain"
	"github.com/antonkh/filings-qa/internal/core/ports"
	"github.com/antonkh/filings-qa/internal/infrastructure/resilience"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client answers extraction, decomposition and embedding calls against the
// OpenAI chat and embeddings endpoints. All calls go through the shared
// resilience executor; extraction degrades to a fallback answer instead of
// failing the whole question.
type Client struct {
	api        openai.Client
	model      string
	embedModel string
	executor   *resilience.Executor
	logger     *slog.Logger
}

var (
	_ ports.AnswerExtractor    = (*Client)(nil)
	_ ports.QuestionDecomposer = (*Client)(nil)
	_ ports.Embedder           = (*Client)(nil)
)

// NewClient builds the adapter. Extra request options (base URL overrides
// for gateways and tests) are passed through to the SDK.
func NewClient(apiKey, model, embedModel string, executor *resilience.Executor, logger *slog.Logger, opts ...option.RequestOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	// The SDK has its own retry loop; the executor owns retries here.
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)
	return &Client{
		api:        openai.NewClient(clientOpts...),
		model:      model,
		embedModel: embedModel,
		executor:   executor,
		logger:     logger,
	}
}

// Extract answers one question from retrieved context. A call that still
// fails after retries yields the kind-appropriate fallback answer rather
// than an error, so one bad extraction cannot sink a comparative fan-out.
func (c *Client) Extract(ctx context.Context, question, contextText string, kind domain.QuestionKind) (domain.AnswerResult, error) {
	var envelope extractionEnvelope
	err := c.executor.Execute(ctx, "openai_extract", func(ctx context.Context) error {
		return c.chatStructured(ctx, systemPrompt(kind), userPrompt(question, contextText), "extracted_answer", extractionSchema(kind), &envelope)
	}, classifyError)
	if err != nil {
		if ctx.Err() != nil {
			return domain.AnswerResult{}, ctx.Err()
		}
		c.logger.Error("extraction_failed", "kind", kind, "error", err)
		return domain.FallbackAnswer(kind, fmt.Sprintf("extraction failed: %v", err)), nil
	}

	value, err := decodeFinalAnswer(kind, envelope.FinalAnswer)
	if err != nil {
		c.logger.Error("extraction_answer_malformed", "kind", kind, "error", err)
		return domain.FallbackAnswer(kind, "extraction returned a malformed answer"), nil
	}

	pages := envelope.RelevantPages
	if pages == nil {
		pages = []int{}
	}
	c.logger.Info("llm_extraction",
		"kind", kind,
		"value", value,
		"claimed_pages", pages,
		"summary", envelope.ReasoningSummary,
	)
	return domain.AnswerResult{
		Value:            value,
		ClaimedPages:     pages,
		Analysis:         envelope.StepByStepAnalysis,
		ReasoningSummary: envelope.ReasoningSummary,
	}, nil
}

// Split rephrases a comparative question into per-entity sub-questions.
// Unlike Extract it surfaces the error; the router falls back to reusing
// the original question for every entity.
func (c *Client) Split(ctx context.Context, question string, entityNames []string) ([]domain.SubQuestion, error) {
	var result decomposition
	err := c.executor.Execute(ctx, "openai_decompose", func(ctx context.Context) error {
		return c.chatStructured(ctx, rephrasingSystemPrompt, rephrasingUserPrompt(question, entityNames), "decomposed_questions", decompositionSchema(), &result)
	}, classifyError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "openai.Split", err)
	}
	if len(result.Questions) == 0 {
		return nil, domain.WrapError(domain.ErrTemporary, "openai.Split", errors.New("decomposition returned no questions"))
	}
	return result.Questions, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var out embeddingResponse
	err := c.executor.Execute(ctx, "openai_embed", func(ctx context.Context) error {
		if err := c.api.Post(ctx, "/embeddings", embeddingRequest{Model: c.embedModel, Input: []string{text}}, &out); err != nil {
			return err
		}
		if out.Error != nil {
			return fmt.Errorf("embeddings: %s", out.Error.Message)
		}
		if len(out.Data) == 0 {
			return errors.New("embeddings: empty response")
		}
		return nil
	}, classifyError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "openai.EmbedQuery", err)
	}

	src := out.Data[0].Embedding
	vector := make([]float32, len(src))
	for i := range src {
		vector[i] = float32(src[i])
	}
	return vector, nil
}

// chatStructured runs one structured-output chat completion and decodes the
// message content into result.
func (c *Client) chatStructured(ctx context.Context, system, user, schemaName string, schema map[string]any, result any) error {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchemaFormat{Name: schemaName, Strict: true, Schema: schema},
		},
	}

	var out chatResponse
	if err := c.api.Post(ctx, "/chat/completions", req, &out); err != nil {
		return err
	}
	if out.Error != nil {
		return fmt.Errorf("chat completion: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return errors.New("chat completion: no choices returned")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return fmt.Errorf("chat completion: decode structured content: %w", err)
	}
	return nil
}
