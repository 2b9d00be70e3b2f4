// Command submission answers a batch of questions from a JSON file and
// writes the answers with their validated references to a submission file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/antonkh/filings-qa/internal/bootstrap"
	"github.com/antonkh/filings-qa/internal/config"
	"github.com/antonkh/filings-qa/internal/core/domain"
	"github.com/antonkh/filings-qa/internal/observability/logging"
)

type questionInput struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

type answerOutput struct {
	QuestionText string             `json:"question_text"`
	Kind         string             `json:"kind"`
	Value        any                `json:"value"`
	References   []domain.Reference `json:"references"`
}

type submission struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Answers   []answerOutput `json:"answers"`
}

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("submission", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	questions, err := readQuestions(cfg.QuestionsPath)
	if err != nil {
		log.Fatalf("read questions: %v", err)
	}
	logger.Info("submission_started", "questions", len(questions), "path", cfg.QuestionsPath)

	result := submission{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Answers:   make([]answerOutput, 0, len(questions)),
	}
	for i, q := range questions {
		if ctx.Err() != nil {
			log.Fatalf("interrupted after %d of %d questions", i, len(questions))
		}

		kind, err := domain.ParseQuestionKind(q.Kind)
		if err != nil {
			log.Fatalf("question %d: %v", i+1, err)
		}

		start := time.Now()
		answer, err := app.QuestionSvc.Answer(ctx, q.Text, kind)
		if err != nil {
			// A failed question becomes a sentinel answer; the batch goes on.
			logger.Error("question_failed", "index", i+1, "error", err)
			answer = domain.RouterResult{Value: domain.NegativeValue(kind), References: []domain.Reference{}}
		}
		logger.Info("question_answered",
			"index", i+1,
			"total", len(questions),
			"kind", kind,
			"references", len(answer.References),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		result.Answers = append(result.Answers, answerOutput{
			QuestionText: q.Text,
			Kind:         string(kind),
			Value:        answer.Value,
			References:   answer.References,
		})
	}

	if err := writeSubmission(cfg.SubmissionPath, result); err != nil {
		log.Fatalf("write submission: %v", err)
	}
	logger.Info("submission_written", "path", cfg.SubmissionPath, "run_id", result.RunID)
}

func readQuestions(path string) ([]questionInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var questions []questionInput
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%s contains no questions", path)
	}
	return questions, nil
}

func writeSubmission(path string, result submission) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
