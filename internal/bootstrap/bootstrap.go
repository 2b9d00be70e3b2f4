package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/antonkh/filings-qa/internal/config"
	"github.com/antonkh/filings-qa/internal/core/ports"
	"github.com/antonkh/filings-qa/internal/core/usecase"
	"github.com/antonkh/filings-qa/internal/infrastructure/directory"
	"github.com/antonkh/filings-qa/internal/infrastructure/llm/openai"
	"github.com/antonkh/filings-qa/internal/infrastructure/repository/postgres"
	"github.com/antonkh/filings-qa/internal/infrastructure/rerank/tei"
	"github.com/antonkh/filings-qa/internal/infrastructure/resilience"
	"github.com/antonkh/filings-qa/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Directory   *usecase.EntityDirectory
	Retriever   *usecase.HybridRetriever
	QuestionSvc ports.QuestionService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	passages := postgres.NewPassageRepository(db)
	if err := passages.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	mapping, err := directory.Load(cfg.CompanyMappingPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load company mapping: %w", err)
	}
	entityDirectory, err := usecase.NewEntityDirectory(mapping)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("build entity directory: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoffSecs) * time.Second,
		BreakerEnabled:      true,
	})
	llmClient := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel, executor, logger)

	semantic := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, llmClient)
	lexical := usecase.NewLexicalSearch(passages)
	reranker := tei.New(cfg.RerankURL)

	retriever := usecase.NewHybridRetriever(entityDirectory, semantic, lexical, reranker, cfg.RAGTopK, cfg.RAGFetchK)
	router := usecase.NewQuestionRouter(entityDirectory, retriever, llmClient, llmClient, cfg.ComparativeConcurrency)

	return &App{
		Config:      cfg,
		Directory:   entityDirectory,
		Retriever:   retriever,
		QuestionSvc: router,

		closeFn: func() {
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
