// Package app assembles the pipeline and its collaborators from configuration.
package app

import (
	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/answer"
	"github.com/bull/rag-studio/internal/chunker"
	"github.com/bull/rag-studio/internal/config"
	"github.com/bull/rag-studio/internal/credential"
	"github.com/bull/rag-studio/internal/embedding"
	"github.com/bull/rag-studio/internal/extract"
	"github.com/bull/rag-studio/internal/github"
	"github.com/bull/rag-studio/internal/keywords"
	"github.com/bull/rag-studio/internal/metrics"
	"github.com/bull/rag-studio/internal/pipeline"
	"github.com/bull/rag-studio/internal/session"
)

// App holds the wired components shared by the binaries.
type App struct {
	Pipeline    *pipeline.Pipeline
	Metrics     *metrics.Metrics
	Extractor   *extract.Extractor
	Credentials *credential.Resolver
}

// New wires a pipeline from cfg. A GitHub client that cannot be built only
// disables repository loading.
func New(cfg *config.Config, logger *zap.Logger) *App {
	m := metrics.New()

	client := embedding.NewClient(embedding.ClientConfig{
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout,
	})
	embedder := embedding.NewEmbedder(client, embedding.EmbedderConfig{
		Model:           cfg.OpenAI.EmbeddingModel,
		BatchSize:       cfg.OpenAI.BatchSize,
		RetryRateLimits: cfg.OpenAI.RetryRateLimits,
	}, logger.Named("embedding"))
	synth := answer.NewSynthesizer(client, answer.Config{
		Model:            cfg.OpenAI.ChatModel,
		Temperature:      cfg.OpenAI.Temperature,
		MaxTokens:        cfg.OpenAI.MaxTokens,
		MaxContextTokens: cfg.Retrieval.MaxContextTokens,
	}, logger.Named("answer"))

	extractor := extract.NewExtractor(
		extract.WithLimits(extract.Limits{
			MaxFileBytes: cfg.Upload.MaxFileBytes,
			MaxTextBytes: cfg.Upload.MaxTextBytes,
		}),
		extract.WithPDFTool(cfg.Upload.PDFTool),
		extract.WithLogger(logger.Named("extract")),
	)
	if err := extractor.CheckPDFTool(); err != nil {
		logger.Warn("pdf uploads will fail", zap.String("tool", cfg.Upload.PDFTool), zap.String("hint", extract.InstallInstructions()))
	}

	chunks := chunker.NewChunker()
	sessions := session.NewManager(
		session.WithChunker(chunks),
		session.WithMaxSessions(cfg.Session.MaxSessions),
		session.WithIdleTimeout(cfg.Session.IdleTimeout),
	)

	creds := credential.NewResolver(cfg.OpenAI.APIKey.Value())
	deps := pipeline.Deps{
		Sessions:    sessions,
		Extractor:   extractor,
		Chunker:     chunks,
		Keywords:    keywords.NewExtractor(),
		Embedder:    embedder,
		Synthesizer: synth,
		Credentials: creds,
		Metrics:     m,
		Logger:      logger.Named("pipeline"),
		TopK:        cfg.Retrieval.TopK,
	}

	gh, err := github.NewClient(github.ClientConfig{
		Token:   cfg.GitHub.Token.Value(),
		BaseURL: cfg.GitHub.BaseURL,
	})
	if err != nil {
		logger.Warn("github loading disabled", zap.Error(err))
	} else {
		deps.Fetcher = github.NewFetcher(gh)
	}

	return &App{
		Pipeline:    pipeline.New(deps),
		Metrics:     m,
		Extractor:   extractor,
		Credentials: creds,
	}
}
