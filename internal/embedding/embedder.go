package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/apperr"
)

const (
	// DefaultModel is the OpenAI model used for generating embeddings.
	DefaultModel = "text-embedding-3-small"

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
	// OpenAI supports up to 2048 texts per batch, but smaller batches reduce TPM pressure.
	DefaultBatchSize = 500
)

// EmbedderConfig configures an Embedder.
type EmbedderConfig struct {
	Model     string
	BatchSize int
	// RetryRateLimits enables exponential backoff on HTTP 429. Off by default:
	// a failed stage is surfaced for the user to retry.
	RetryRateLimits bool
}

// Embedder turns ordered texts into ordered, equal-length vectors.
// A batch of N inputs yields exactly N vectors or the whole call fails.
type Embedder struct {
	client          *Client
	model           string
	batchSize       int
	retryRateLimits bool
	logger          *zap.Logger
}

// NewEmbedder creates a new Embedder. Zero values in cfg fall back to defaults.
func NewEmbedder(client *Client, cfg EmbedderConfig, logger *zap.Logger) *Embedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		client:          client,
		model:           cfg.Model,
		batchSize:       cfg.BatchSize,
		retryRateLimits: cfg.RetryRateLimits,
		logger:          logger,
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// GenerateEmbeddings embeds texts with the given API key, preserving input order.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, apiKey string, texts []string) ([][]float32, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.KindMissingCredential, "no OpenAI API key provided")
	}
	if len(texts) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "no chunks provided")
	}

	client := e.client.ForKey(apiKey)
	all := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		embeddings, err := e.embedBatch(ctx, client, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, embeddings...)
	}

	if err := checkUniform(all); err != nil {
		return nil, err
	}

	e.logger.Debug("generated embeddings",
		zap.Int("count", len(all)),
		zap.Int("dimension", len(all[0])),
		zap.String("model", e.model),
	)
	return all, nil
}

// embedBatch embeds one batch. When rate-limit retries are enabled it backs off
// exponentially on HTTP 429; every other error fails immediately.
func (e *Embedder) embedBatch(ctx context.Context, client *openai.Client, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if e.retryRateLimits && isRateLimitError(err) {
				e.logger.Warn("embedding rate limited, backing off", zap.Error(err))
				return err
			}
			return backoff.Permanent(err)
		}

		ordered, err := orderByIndex(resp.Data, len(texts))
		if err != nil {
			return backoff.Permanent(err)
		}
		embeddings = ordered
		return nil
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if e.retryRateLimits {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 10 * time.Second
		b.MaxElapsedTime = 30 * time.Second
		policy = b
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, Classify(err, "embedding request")
	}
	return embeddings, nil
}

// orderByIndex places each returned vector at its input position.
func orderByIndex(data []openai.Embedding, want int) ([][]float32, error) {
	if len(data) != want {
		return nil, apperr.New(apperr.KindUpstream,
			"embedding response has %d vectors for %d inputs", len(data), want)
	}

	sorted := make([]openai.Embedding, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	out := make([][]float32, want)
	for i, d := range sorted {
		if int(d.Index) != i {
			return nil, apperr.New(apperr.KindUpstream,
				"embedding response has unexpected index %d at position %d", d.Index, i)
		}
		out[i] = toFloat32(d.Embedding)
	}
	return out, nil
}

func checkUniform(vectors [][]float32) error {
	dim := len(vectors[0])
	if dim == 0 {
		return apperr.New(apperr.KindUpstream, "embedding response contains an empty vector")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return apperr.New(apperr.KindUpstream,
				"embedding %d has %d dimensions, expected %d", i, len(v), dim)
		}
	}
	return nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32.
// OpenAI API returns float64, but the vector store uses float32 for memory efficiency.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
