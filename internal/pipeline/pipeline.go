// Package pipeline orchestrates upload, chunking, embedding and retrieval,
// both as stateless operations and over server-held sessions.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/chunker"
	"github.com/bull/rag-studio/internal/credential"
	"github.com/bull/rag-studio/internal/embedding"
	"github.com/bull/rag-studio/internal/extract"
	"github.com/bull/rag-studio/internal/github"
	"github.com/bull/rag-studio/internal/keywords"
	"github.com/bull/rag-studio/internal/metrics"
	"github.com/bull/rag-studio/internal/session"
	"github.com/bull/rag-studio/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved for a question.
const DefaultTopK = 3

// contextSeparator joins retrieved chunks into the answer context.
const contextSeparator = "\n\n"

// Embedder produces one vector per input text, in order.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, apiKey string, texts []string) ([][]float32, error)
	ValidateKey(ctx context.Context, apiKey string) embedding.Validation
}

// Synthesizer answers a query from a block of context.
type Synthesizer interface {
	Answer(ctx context.Context, apiKey, query, docContext string) (string, error)
}

// DocumentFetcher loads a document from a remote repository.
type DocumentFetcher interface {
	FetchDoc(ctx context.Context, src github.Source) (*github.FetchedDoc, error)
}

// Deps are the collaborators of a Pipeline. Fetcher and Metrics are optional.
type Deps struct {
	Sessions    *session.Manager
	Extractor   *extract.Extractor
	Chunker     *chunker.Chunker
	Keywords    *keywords.Extractor
	Embedder    Embedder
	Synthesizer Synthesizer
	Fetcher     DocumentFetcher
	Credentials *credential.Resolver
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	TopK        int
}

// Pipeline is the single entry point used by the HTTP, MCP and CLI surfaces.
type Pipeline struct {
	sessions    *session.Manager
	extractor   *extract.Extractor
	chunker     *chunker.Chunker
	keywords    *keywords.Extractor
	embedder    Embedder
	synthesizer Synthesizer
	fetcher     DocumentFetcher
	credentials *credential.Resolver
	metrics     *metrics.Metrics
	logger      *zap.Logger
	topK        int
}

// New creates a Pipeline. Missing optional collaborators get defaults.
func New(d Deps) *Pipeline {
	p := &Pipeline{
		sessions:    d.Sessions,
		extractor:   d.Extractor,
		chunker:     d.Chunker,
		keywords:    d.Keywords,
		embedder:    d.Embedder,
		synthesizer: d.Synthesizer,
		fetcher:     d.Fetcher,
		credentials: d.Credentials,
		metrics:     d.Metrics,
		logger:      d.Logger,
		topK:        d.TopK,
	}
	if p.chunker == nil {
		p.chunker = chunker.NewChunker()
	}
	if p.sessions == nil {
		p.sessions = session.NewManager(session.WithChunker(p.chunker))
	}
	if p.extractor == nil {
		p.extractor = extract.NewExtractor()
	}
	if p.keywords == nil {
		p.keywords = keywords.NewExtractor()
	}
	if p.credentials == nil {
		p.credentials = credential.NewResolver("")
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.topK <= 0 {
		p.topK = DefaultTopK
	}
	return p
}

// Extract validates an uploaded file and returns its text.
func (p *Pipeline) Extract(ctx context.Context, up extract.Upload) (*extract.Document, error) {
	return p.extractor.Extract(ctx, up)
}

// UploadLimits returns the file and text size ceilings applied to uploads.
func (p *Pipeline) UploadLimits() extract.Limits {
	return p.extractor.Limits()
}

// Chunk splits text under cfg. Truncation at the chunk ceiling is reported, not failed.
func (p *Pipeline) Chunk(text string, cfg chunker.Config) (*chunker.Result, error) {
	res, err := p.chunker.Chunk(text, cfg)
	if err != nil {
		return nil, err
	}
	p.metrics.RecordChunking(len(res.Chunks), res.Truncated)
	if res.Truncated {
		p.logger.Warn("chunk ceiling reached, remaining text dropped",
			zap.Int("chunks", len(res.Chunks)),
			zap.Int("chunk_size", res.Config.ChunkSize),
		)
	}
	return res, nil
}

// Embed embeds chunks with the resolved credential.
func (p *Pipeline) Embed(ctx context.Context, requestKey string, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "no chunks provided")
	}
	apiKey, err := p.credentials.Resolve(requestKey)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	vectors, err := p.embedder.GenerateEmbeddings(ctx, apiKey, chunks)
	if err != nil {
		p.metrics.RecordEmbedding(metrics.ResultError, len(chunks))
		return nil, err
	}
	p.metrics.RecordEmbedding(metrics.ResultOK, len(chunks))
	p.logger.Info("embedded chunks",
		zap.Int("count", len(vectors)),
		zap.Duration("duration", time.Since(start)),
	)
	return vectors, nil
}

// Answer answers query from a caller-supplied context.
func (p *Pipeline) Answer(ctx context.Context, requestKey, query, docContext string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", apperr.New(apperr.KindInvalidInput, "no query provided")
	}
	if strings.TrimSpace(docContext) == "" {
		return "", apperr.New(apperr.KindInvalidInput, "no context provided")
	}
	apiKey, err := p.credentials.Resolve(requestKey)
	if err != nil {
		return "", err
	}
	return p.synthesizer.Answer(ctx, apiKey, query, docContext)
}

// Keywords suggests up to five query terms from chunks. Never fails.
func (p *Pipeline) Keywords(chunks []string) []string {
	return p.keywords.Extract(chunks)
}

// ValidateKey checks the request header key, falling back to a key given in the body.
// Failures are reported in the result, never as errors.
func (p *Pipeline) ValidateKey(ctx context.Context, bodyKey, headerKey string) embedding.Validation {
	key := strings.TrimSpace(headerKey)
	if key == "" {
		key = strings.TrimSpace(bodyKey)
	}
	return p.embedder.ValidateKey(ctx, key)
}

// Hit is a ranked chunk without its embedding.
type Hit struct {
	ID         int     `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// AskResult is a retrieval answer with the chunks it was grounded on.
type AskResult struct {
	Query   string `json:"query"`
	TopK    int    `json:"topK"`
	Results []Hit  `json:"results"`
	Answer  string `json:"answer"`
}

// search embeds the query and ranks store entries, returning the top k and the k used.
func (p *Pipeline) search(ctx context.Context, apiKey string, store *vectorstore.Store, query string, k int) ([]Hit, int, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, apperr.New(apperr.KindInvalidInput, "no query provided")
	}
	if store.Len() == 0 {
		return nil, 0, session.ErrNoVectorStore
	}
	if k <= 0 {
		k = p.topK
	}

	vectors, err := p.embedder.GenerateEmbeddings(ctx, apiKey, []string{query})
	if err != nil {
		return nil, 0, err
	}

	ranked := store.Search(vectors[0], k)
	hits := make([]Hit, len(ranked))
	for i, r := range ranked {
		hits[i] = Hit{ID: r.ID, Text: r.Text, Similarity: r.Similarity}
	}
	return hits, k, nil
}

// ask ranks store entries and answers from the top k.
func (p *Pipeline) ask(ctx context.Context, apiKey string, store *vectorstore.Store, query string, k int) (*AskResult, error) {
	query = strings.TrimSpace(query)
	hits, k, err := p.search(ctx, apiKey, store, query, k)
	if err != nil {
		if !apperr.Is(err, apperr.KindInvalidInput) && !errors.Is(err, session.ErrNoVectorStore) {
			p.metrics.RecordAsk(metrics.ResultError)
		}
		return nil, err
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}

	answer, err := p.synthesizer.Answer(ctx, apiKey, query, strings.Join(texts, contextSeparator))
	if err != nil {
		p.metrics.RecordAsk(metrics.ResultError)
		return nil, err
	}

	p.metrics.RecordAsk(metrics.ResultOK)
	p.logger.Debug("answered question", zap.Int("top_k", k), zap.Int("hits", len(hits)))
	return &AskResult{Query: query, TopK: k, Results: hits, Answer: answer}, nil
}

// AskText runs the whole pipeline over a raw text: chunk, embed, retrieve, answer.
// Used by the CLI, which keeps no session.
func (p *Pipeline) AskText(ctx context.Context, requestKey, text string, cfg chunker.Config, query string, k int) (*AskResult, error) {
	apiKey, err := p.credentials.Resolve(requestKey)
	if err != nil {
		return nil, err
	}

	res, err := p.Chunk(text, cfg)
	if err != nil {
		return nil, err
	}
	vectors, err := p.Embed(ctx, apiKey, res.Chunks)
	if err != nil {
		return nil, err
	}
	store, err := vectorstore.Build(res.Chunks, vectors)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "embedding result does not match the chunks")
	}
	return p.ask(ctx, apiKey, store, query, k)
}
