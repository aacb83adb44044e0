package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/credential"
	"github.com/bull/rag-studio/internal/embedding"
	"github.com/bull/rag-studio/internal/pipeline"
	"github.com/bull/rag-studio/internal/session"
)

// letterEmbedder embeds a text as its counts of a, b and c.
type letterEmbedder struct {
	err error
}

func (e *letterEmbedder) GenerateEmbeddings(_ context.Context, _ string, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{
			float32(strings.Count(text, "a")) + 0.01,
			float32(strings.Count(text, "b")) + 0.01,
			float32(strings.Count(text, "c")) + 0.01,
		}
	}
	return out, nil
}

func (e *letterEmbedder) ValidateKey(context.Context, string) embedding.Validation {
	return embedding.Validation{}
}

type echoSynthesizer struct{}

func (echoSynthesizer) Answer(_ context.Context, _, query, docContext string) (string, error) {
	return query + " => " + docContext[:3], nil
}

func newTestServer(t *testing.T, emb *letterEmbedder, allowFiles bool) *Server {
	t.Helper()
	p := pipeline.New(pipeline.Deps{
		Embedder:    emb,
		Synthesizer: echoSynthesizer{},
		Credentials: credential.NewResolver("sk-process"),
	})
	s, err := NewServer(&Config{Pipeline: p, AllowFiles: allowFiles})
	require.NoError(t, err)
	return s
}

func intPtr(n int) *int { return &n }

// abcText is three 100-character runs of a, b and c.
func abcText() string {
	return strings.Repeat("a", 100) + strings.Repeat("b", 100) + strings.Repeat("c", 100)
}

func loadABC(t *testing.T, s *Server) {
	t.Helper()
	ctx := context.Background()
	_, _, err := s.handleSetChunkConfig(ctx, nil, SetChunkConfigInput{ChunkSize: intPtr(100), Overlap: intPtr(0)})
	require.NoError(t, err)
	_, out, err := s.handleLoadDocument(ctx, nil, LoadDocumentInput{Text: abcText(), Name: "abc.txt"})
	require.NoError(t, err)
	require.Equal(t, 3, out.Chunks)
}

func TestNewServer_RequiresPipeline(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)

	_, err = NewServer(&Config{})
	assert.Error(t, err)
}

func TestChunkText(t *testing.T) {
	s := newTestServer(t, &letterEmbedder{}, false)

	_, out, err := s.handleChunkText(context.Background(), nil, ChunkTextInput{
		Text:      strings.Repeat("x", 250),
		ChunkSize: intPtr(100),
		Overlap:   intPtr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Count)
	assert.Equal(t, 100, out.ChunkSize)
	assert.Zero(t, out.Overlap)

	_, out, err = s.handleChunkText(context.Background(), nil, ChunkTextInput{Text: "short"})
	require.NoError(t, err)
	assert.Equal(t, 500, out.ChunkSize)
	assert.Equal(t, 100, out.Overlap)

	_, _, err = s.handleChunkText(context.Background(), nil, ChunkTextInput{})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestEmbedThenAsk(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, &letterEmbedder{}, false)

	_, _, err := s.handleAsk(ctx, nil, SearchInput{Query: "bbb"})
	assert.ErrorIs(t, err, session.ErrNoVectorStore)

	_, _, err = s.handleEmbedDocument(ctx, nil, EmptyInput{})
	assert.ErrorIs(t, err, session.ErrNoDocument)

	loadABC(t, s)

	_, _, err = s.handleSearch(ctx, nil, SearchInput{Query: "bbb"})
	assert.ErrorIs(t, err, session.ErrNoVectorStore)

	_, out, err := s.handleEmbedDocument(ctx, nil, EmptyInput{})
	require.NoError(t, err)
	assert.True(t, out.Embedded)
	assert.Equal(t, int(session.StepRetrieve), out.Status.Step)
	assert.Equal(t, 3, out.Status.VectorCount)

	_, hits, err := s.handleSearch(ctx, nil, SearchInput{Query: "bbb", TopK: 1})
	require.NoError(t, err)
	require.Equal(t, 1, hits.Count)
	assert.Equal(t, 1, hits.Results[0].ID)

	_, answer, err := s.handleAsk(ctx, nil, SearchInput{Query: "ccc", TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, "ccc => ccc", answer.Answer)

	// Embedding again at the retrieval step is a no-op.
	_, out, err = s.handleEmbedDocument(ctx, nil, EmptyInput{})
	require.NoError(t, err)
	assert.False(t, out.Embedded)
}

func TestEmbedDocument_Failure(t *testing.T) {
	emb := &letterEmbedder{err: apperr.New(apperr.KindAuth, "invalid OpenAI API key")}
	s := newTestServer(t, emb, false)
	loadABC(t, s)

	_, _, err := s.handleEmbedDocument(context.Background(), nil, EmptyInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid OpenAI API key")

	_, st, err := s.handleSessionStatus(context.Background(), nil, EmptyInput{})
	require.NoError(t, err)
	assert.Equal(t, int(session.StepEmbed), st.Step)
	assert.Zero(t, st.VectorCount)
}

func TestLoadDocument_Sources(t *testing.T) {
	ctx := context.Background()

	t.Run("exactly one source", func(t *testing.T) {
		s := newTestServer(t, &letterEmbedder{}, true)
		_, _, err := s.handleLoadDocument(ctx, nil, LoadDocumentInput{})
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

		_, _, err = s.handleLoadDocument(ctx, nil, LoadDocumentInput{Text: "x", Path: "y.txt"})
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	})

	t.Run("local markdown file", func(t *testing.T) {
		s := newTestServer(t, &letterEmbedder{}, true)
		path := filepath.Join(t.TempDir(), "guide.md")
		require.NoError(t, os.WriteFile(path, []byte("# Guide\n\n## Install\n\nrun it\n"), 0o600))

		_, out, err := s.handleLoadDocument(ctx, nil, LoadDocumentInput{Path: path})
		require.NoError(t, err)
		assert.Equal(t, "guide.md", out.Status.Document)
		assert.Len(t, out.Status.Outline, 2)
		assert.Equal(t, 1, out.Chunks)
	})

	t.Run("local files disabled", func(t *testing.T) {
		s := newTestServer(t, &letterEmbedder{}, false)
		_, _, err := s.handleLoadDocument(ctx, nil, LoadDocumentInput{Path: "/etc/hosts"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})

	t.Run("github without a fetcher", func(t *testing.T) {
		s := newTestServer(t, &letterEmbedder{}, false)
		_, _, err := s.handleLoadDocument(ctx, nil, LoadDocumentInput{
			GitHub: &GitHubSource{Owner: "o", Repo: "r", Path: "README.md"},
		})
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
	})
}

func TestSetChunkConfig_Rechunks(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, &letterEmbedder{}, false)
	loadABC(t, s)

	_, out, err := s.handleSetChunkConfig(ctx, nil, SetChunkConfigInput{ChunkSize: intPtr(150), Overlap: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Chunks)
	assert.Equal(t, 150, out.Status.ChunkSize)
}

func TestExtractKeywords(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t, &letterEmbedder{}, false)

	_, out, err := s.handleExtractKeywords(ctx, nil, ExtractKeywordsInput{Chunks: []string{"graph graph node"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"graph", "node"}, out.Keywords)

	_, out, err = s.handleExtractKeywords(ctx, nil, ExtractKeywordsInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Keywords)
}

func TestSession_RecreatedAfterDelete(t *testing.T) {
	s := newTestServer(t, &letterEmbedder{}, false)

	first, err := s.session()
	require.NoError(t, err)
	again, err := s.session()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, s.pipeline.DeleteSession(first))
	next, err := s.session()
	require.NoError(t, err)
	assert.NotEqual(t, first, next)
}
