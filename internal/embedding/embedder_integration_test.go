//go:build integration

package embedding

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Run with: OPENAI_API_KEY=sk-... go test -tags=integration ./internal/embedding/
func TestEmbedder_Live(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	e := NewEmbedder(NewClient(ClientConfig{}), EmbedderConfig{BatchSize: 2}, zap.NewNop())

	vectors, err := e.GenerateEmbeddings(ctx, apiKey, []string{"first chunk", "second chunk", "third chunk"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Len(t, vectors[0], 1536, "text-embedding-3-small dimension")
	assert.Len(t, vectors[2], len(vectors[0]))

	v := e.ValidateKey(ctx, apiKey)
	assert.True(t, v.Valid, v.Message)
}
