package embedding

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"go.uber.org/zap"
)

// KeyPrefix is the required prefix of an OpenAI secret key.
const KeyPrefix = "sk-"

// Validation is the outcome of checking an API key.
type Validation struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ValidateKey checks the key format, then probes the embedding endpoint with a one-word input.
// Upstream failures never escape as errors: they map to Valid=false with a message.
func (e *Embedder) ValidateKey(ctx context.Context, apiKey string) Validation {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return Validation{Valid: false, Message: "no API key provided"}
	}
	if !strings.HasPrefix(apiKey, KeyPrefix) {
		return Validation{Valid: false, Message: "malformed API key (must start with " + KeyPrefix + ")"}
	}

	_, err := e.client.ForKey(apiKey).Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String("test"),
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err == nil {
		return Validation{Valid: true, Message: "API key is valid"}
	}

	if isAuthError(err, true) {
		return Validation{Valid: false, Message: "invalid API key"}
	}

	e.logger.Warn("api key validation failed", zap.Error(err))
	return Validation{Valid: false, Message: "could not validate the API key, check your network connection"}
}
