// Package answer generates a response to a query grounded in retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/embedding"
)

const (
	// DefaultModel is the chat model used for answers.
	DefaultModel = "gpt-4o-mini"
	// DefaultTemperature and DefaultMaxTokens shape the completion.
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
	// DefaultMaxContextTokens is the context length before truncation (in tokens).
	DefaultMaxContextTokens = 16000
)

const systemPrompt = "You are an assistant that answers questions using the provided document " +
	"content. Base your answer on the document and give an accurate, helpful response."

// Config configures a Synthesizer. Zero values fall back to defaults.
type Config struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	MaxContextTokens int
}

// Synthesizer answers a query from concatenated context using a chat completion.
type Synthesizer struct {
	client           *embedding.Client
	model            string
	temperature      float64
	maxTokens        int
	maxContextTokens int
	logger           *zap.Logger
}

// NewSynthesizer creates a synthesizer sharing the embedding client factory.
func NewSynthesizer(client *embedding.Client, cfg Config, logger *zap.Logger) *Synthesizer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultMaxContextTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{
		client:           client,
		model:            cfg.Model,
		temperature:      cfg.Temperature,
		maxTokens:        cfg.MaxTokens,
		maxContextTokens: cfg.MaxContextTokens,
		logger:           logger,
	}
}

// Answer asks the chat model to answer query using docContext as its only source.
func (s *Synthesizer) Answer(ctx context.Context, apiKey, query, docContext string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", apperr.New(apperr.KindInvalidInput, "no query provided")
	}
	if strings.TrimSpace(docContext) == "" {
		return "", apperr.New(apperr.KindInvalidInput, "no context provided")
	}
	if apiKey == "" {
		return "", apperr.New(apperr.KindMissingCredential, "no OpenAI API key provided")
	}

	resp, err := s.client.ForKey(apiKey).Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(query, s.truncateContext(docContext))),
		},
		Model:       openai.ChatModel(s.model),
		Temperature: openai.Float(s.temperature),
		MaxTokens:   openai.Int(int64(s.maxTokens)),
	})
	if err != nil {
		return "", embedding.Classify(err, "answer generation")
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.KindUpstream, "answer generation returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func buildPrompt(query, docContext string) string {
	return fmt.Sprintf("Answer the question using the following document content:\n\n"+
		"Document content:\n%s\n\nQuestion: %s", docContext, query)
}

// truncateContext truncates context to fit within token limits.
// Uses rough estimate of 4 characters per token.
func (s *Synthesizer) truncateContext(docContext string) string {
	maxChars := s.maxContextTokens * 4

	runes := []rune(docContext)
	if len(runes) <= maxChars {
		return docContext
	}

	s.logger.Warn("truncating answer context",
		zap.Int("from_chars", len(runes)),
		zap.Int("to_chars", maxChars),
		zap.Int("estimated_tokens", s.maxContextTokens),
	)
	return string(runes[:maxChars])
}
