package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/embedding"
)

// TestTruncateContext verifies truncation works correctly for very long context.
func TestTruncateContext(t *testing.T) {
	s := NewSynthesizer(nil, Config{}, nil)

	// ~100k chars, well over 16k tokens
	longContext := strings.Repeat("This is a test content. ", 4000)

	truncated := s.truncateContext(longContext)

	expectedMaxChars := DefaultMaxContextTokens * 4
	if len(truncated) != expectedMaxChars {
		t.Errorf("Expected truncated length %d, got %d", expectedMaxChars, len(truncated))
	}
	if !strings.HasPrefix(longContext, truncated) {
		t.Error("Truncated context should be a prefix of the original")
	}
}

// TestTruncateContext_Short verifies short context is passed through.
func TestTruncateContext_Short(t *testing.T) {
	s := NewSynthesizer(nil, Config{}, nil)
	short := strings.Repeat("Short. ", 140)

	if got := s.truncateContext(short); got != short {
		t.Error("Short context should not be truncated")
	}
}

// TestTruncateContext_Multibyte verifies the cut never splits a character.
func TestTruncateContext_Multibyte(t *testing.T) {
	s := NewSynthesizer(nil, Config{MaxContextTokens: 10}, nil)

	truncated := s.truncateContext(strings.Repeat("한", 100))
	if n := len([]rune(truncated)); n != 40 {
		t.Errorf("Expected 40 characters, got %d", n)
	}
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func newChatServer(t *testing.T, status int, reply string, seen *chatRequest) *Synthesizer {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(server.Close)

	client := embedding.NewClient(embedding.ClientConfig{BaseURL: server.URL + "/v1/"})
	return NewSynthesizer(client, Config{}, nil)
}

func TestAnswer(t *testing.T) {
	t.Run("returns the first choice", func(t *testing.T) {
		var seen chatRequest
		s := newChatServer(t, http.StatusOK, "Paris.", &seen)

		got, err := s.Answer(context.Background(), "sk-test", "What is the capital?", "France's capital is Paris.")
		require.NoError(t, err)
		assert.Equal(t, "Paris.", got)

		assert.Equal(t, DefaultModel, seen.Model)
		assert.InDelta(t, DefaultTemperature, seen.Temperature, 1e-9)
		assert.Equal(t, DefaultMaxTokens, seen.MaxTokens)
		require.Len(t, seen.Messages, 2)
		assert.Equal(t, "system", seen.Messages[0].Role)
		assert.Contains(t, seen.Messages[1].Content, "France's capital is Paris.")
		assert.Contains(t, seen.Messages[1].Content, "Question: What is the capital?")
	})

	t.Run("rejected key", func(t *testing.T) {
		s := newChatServer(t, http.StatusUnauthorized, "", nil)

		_, err := s.Answer(context.Background(), "sk-bad", "q", "ctx")
		assert.True(t, apperr.Is(err, apperr.KindAuth))
	})

	t.Run("input checks precede the request", func(t *testing.T) {
		s := NewSynthesizer(embedding.NewClient(embedding.ClientConfig{}), Config{}, nil)

		_, err := s.Answer(context.Background(), "sk-test", "  ", "ctx")
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

		_, err = s.Answer(context.Background(), "sk-test", "q", "")
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))

		_, err = s.Answer(context.Background(), "", "q", "ctx")
		assert.True(t, apperr.Is(err, apperr.KindMissingCredential))
	})
}
