package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultEmbeddingModel, cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, DefaultChatModel, cfg.OpenAI.ChatModel)
	assert.InDelta(t, 0.7, cfg.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.OpenAI.MaxTokens)
	assert.False(t, cfg.OpenAI.RetryRateLimits)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxFileBytes)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxTextBytes)
	assert.Equal(t, "pdftotext", cfg.Upload.PDFTool)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, DefaultMaxSessions, cfg.Session.MaxSessions)
	assert.Equal(t, time.Hour, cfg.Session.IdleTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_SessionIdleTimeoutFromEnv(t *testing.T) {
	t.Setenv("SESSION_IDLE_TIMEOUT", "15m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Session.IdleTimeout)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `server:
  host: 127.0.0.1
  port: 8081
  shutdown_timeout: 3s
openai:
  chat_model: gpt-4o
  retry_rate_limits: true
retrieval:
  top_k: 5
log:
  format: console
mcp:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8081", cfg.Server.Addr())
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
	assert.True(t, cfg.OpenAI.RetryRateLimits)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.MCP.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8081\nopenai:\n  embedding_model: from-file\n")

	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("OPENAI_MAX_TOKENS", "800")
	t.Setenv("UPLOAD_MAX_FILE_BYTES", "2048")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sk-from-env", cfg.OpenAI.APIKey.Value())
	assert.Equal(t, 800, cfg.OpenAI.MaxTokens)
	assert.Equal(t, int64(2048), cfg.Upload.MaxFileBytes)
	assert.Equal(t, "from-file", cfg.OpenAI.EmbeddingModel)
}

func TestLoad_PortAlias(t *testing.T) {
	t.Setenv("PORT", "4000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "server: [port"))
		assert.Error(t, err)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "70000")
		_, err := Load("")
		assert.ErrorContains(t, err, "invalid server port")
	})
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"SERVER_PORT":                  "server.port",
		"OPENAI_API_KEY":               "openai.api_key",
		"OPENAI_RETRY_RATE_LIMITS":     "openai.retry_rate_limits",
		"RETRIEVAL_MAX_CONTEXT_TOKENS": "retrieval.max_context_tokens",
		"PORT":                         "server.port",
		"HOME":                         "",
		"PATH":                         "",
		"GOPATH_EXTRA":                 "",
		"LOG_":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = -1 }},
		{"shutdown", func(c *Config) { c.Server.ShutdownTimeout = -time.Second }},
		{"temperature", func(c *Config) { c.OpenAI.Temperature = 3 }},
		{"batch size", func(c *Config) { c.OpenAI.BatchSize = 5000 }},
		{"top k", func(c *Config) { c.Retrieval.TopK = -2 }},
		{"sessions", func(c *Config) { c.Session.MaxSessions = -1 }},
		{"idle timeout", func(c *Config) { c.Session.IdleTimeout = -time.Minute }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSecret_Redacted(t *testing.T) {
	s := Secret("sk-12345")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "sk-12345")
	assert.Equal(t, "sk-12345", s.Value())
	assert.Empty(t, Secret("").String())
}
