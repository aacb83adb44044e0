// Package config loads rag-studio settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Defaults.
const (
	DefaultPort             = 3001
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultBodyLimit        = "50M"
	DefaultEmbeddingModel   = "text-embedding-3-small"
	DefaultChatModel        = "gpt-4o-mini"
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 500
	DefaultOpenAITimeout    = 60 * time.Second
	DefaultBatchSize        = 100
	DefaultMaxUploadBytes   = 10 * 1024 * 1024
	DefaultPDFTool          = "pdftotext"
	DefaultTopK             = 3
	DefaultMaxContextTokens = 16000
	DefaultMaxSessions      = 100
	DefaultIdleTimeout      = time.Hour
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
)

// Config is the complete process configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Upload    UploadConfig    `koanf:"upload"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	GitHub    GitHubConfig    `koanf:"github"`
	Log       LogConfig       `koanf:"log"`
	MCP       MCPConfig       `koanf:"mcp"`
	Session   SessionConfig   `koanf:"session"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// BodyLimit uses echo's size notation, e.g. "50M".
	BodyLimit string `koanf:"body_limit"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OpenAIConfig holds embedding and completion service settings.
type OpenAIConfig struct {
	// APIKey is the process-wide default credential. Requests may override it.
	APIKey          Secret        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	EmbeddingModel  string        `koanf:"embedding_model"`
	ChatModel       string        `koanf:"chat_model"`
	Temperature     float64       `koanf:"temperature"`
	MaxTokens       int           `koanf:"max_tokens"`
	Timeout         time.Duration `koanf:"timeout"`
	BatchSize       int           `koanf:"batch_size"`
	RetryRateLimits bool          `koanf:"retry_rate_limits"`
}

// UploadConfig bounds accepted documents.
type UploadConfig struct {
	MaxFileBytes int64  `koanf:"max_file_bytes"`
	MaxTextBytes int64  `koanf:"max_text_bytes"`
	PDFTool      string `koanf:"pdftotext"`
}

// RetrievalConfig tunes question answering.
type RetrievalConfig struct {
	TopK             int `koanf:"top_k"`
	MaxContextTokens int `koanf:"max_context_tokens"`
}

// GitHubConfig configures the repository document loader.
type GitHubConfig struct {
	Token   Secret `koanf:"token"`
	BaseURL string `koanf:"base_url"`
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MCPConfig controls the tool protocol endpoint.
type MCPConfig struct {
	Enabled   bool `koanf:"enabled"`
	Stateless bool `koanf:"stateless"`
}

// SessionConfig bounds the in-memory session registry.
type SessionConfig struct {
	MaxSessions int `koanf:"max_sessions"`
	// IdleTimeout drops sessions nobody touched for this long.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		return fmt.Errorf("invalid openai temperature: %v (must be 0-2)", c.OpenAI.Temperature)
	}
	if c.OpenAI.MaxTokens < 1 {
		return fmt.Errorf("invalid openai max_tokens: %d", c.OpenAI.MaxTokens)
	}
	if c.OpenAI.BatchSize < 1 || c.OpenAI.BatchSize > 2048 {
		return fmt.Errorf("invalid openai batch_size: %d (must be 1-2048)", c.OpenAI.BatchSize)
	}
	if c.Upload.MaxFileBytes < 1 || c.Upload.MaxTextBytes < 1 {
		return errors.New("upload limits must be positive")
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("invalid retrieval top_k: %d", c.Retrieval.TopK)
	}
	if c.Session.MaxSessions < 1 {
		return fmt.Errorf("invalid session max_sessions: %d", c.Session.MaxSessions)
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("session idle timeout must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or console)", c.Log.Format)
	}
	return nil
}

// applyDefaults fills zero values. Booleans keep their zero value.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.BodyLimit == "" {
		cfg.Server.BodyLimit = DefaultBodyLimit
	}

	if cfg.OpenAI.EmbeddingModel == "" {
		cfg.OpenAI.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = DefaultChatModel
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = DefaultTemperature
	}
	if cfg.OpenAI.MaxTokens == 0 {
		cfg.OpenAI.MaxTokens = DefaultMaxTokens
	}
	if cfg.OpenAI.Timeout == 0 {
		cfg.OpenAI.Timeout = DefaultOpenAITimeout
	}
	if cfg.OpenAI.BatchSize == 0 {
		cfg.OpenAI.BatchSize = DefaultBatchSize
	}

	if cfg.Upload.MaxFileBytes == 0 {
		cfg.Upload.MaxFileBytes = DefaultMaxUploadBytes
	}
	if cfg.Upload.MaxTextBytes == 0 {
		cfg.Upload.MaxTextBytes = DefaultMaxUploadBytes
	}
	if cfg.Upload.PDFTool == "" {
		cfg.Upload.PDFTool = DefaultPDFTool
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Retrieval.MaxContextTokens == 0 {
		cfg.Retrieval.MaxContextTokens = DefaultMaxContextTokens
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = DefaultMaxSessions
	}
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = DefaultIdleTimeout
	}
}
