package embedding

import (
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultTimeout bounds a single OpenAI request.
const DefaultTimeout = 60 * time.Second

// ClientConfig configures how OpenAI clients are built.
type ClientConfig struct {
	// BaseURL overrides the API endpoint (OpenAI-compatible servers, tests).
	BaseURL string
	Timeout time.Duration
}

// Client builds OpenAI clients bound to a caller-supplied API key.
// Keys are never stored; each call gets its own short-lived client.
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a client factory. A zero Timeout uses DefaultTimeout.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		timeout: timeout,
	}
}

// ForKey returns an OpenAI client authenticated with apiKey.
// SDK-level retries are disabled; failures surface to the caller as-is.
func (c *Client) ForKey(apiKey string) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(c.timeout),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}

	client := openai.NewClient(opts...)
	return &client
}
