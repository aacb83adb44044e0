// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"strings"

	"github.com/bull/rag-studio/internal/apperr"
)

const (
	// DefaultChunkSize is the window length used when none is given.
	DefaultChunkSize = 500
	// DefaultOverlap is the overlap used when none is given.
	DefaultOverlap = 100

	// MinChunkSize and MaxChunkSize bound a user-supplied window length.
	MinChunkSize = 100
	MaxChunkSize = 2000

	// MaxChunks caps the number of chunks produced from one document.
	MaxChunks = 10000
)

// Config holds the window parameters for one chunking run.
type Config struct {
	ChunkSize int `json:"chunkSize"`
	Overlap   int `json:"overlap"`
}

// DefaultConfig returns {500, 100}.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}
}

// Normalize clamps ChunkSize to [MinChunkSize, MaxChunkSize] and Overlap to [0, ChunkSize-1].
func (c Config) Normalize() Config {
	size := clamp(c.ChunkSize, MinChunkSize, MaxChunkSize)
	return Config{
		ChunkSize: size,
		Overlap:   clamp(c.Overlap, 0, size-1),
	}
}

// Result is the output of a chunking run.
type Result struct {
	Chunks []string
	// Truncated is set when MaxChunks was reached before the end of the text.
	Truncated bool
	// Config is the normalized configuration that produced Chunks.
	Config Config
}

// Chunker splits text using a sliding window over characters.
type Chunker struct {
	maxChunks int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxChunks overrides the chunk ceiling.
func WithMaxChunks(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxChunks = n
		}
	}
}

// NewChunker creates a chunker with the default ceiling of MaxChunks.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{maxChunks: MaxChunks}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk normalizes cfg and splits text into trimmed, non-empty windows in document order.
// Returns an InvalidInput error for empty text.
func (c *Chunker) Chunk(text string, cfg Config) (*Result, error) {
	if len(text) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "text is empty")
	}

	cfg = cfg.Normalize()
	chunks, truncated := window([]rune(text), cfg.ChunkSize, cfg.Overlap, c.maxChunks)

	return &Result{
		Chunks:    chunks,
		Truncated: truncated,
		Config:    cfg,
	}, nil
}

func window(runes []rune, size, overlap, limit int) ([]string, bool) {
	length := len(runes)
	chunks := make([]string, 0, estimate(length, size, overlap, limit))

	start := 0
	for start < length && len(chunks) < limit {
		end := min(start+size, length)

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, start < length
}

// estimate sizes the output slice; it never affects the result.
func estimate(length, size, overlap, limit int) int {
	step := size - overlap
	if step < 1 {
		step = 1
	}
	return min(length/step+1, limit)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
