package mcp

import (
	"context"
	"errors"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/pipeline"
)

// Server wraps the MCP server with the pipeline and the one session its tools act on.
type Server struct {
	server     *mcp.Server
	pipeline   *pipeline.Pipeline
	logger     *zap.Logger
	allowFiles bool

	mu        sync.Mutex
	sessionID string
}

// Config holds server dependencies.
type Config struct {
	Pipeline *pipeline.Pipeline
	Logger   *zap.Logger
	Version  string
	// AllowFiles lets load_document read local paths. Enable only for stdio use.
	AllowFiles bool
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}

	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "rag-studio",
			Version: version,
		}, nil),
		pipeline:   cfg.Pipeline,
		logger:     logger,
		allowFiles: cfg.AllowFiles,
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chunk_text",
		Description: "Split text into overlapping fixed-size chunks. Stateless; does not touch the loaded document.",
	}, s.handleChunkText)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "extract_keywords",
		Description: "Suggest up to five query terms from chunk texts, or from the loaded document's chunks.",
	}, s.handleExtractKeywords)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "load_document",
		Description: "Load a document from raw text, a local file or a GitHub repository file, replacing the current one. The document is chunked immediately.",
	}, s.handleLoadDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "set_chunk_config",
		Description: "Change chunk size and overlap. A loaded document is re-chunked and its embeddings are discarded.",
	}, s.handleSetChunkConfig)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "embed_document",
		Description: "Embed the loaded document's chunks and advance to the retrieval step.",
	}, s.handleEmbedDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Return the chunks most similar to a query. Requires embed_document first.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the most similar chunks of the loaded document. Requires embed_document first.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "session_status",
		Description: "Show the pipeline step, document, chunk configuration and vector counts.",
	}, s.handleSessionStatus)
}

// Run serves over stdio until the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// session returns the tools' session, creating it on first use or after it was dropped.
func (s *Server) session() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionID != "" {
		_, err := s.pipeline.SessionStatus(s.sessionID)
		if err == nil {
			return s.sessionID, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return "", err
		}
	}

	st, err := s.pipeline.CreateSession()
	if err != nil {
		return "", err
	}
	s.sessionID = st.ID
	s.logger.Debug("mcp session created", zap.String("session_id", st.ID))
	return st.ID, nil
}
