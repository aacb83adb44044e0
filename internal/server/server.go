// Package server exposes the pipeline over HTTP with echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/metrics"
	"github.com/bull/rag-studio/internal/pipeline"
)

// Config holds HTTP server settings.
type Config struct {
	Host string
	Port int
	// BodyLimit uses echo's size notation ("50M"). Empty disables the limit.
	BodyLimit string
	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

// Server serves the stateless stage endpoints, the session surface, /metrics and /mcp.
type Server struct {
	echo     *echo.Echo
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	logger   *zap.Logger
	config   *Config
}

// NewServer creates the HTTP server. m may be nil.
func NewServer(p *pipeline.Pipeline, m *metrics.Metrics, logger *zap.Logger, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 3001}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		pipeline: p,
		metrics:  m,
		logger:   logger,
		config:   cfg,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(s.requestLogger)
	e.Use(m.Middleware())
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil && !c.Response().Committed {
			status = statusOf(err)
		}

		s.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return err
	}
}

// registerRoutes mounts the stage endpoints both at the root and under /api.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleLanding)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	if s.config.MCP != nil {
		s.echo.Any("/mcp", echo.WrapHandler(s.config.MCP))
	}

	for _, g := range []*echo.Group{s.echo.Group(""), s.echo.Group("/api")} {
		g.GET("/health", s.handleHealth)
		g.POST("/upload", s.handleUpload)
		g.POST("/chunk", s.handleChunk)
		g.POST("/embed", s.handleEmbed)
		g.POST("/query", s.handleQuery)
		g.POST("/extract-keywords", s.handleExtractKeywords)
		g.POST("/validate-key", s.handleValidateKey)

		sessions := g.Group("/sessions")
		sessions.POST("", s.handleCreateSession)
		sessions.GET("", s.handleListSessions)
		sessions.GET("/:id", s.handleGetSession)
		sessions.DELETE("/:id", s.handleDeleteSession)
		sessions.POST("/:id/reset", s.handleResetSession)
		sessions.POST("/:id/document", s.handleSessionDocument)
		sessions.POST("/:id/document/github", s.handleSessionGitHubDocument)
		sessions.POST("/:id/document/text", s.handleSessionText)
		sessions.PUT("/:id/config", s.handleSessionConfig)
		sessions.POST("/:id/chunk", s.handleSessionRechunk)
		sessions.POST("/:id/embed", s.handleSessionEmbed)
		sessions.POST("/:id/next", s.handleSessionNext)
		sessions.POST("/:id/back", s.handleSessionBack)
		sessions.POST("/:id/jump", s.handleSessionJump)
		sessions.POST("/:id/ask", s.handleSessionAsk)
		sessions.GET("/:id/keywords", s.handleSessionKeywords)
		sessions.GET("/:id/export", s.handleSessionExport)
	}
}

// ServeHTTP lets the server be driven directly, e.g. by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
