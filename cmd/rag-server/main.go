// Package main runs the RAG Studio HTTP server, with the MCP endpoint mounted at /mcp.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/app"
	"github.com/bull/rag-studio/internal/config"
	"github.com/bull/rag-studio/internal/logging"
	mcpserver "github.com/bull/rag-studio/internal/mcp"
	"github.com/bull/rag-studio/internal/server"
)

// version is set at build time.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "rag-server",
		Short: "Serve the RAG Studio HTTP API",
		Long: `Serves the session API over HTTP and, unless mcp.enabled is false,
the MCP tools at /mcp.

Environment variables override the config file, e.g. SERVER_PORT,
OPENAI_API_KEY and LOG_LEVEL.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", os.Getenv("RAG_CONFIG"), "path to a YAML config file")
	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "rag-server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a := app.New(cfg, logger)

	srvCfg := &server.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		BodyLimit: cfg.Server.BodyLimit,
	}
	if cfg.MCP.Enabled {
		tools, err := mcpserver.NewServer(&mcpserver.Config{
			Pipeline: a.Pipeline,
			Logger:   logger.Named("mcp"),
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("create mcp server: %w", err)
		}
		srvCfg.MCP = mcpserver.NewHTTPHandler(tools, &mcpserver.HTTPHandlerOptions{
			Stateless: cfg.MCP.Stateless,
		})
	}

	srv, err := server.NewServer(a.Pipeline, a.Metrics, logger.Named("http"), srvCfg)
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	if !a.Credentials.HasDefault() {
		logger.Warn("no default OpenAI API key configured; requests must send one")
	}
	logger.Info("starting rag-studio",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("mcp", cfg.MCP.Enabled),
		zap.String("version", version),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
