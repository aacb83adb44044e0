// Package main provides the rag CLI: one-shot chunking, keyword and question
// commands over local files, plus the MCP server on stdio.
package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/app"
	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/chunker"
	"github.com/bull/rag-studio/internal/config"
	"github.com/bull/rag-studio/internal/extract"
	"github.com/bull/rag-studio/internal/logging"
	mcpserver "github.com/bull/rag-studio/internal/mcp"
)

// version is set at build time.
var version = "dev"

var (
	configPath string
	chunkSize  int
	overlap    int
	topK       int
)

var rootCmd = &cobra.Command{
	Use:           "rag",
	Short:         "Walk a document through chunking, embedding and retrieval",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var chunkCmd = &cobra.Command{
	Use:   "chunk FILE",
	Short: "Split a .txt, .md or .pdf file into chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunk,
}

var keywordsCmd = &cobra.Command{
	Use:   "keywords FILE",
	Short: "Suggest queries from the most frequent terms of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeywords,
}

var askCmd = &cobra.Command{
	Use:   "ask FILE QUESTION",
	Short: "Answer a question from the most similar chunks of a file",
	Long: `Chunks the file, embeds every chunk, retrieves the chunks most similar
to the question and answers from them. Nothing is kept between runs.

Environment variables:
  OPENAI_API_KEY  OpenAI API key (required)
  OPENAI_BASE_URL OpenAI-compatible endpoint (optional)`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("RAG_CONFIG"), "path to a YAML config file")

	for _, cmd := range []*cobra.Command{chunkCmd, keywordsCmd, askCmd} {
		cmd.Flags().IntVar(&chunkSize, "chunk-size", chunker.DefaultChunkSize, "window length in characters (100-2000)")
		cmd.Flags().IntVar(&overlap, "overlap", chunker.DefaultOverlap, "characters shared by consecutive windows")
	}
	askCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to answer from (default from config)")

	rootCmd.AddCommand(chunkCmd, keywordsCmd, askCmd, mcpCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperr.Message(err))
		os.Exit(1)
	}
}

// setup loads configuration and wires the pipeline.
func setup() (*app.App, *zap.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return app.New(cfg, logger), logger, nil
}

func runChunk(cmd *cobra.Command, args []string) error {
	a, _, err := setup()
	if err != nil {
		return err
	}
	doc, err := readDocument(cmd.Context(), a.Extractor, args[0])
	if err != nil {
		return err
	}

	res, err := a.Pipeline.Chunk(doc.Text, chunker.Config{ChunkSize: chunkSize, Overlap: overlap})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d chunks (size %d, overlap %d)\n",
		doc.Name, len(res.Chunks), res.Config.ChunkSize, res.Config.Overlap)
	if res.Truncated {
		fmt.Fprintf(out, "warning: the chunk ceiling of %d was reached, remaining text was dropped\n", len(res.Chunks))
	}
	for i, c := range res.Chunks {
		fmt.Fprintf(out, "\n--- chunk %d (%d chars) ---\n%s\n", i, len([]rune(c)), c)
	}
	return nil
}

func runKeywords(cmd *cobra.Command, args []string) error {
	a, _, err := setup()
	if err != nil {
		return err
	}
	doc, err := readDocument(cmd.Context(), a.Extractor, args[0])
	if err != nil {
		return err
	}

	res, err := a.Pipeline.Chunk(doc.Text, chunker.Config{ChunkSize: chunkSize, Overlap: overlap})
	if err != nil {
		return err
	}
	for _, word := range a.Pipeline.Keywords(res.Chunks) {
		fmt.Fprintln(cmd.OutOrStdout(), word)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, _, err := setup()
	if err != nil {
		return err
	}
	doc, err := readDocument(cmd.Context(), a.Extractor, args[0])
	if err != nil {
		return err
	}

	res, err := a.Pipeline.AskText(cmd.Context(), "", doc.Text,
		chunker.Config{ChunkSize: chunkSize, Overlap: overlap}, args[1], topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Answer)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Sources (top %d):\n", res.TopK)
	for _, hit := range res.Results {
		fmt.Fprintf(out, "  [%d] %.3f  %s\n", hit.ID, hit.Similarity, preview(hit.Text, 80))
	}
	return nil
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	server, err := mcpserver.NewServer(&mcpserver.Config{
		Pipeline:   a.Pipeline,
		Logger:     logger.Named("mcp"),
		Version:    version,
		AllowFiles: true,
	})
	if err != nil {
		return err
	}

	logger.Info("serving mcp over stdio", zap.String("version", version))
	return server.Run(ctx)
}

// readDocument extracts a local file with the same checks as an upload.
func readDocument(ctx context.Context, ex *extract.Extractor, path string) (*extract.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if limit := ex.Limits().MaxFileBytes; info.Size() > limit {
		return nil, apperr.New(apperr.KindResourceLimit,
			"file is too large: the maximum is %.1fMB, actual size is %.2fMB",
			float64(limit)/(1024*1024), float64(info.Size())/(1024*1024))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ex.Extract(ctx, extract.Upload{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Data:     data,
	})
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
