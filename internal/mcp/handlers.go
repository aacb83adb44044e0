package mcp

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/chunker"
	"github.com/bull/rag-studio/internal/extract"
	"github.com/bull/rag-studio/internal/github"
	"github.com/bull/rag-studio/internal/pipeline"
	"github.com/bull/rag-studio/internal/session"
)

// Tools run with the process-wide credential, so no request key is passed.
const noRequestKey = ""

func (s *Server) handleChunkText(ctx context.Context, _ *mcp.CallToolRequest, input ChunkTextInput) (
	*mcp.CallToolResult, ChunkTextOutput, error,
) {
	res, err := s.pipeline.Chunk(input.Text, chunkConfig(input.ChunkSize, input.Overlap))
	if err != nil {
		return nil, ChunkTextOutput{}, err
	}

	out := ChunkTextOutput{
		Chunks:    res.Chunks,
		Count:     len(res.Chunks),
		ChunkSize: res.Config.ChunkSize,
		Overlap:   res.Config.Overlap,
	}
	if res.Truncated {
		out.Warning = fmt.Sprintf("the chunk ceiling of %d was reached, remaining text was dropped", len(res.Chunks))
	}
	return nil, out, nil
}

func (s *Server) handleExtractKeywords(ctx context.Context, _ *mcp.CallToolRequest, input ExtractKeywordsInput) (
	*mcp.CallToolResult, ExtractKeywordsOutput, error,
) {
	if len(input.Chunks) > 0 {
		return nil, ExtractKeywordsOutput{Keywords: s.pipeline.Keywords(input.Chunks)}, nil
	}

	id, err := s.session()
	if err != nil {
		return nil, ExtractKeywordsOutput{}, err
	}
	words, err := s.pipeline.SessionKeywords(id)
	if err != nil {
		return nil, ExtractKeywordsOutput{}, err
	}
	return nil, ExtractKeywordsOutput{Keywords: words}, nil
}

func (s *Server) handleLoadDocument(ctx context.Context, _ *mcp.CallToolRequest, input LoadDocumentInput) (
	*mcp.CallToolResult, StepOutput, error,
) {
	sources := 0
	for _, set := range []bool{input.Text != "", input.Path != "", input.GitHub != nil} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, StepOutput{}, apperr.New(apperr.KindInvalidInput, "provide exactly one of text, path or github")
	}

	id, err := s.session()
	if err != nil {
		return nil, StepOutput{}, err
	}

	var res *pipeline.StepResult
	switch {
	case input.GitHub != nil:
		res, err = s.pipeline.LoadGitHubDocument(ctx, noRequestKey, id, github.Source{
			Owner: input.GitHub.Owner,
			Repo:  input.GitHub.Repo,
			Path:  input.GitHub.Path,
			Ref:   input.GitHub.Ref,
		})
	case input.Path != "":
		var up extract.Upload
		up, err = s.readFile(input.Path)
		if err == nil {
			res, err = s.pipeline.LoadDocument(ctx, noRequestKey, id, up)
		}
	default:
		name := input.Name
		if name == "" {
			name = "document.txt"
		}
		res, err = s.pipeline.LoadText(ctx, noRequestKey, id, name, input.Text)
	}
	if err != nil {
		return nil, StepOutput{}, err
	}
	return nil, stepOutput(res), nil
}

func (s *Server) handleSetChunkConfig(ctx context.Context, _ *mcp.CallToolRequest, input SetChunkConfigInput) (
	*mcp.CallToolResult, StepOutput, error,
) {
	id, err := s.session()
	if err != nil {
		return nil, StepOutput{}, err
	}
	res, err := s.pipeline.Configure(ctx, noRequestKey, id, chunkConfig(input.ChunkSize, input.Overlap))
	if err != nil {
		return nil, StepOutput{}, err
	}
	return nil, stepOutput(res), nil
}

// handleEmbedDocument walks the session forward to the retrieval step. Entering
// the embedding step runs the embedding; a failed run is returned as the error.
func (s *Server) handleEmbedDocument(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (
	*mcp.CallToolResult, StepOutput, error,
) {
	id, err := s.session()
	if err != nil {
		return nil, StepOutput{}, err
	}

	out := StepOutput{}
	for {
		st, err := s.pipeline.SessionStatus(id)
		if err != nil {
			return nil, StepOutput{}, err
		}
		if st.Step == session.StepRetrieve {
			out.Status = statusOutput(st)
			return nil, out, nil
		}

		if st.Step == session.StepEmbed && st.VectorCount == 0 {
			res, err := s.pipeline.EmbedSession(ctx, noRequestKey, id)
			if err != nil {
				return nil, StepOutput{}, err
			}
			out.Embedded = out.Embedded || res.Embedded
		}

		res, err := s.pipeline.Next(ctx, noRequestKey, id)
		if err != nil {
			return nil, StepOutput{}, err
		}
		if res.AutoRunError != "" {
			return nil, StepOutput{}, apperr.New(apperr.KindUpstream, "%s", res.AutoRunError)
		}
		out.Embedded = out.Embedded || res.Embedded
		if res.Chunked != nil {
			out.Chunks = res.Chunked.Count
		}
		if res.Warning != "" {
			out.Warning = res.Warning
		}
	}
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	id, err := s.session()
	if err != nil {
		return nil, SearchOutput{}, err
	}
	hits, err := s.pipeline.Search(ctx, noRequestKey, id, input.Query, input.TopK)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, SearchOutput{Results: hits, Count: len(hits)}, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, AskOutput, error,
) {
	id, err := s.session()
	if err != nil {
		return nil, AskOutput{}, err
	}
	res, err := s.pipeline.Ask(ctx, noRequestKey, id, input.Query, input.TopK)
	if err != nil {
		return nil, AskOutput{}, err
	}
	return nil, AskOutput{Answer: res.Answer, Results: res.Results}, nil
}

func (s *Server) handleSessionStatus(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	id, err := s.session()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	st, err := s.pipeline.SessionStatus(id)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, statusOutput(st), nil
}

// readFile loads a local document, refusing it when file access is disabled or
// the file exceeds the upload ceiling.
func (s *Server) readFile(path string) (extract.Upload, error) {
	if !s.allowFiles {
		return extract.Upload{}, apperr.New(apperr.KindInvalidInput, "loading local files is disabled on this server")
	}

	info, err := os.Stat(path)
	if err != nil {
		return extract.Upload{}, apperr.Wrap(apperr.KindInvalidInput, err, "cannot read %s", path)
	}
	if info.IsDir() {
		return extract.Upload{}, apperr.New(apperr.KindInvalidInput, "%s is a directory", path)
	}
	if limit := s.pipeline.UploadLimits().MaxFileBytes; limit > 0 && info.Size() > limit {
		return extract.Upload{}, apperr.New(apperr.KindResourceLimit,
			"file is too large: the maximum is %.1fMB, actual size is %.2fMB",
			float64(limit)/(1024*1024), float64(info.Size())/(1024*1024))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return extract.Upload{}, apperr.Wrap(apperr.KindInvalidInput, err, "cannot read %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	return extract.Upload{
		Name:     filepath.Base(path),
		MIMEType: mime.TypeByExtension(ext),
		Data:     data,
	}, nil
}

func chunkConfig(size, overlap *int) chunker.Config {
	cfg := chunker.DefaultConfig()
	if size != nil {
		cfg.ChunkSize = *size
	}
	if overlap != nil {
		cfg.Overlap = *overlap
	}
	return cfg
}
