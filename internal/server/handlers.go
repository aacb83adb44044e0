package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/chunker"
	"github.com/bull/rag-studio/internal/credential"
	"github.com/bull/rag-studio/internal/extract"
)

// uploadField is the multipart field carrying the document.
const uploadField = "file"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ChunkRequest is the body of POST /chunk. The window parameters are loosely
// typed: numbers, numeric strings, or absent.
type ChunkRequest struct {
	Text      json.RawMessage `json:"text"`
	ChunkSize json.RawMessage `json:"chunkSize"`
	Overlap   json.RawMessage `json:"overlap"`
}

// ChunkResponse is the body returned by POST /chunk.
type ChunkResponse struct {
	Chunks  []string       `json:"chunks"`
	Config  chunker.Config `json:"config"`
	Warning string         `json:"warning,omitempty"`
}

// ChunksRequest carries chunk texts for /embed and /extract-keywords.
type ChunksRequest struct {
	Chunks []string `json:"chunks"`
}

// EmbedResponse is the body returned by POST /embed.
type EmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query   string `json:"query"`
	Context string `json:"context"`
}

// QueryResponse is the body returned by POST /query.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// KeywordsResponse carries suggested queries.
type KeywordsResponse struct {
	Keywords []string `json:"keywords"`
}

// ValidateKeyRequest is the body of POST /validate-key.
type ValidateKeyRequest struct {
	APIKey string `json:"apiKey"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleUpload(c echo.Context) error {
	up, err := s.readUpload(c)
	if err != nil {
		return err
	}
	doc, err := s.pipeline.Extract(c.Request().Context(), up)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleChunk(c echo.Context) error {
	var req ChunkRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	text, present, ok := stringParam(req.Text)
	switch {
	case !ok:
		return invalid("text must be a string")
	case !present || text == "":
		return invalid("no text provided")
	}

	cfg := chunker.Config{
		ChunkSize: intParam(req.ChunkSize, chunker.DefaultChunkSize),
		Overlap:   intParam(req.Overlap, chunker.DefaultOverlap),
	}
	res, err := s.pipeline.Chunk(text, cfg)
	if err != nil {
		return err
	}

	resp := ChunkResponse{Chunks: res.Chunks, Config: res.Config}
	if res.Truncated {
		resp.Warning = fmt.Sprintf("the chunk ceiling of %d was reached, remaining text was dropped", len(res.Chunks))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEmbed(c echo.Context) error {
	var req ChunksRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if len(req.Chunks) == 0 {
		return invalid("no chunks provided")
	}

	vectors, err := s.pipeline.Embed(c.Request().Context(), requestKey(c), req.Chunks)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, EmbedResponse{Embeddings: vectors})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	answer, err := s.pipeline.Answer(c.Request().Context(), requestKey(c), req.Query, req.Context)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, QueryResponse{Answer: answer})
}

func (s *Server) handleExtractKeywords(c echo.Context) error {
	var req ChunksRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if len(req.Chunks) == 0 {
		return invalid("no chunks provided")
	}
	return c.JSON(http.StatusOK, KeywordsResponse{Keywords: s.pipeline.Keywords(req.Chunks)})
}

// handleValidateKey prefers the header key over the body key. It never reports a
// server error: upstream trouble is a failed validation.
func (s *Server) handleValidateKey(c echo.Context) error {
	var req ValidateKeyRequest
	// A malformed body is treated as a missing key.
	_ = c.Bind(&req)

	bodyKey := strings.TrimSpace(req.APIKey)
	headerKey := strings.TrimSpace(requestKey(c))
	result := s.pipeline.ValidateKey(c.Request().Context(), bodyKey, headerKey)
	status := http.StatusOK
	if bodyKey == "" && headerKey == "" {
		status = http.StatusBadRequest
	}
	return c.JSON(status, result)
}

// readUpload reads the multipart document field, refusing files over the size ceiling
// before buffering them.
func (s *Server) readUpload(c echo.Context) (extract.Upload, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return extract.Upload{}, invalid("no file uploaded")
		}
		return extract.Upload{}, apperr.Wrap(apperr.KindInvalidInput, err, "malformed upload")
	}

	limit := s.pipeline.UploadLimits().MaxFileBytes
	if limit > 0 && fh.Size > limit {
		return extract.Upload{}, apperr.New(apperr.KindResourceLimit,
			"file is too large: the maximum is %.1fMB, actual size is %.2fMB",
			float64(limit)/(1024*1024), float64(fh.Size)/(1024*1024))
	}

	data, err := readFormFile(fh)
	if err != nil {
		return extract.Upload{}, apperr.Wrap(apperr.KindInvalidInput, err, "could not read the uploaded file")
	}
	return extract.Upload{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get(echo.HeaderContentType),
		Data:     data,
	}, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// bind decodes the request body, reporting malformed JSON as InvalidInput.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, err, "malformed request body")
	}
	return nil
}

func requestKey(c echo.Context) string {
	return c.Request().Header.Get(credential.Header)
}
