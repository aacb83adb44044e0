// Package extract turns uploaded files into document text.
package extract

import (
	"context"
	"errors"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bull/rag-studio/internal/apperr"
	"github.com/bull/rag-studio/internal/markdown"
)

const (
	// DefaultMaxFileBytes caps the uploaded file size.
	DefaultMaxFileBytes = 10 * 1024 * 1024
	// DefaultMaxTextBytes caps the extracted text size.
	DefaultMaxTextBytes = 10 * 1024 * 1024
)

const unsupportedMessage = "unsupported file type, only TXT, PDF or MD files are accepted"

var (
	acceptedExtensions = []string{".txt", ".md", ".pdf"}
	acceptedMIMETypes  = []string{"text/plain", "application/pdf", "text/markdown", "text/x-markdown"}
)

// Upload is a received file.
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Document is extracted text plus its source metadata.
type Document struct {
	Name    string             `json:"name"`
	Size    int64              `json:"size"`
	Text    string             `json:"text"`
	Outline []markdown.Heading `json:"outline,omitempty"`
}

// Limits bounds file and text sizes in bytes.
type Limits struct {
	MaxFileBytes int64
	MaxTextBytes int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRunner injects the command runner used for PDFs.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithPDFTool overrides the pdftotext binary path.
func WithPDFTool(tool string) Option {
	return func(e *Extractor) {
		if tool != "" {
			e.pdfTool = tool
		}
	}
}

// WithLimits overrides the size limits. Zero fields keep the defaults.
func WithLimits(l Limits) Option {
	return func(e *Extractor) {
		if l.MaxFileBytes > 0 {
			e.limits.MaxFileBytes = l.MaxFileBytes
		}
		if l.MaxTextBytes > 0 {
			e.limits.MaxTextBytes = l.MaxTextBytes
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// Extractor validates uploads and extracts their text.
type Extractor struct {
	runner   CommandRunner
	pdfTool  string
	limits   Limits
	outliner *markdown.Outliner
	logger   *zap.Logger
}

// NewExtractor creates an extractor with default limits and the os/exec runner.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		runner:   ExecRunner{},
		pdfTool:  DefaultPDFTool,
		limits:   Limits{MaxFileBytes: DefaultMaxFileBytes, MaxTextBytes: DefaultMaxTextBytes},
		outliner: markdown.NewOutliner(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limits returns the effective size limits.
func (e *Extractor) Limits() Limits {
	return e.limits
}

// Accepted reports whether a file is a supported type. The extension decides first;
// the MIME type is only consulted for names without a recognised extension.
func Accepted(name, mimeType string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, a := range acceptedExtensions {
		if ext == a {
			return true
		}
	}
	mt := normalizeMIME(mimeType)
	for _, a := range acceptedMIMETypes {
		if mt == a {
			return true
		}
	}
	return false
}

// Extract validates up and returns its text.
func (e *Extractor) Extract(ctx context.Context, up Upload) (*Document, error) {
	if len(up.Data) == 0 && up.Name == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "no file uploaded")
	}
	if !Accepted(up.Name, up.MIMEType) {
		return nil, apperr.New(apperr.KindInvalidInput, unsupportedMessage)
	}
	if int64(len(up.Data)) > e.limits.MaxFileBytes {
		return nil, limitError("file", e.limits.MaxFileBytes, int64(len(up.Data)))
	}

	var text string
	if isPDF(up.Name, up.MIMEType) {
		out, err := e.pdfText(ctx, up.Data)
		if err != nil {
			e.logger.Warn("pdf extraction failed", zap.String("file", up.Name), zap.Error(err))
			if errors.Is(err, ErrPDFToolNotFound) {
				return nil, apperr.Wrap(apperr.KindUpstream, err, "PDF extraction is unavailable: %s", InstallInstructions())
			}
			return nil, apperr.Wrap(apperr.KindInvalidInput, err, "could not extract text from the PDF file")
		}
		text = out
	} else {
		text = decodeUTF8(up.Data)
	}

	return e.FromText(up.Name, text)
}

// FromText builds a Document from already-decoded text, applying the text checks.
func (e *Extractor) FromText(name, text string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "could not extract any text from the file")
	}
	if int64(len(text)) > e.limits.MaxTextBytes {
		return nil, limitError("text", e.limits.MaxTextBytes, int64(len(text)))
	}

	doc := &Document{Name: name, Size: int64(len(text)), Text: text}
	if markdown.IsMarkdown(name) {
		outline, err := e.outliner.Outline([]byte(text))
		if err != nil {
			e.logger.Warn("markdown outline failed", zap.String("file", name), zap.Error(err))
		} else if len(outline) > 0 {
			doc.Outline = outline
		}
	}

	e.logger.Debug("document extracted",
		zap.String("file", name),
		zap.Int64("bytes", doc.Size),
		zap.Int("headings", len(doc.Outline)),
	)
	return doc, nil
}

func limitError(what string, limit, actual int64) error {
	return apperr.New(apperr.KindResourceLimit,
		"%s is too large: the maximum is %.1fMB, actual size is %.2fMB",
		what, megabytes(limit), megabytes(actual))
}

func megabytes(n int64) float64 {
	return float64(n) / 1024 / 1024
}

func isPDF(name, mimeType string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return true
	case ".txt", ".md":
		return false
	}
	return normalizeMIME(mimeType) == "application/pdf"
}

// normalizeMIME strips parameters such as "; charset=utf-8".
func normalizeMIME(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// decodeUTF8 decodes data as UTF-8, replacing invalid sequences and dropping a BOM.
func decodeUTF8(data []byte) string {
	s := strings.TrimPrefix(string(data), "\ufeff")
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}
