package extract

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-studio/internal/apperr"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error

	name string
	args []string
	seen []byte
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	// The input path precedes the "-" stdout marker.
	if len(args) >= 2 {
		m.seen, _ = os.ReadFile(args[len(args)-2])
	}
	return m.output, m.err
}

func TestAccepted(t *testing.T) {
	tests := []struct {
		name, file, mime string
		want             bool
	}{
		{"txt extension", "notes.txt", "application/octet-stream", true},
		{"md extension upper case", "README.MD", "", true},
		{"pdf extension", "paper.pdf", "", true},
		{"plain mime", "notes", "text/plain; charset=utf-8", true},
		{"markdown mime", "notes", "text/x-markdown", true},
		{"pdf mime", "scan.bin", "application/pdf", true},
		{"rejected", "image.png", "image/png", false},
		{"docx rejected", "report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accepted(tt.file, tt.mime))
		})
	}
}

func TestExtract_Text(t *testing.T) {
	e := NewExtractor()

	doc, err := e.Extract(context.Background(), Upload{Name: "notes.txt", Data: []byte("hello world")})
	require.NoError(t, err)
	assert.Equal(t, "hello world", doc.Text)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, int64(11), doc.Size)
	assert.Empty(t, doc.Outline)
}

func TestExtract_MarkdownOutline(t *testing.T) {
	e := NewExtractor()

	doc, err := e.Extract(context.Background(), Upload{
		Name: "guide.md",
		Data: []byte("# Guide\n\nIntro.\n\n## Setup\n\nSteps.\n"),
	})
	require.NoError(t, err)
	require.Len(t, doc.Outline, 2)
	assert.Equal(t, "# Guide > ## Setup", doc.Outline[1].Path)
}

func TestExtract_StripsBOMAndRepairsUTF8(t *testing.T) {
	e := NewExtractor()

	data := append([]byte("\xef\xbb\xbf"), []byte("안녕 \xff world")...)
	doc, err := e.Extract(context.Background(), Upload{Name: "a.txt", Data: data})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.Text, "안녕"))
	assert.Contains(t, doc.Text, "�")
}

func TestExtract_Rejections(t *testing.T) {
	e := NewExtractor(WithLimits(Limits{MaxFileBytes: 64, MaxTextBytes: 32}))

	t.Run("unsupported type", func(t *testing.T) {
		_, err := e.Extract(context.Background(), Upload{Name: "a.png", MIMEType: "image/png", Data: []byte("x")})
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	})

	t.Run("whitespace only", func(t *testing.T) {
		_, err := e.Extract(context.Background(), Upload{Name: "a.txt", Data: []byte("  \n\t ")})
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	})

	t.Run("file too large", func(t *testing.T) {
		_, err := e.Extract(context.Background(), Upload{Name: "a.txt", Data: make([]byte, 65)})
		assert.True(t, apperr.Is(err, apperr.KindResourceLimit))
	})

	t.Run("text too large names limit and size", func(t *testing.T) {
		_, err := e.Extract(context.Background(), Upload{Name: "a.txt", Data: []byte(strings.Repeat("x", 40))})
		require.True(t, apperr.Is(err, apperr.KindResourceLimit))
		assert.Contains(t, apperr.Message(err), "maximum")
		assert.Contains(t, apperr.Message(err), "actual size")
	})
}

func TestExtract_PDF(t *testing.T) {
	runner := &mockRunner{output: []byte("Extracted PDF text")}
	e := NewExtractor(WithRunner(runner), WithPDFTool("/opt/bin/pdftotext"))

	doc, err := e.Extract(context.Background(), Upload{Name: "paper.pdf", Data: []byte("%PDF-1.4 fake")})
	require.NoError(t, err)
	assert.Equal(t, "Extracted PDF text", doc.Text)
	assert.Equal(t, "/opt/bin/pdftotext", runner.name)
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
	assert.Equal(t, []byte("%PDF-1.4 fake"), runner.seen)
}

func TestExtract_PDFFailures(t *testing.T) {
	t.Run("tool missing", func(t *testing.T) {
		e := NewExtractor(WithRunner(&mockRunner{err: ErrPDFToolNotFound}))
		_, err := e.Extract(context.Background(), Upload{Name: "a.pdf", Data: []byte("x")})
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
		assert.Contains(t, apperr.Message(err), "pdftotext")
	})

	t.Run("corrupt file", func(t *testing.T) {
		e := NewExtractor(WithRunner(&mockRunner{err: errors.New("exit status 1")}))
		_, err := e.Extract(context.Background(), Upload{Name: "a.pdf", Data: []byte("x")})
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	})

	t.Run("no text layer", func(t *testing.T) {
		e := NewExtractor(WithRunner(&mockRunner{output: []byte("\f\n")}))
		_, err := e.Extract(context.Background(), Upload{Name: "a.pdf", Data: []byte("x")})
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	})
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
}

func TestCheckPDFTool_Missing(t *testing.T) {
	e := NewExtractor(WithPDFTool("rag-studio-no-such-pdftotext"))
	assert.ErrorIs(t, e.CheckPDFTool(), ErrPDFToolNotFound)
}

func TestInterfaceCompliance(t *testing.T) {
	var _ CommandRunner = ExecRunner{}
}
