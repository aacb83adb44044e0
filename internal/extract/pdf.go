package extract

import (
	"context"
	"errors"
	"os"
	"os/exec"
)

// DefaultPDFTool is the poppler command used to pull text out of PDFs.
const DefaultPDFTool = "pdftotext"

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CheckPDFTool reports whether the configured PDF tool can be found.
func (e *Extractor) CheckPDFTool() error {
	if _, err := exec.LookPath(e.pdfTool); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install pdftotext.
func InstallInstructions() string {
	return "PDF support needs pdftotext from poppler: " +
		"brew install poppler (macOS) or apt install poppler-utils (Debian/Ubuntu)"
}

// pdfText writes data to a temp file and runs the PDF tool over it, printing to stdout.
func (e *Extractor) pdfText(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "rag-upload-*.pdf")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	out, err := e.runner.Run(ctx, e.pdfTool, "-enc", "UTF-8", "-layout", tmp.Name(), "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrPDFToolNotFound
		}
		return "", err
	}
	return string(out), nil
}
