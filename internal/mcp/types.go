// Package mcp exposes the RAG pipeline as Model Context Protocol tools.
package mcp

import (
	"github.com/bull/rag-studio/internal/markdown"
	"github.com/bull/rag-studio/internal/pipeline"
	"github.com/bull/rag-studio/internal/session"
)

// ChunkTextInput defines the input parameters for the chunk_text tool.
type ChunkTextInput struct {
	Text      string `json:"text" jsonschema:"the text to split into chunks"`
	ChunkSize *int   `json:"chunk_size,omitempty" jsonschema:"window length in characters, clamped to 100-2000 (default 500)"`
	Overlap   *int   `json:"overlap,omitempty" jsonschema:"characters shared by consecutive windows, clamped below chunk_size (default 100)"`
}

// ChunkTextOutput contains the chunks and the normalized window parameters.
type ChunkTextOutput struct {
	Chunks    []string `json:"chunks"`
	Count     int      `json:"count"`
	ChunkSize int      `json:"chunk_size"`
	Overlap   int      `json:"overlap"`
	// Warning is set when the chunk ceiling dropped trailing text.
	Warning string `json:"warning,omitempty"`
}

// ExtractKeywordsInput defines the input parameters for the extract_keywords tool.
type ExtractKeywordsInput struct {
	Chunks []string `json:"chunks,omitempty" jsonschema:"chunk texts to analyze; the loaded document's chunks are used when omitted"`
}

// ExtractKeywordsOutput lists suggested query terms.
type ExtractKeywordsOutput struct {
	Keywords []string `json:"keywords"`
}

// GitHubSource names a markdown or text file in a repository.
type GitHubSource struct {
	Owner string `json:"owner" jsonschema:"repository owner"`
	Repo  string `json:"repo" jsonschema:"repository name"`
	Path  string `json:"path" jsonschema:"file path inside the repository (.md, .markdown or .txt)"`
	Ref   string `json:"ref,omitempty" jsonschema:"branch, tag or commit (default branch when omitted)"`
}

// LoadDocumentInput defines the input parameters for the load_document tool.
// Exactly one source must be given.
type LoadDocumentInput struct {
	Text   string        `json:"text,omitempty" jsonschema:"raw document text"`
	Name   string        `json:"name,omitempty" jsonschema:"document name for raw text; a .md name enables the heading outline"`
	Path   string        `json:"path,omitempty" jsonschema:"local .txt, .md or .pdf file (stdio mode only)"`
	GitHub *GitHubSource `json:"github,omitempty" jsonschema:"repository file to load"`
}

// SetChunkConfigInput defines the input parameters for the set_chunk_config tool.
type SetChunkConfigInput struct {
	ChunkSize *int `json:"chunk_size,omitempty" jsonschema:"window length in characters, clamped to 100-2000 (default 500)"`
	Overlap   *int `json:"overlap,omitempty" jsonschema:"characters shared by consecutive windows (default 100)"`
}

// EmptyInput is the input of tools that take no parameters.
type EmptyInput struct{}

// StepOutput reports the session after a mutation.
type StepOutput struct {
	Status StatusOutput `json:"status"`
	// Chunks is the number of chunks a chunking run produced, when one ran.
	Chunks   int    `json:"chunks,omitempty"`
	Embedded bool   `json:"embedded"`
	Warning  string `json:"warning,omitempty"`
	// AutoRunError is a failed automatic chunking or embedding run.
	AutoRunError string `json:"auto_run_error,omitempty"`
}

// StatusOutput is the session summary returned by session_status.
type StatusOutput struct {
	SessionID           string             `json:"session_id"`
	Step                int                `json:"step"`
	StepName            string             `json:"step_name"`
	Document            string             `json:"document,omitempty"`
	DocumentBytes       int64              `json:"document_bytes,omitempty"`
	Outline             []markdown.Heading `json:"outline,omitempty"`
	ChunkSize           int                `json:"chunk_size"`
	Overlap             int                `json:"overlap"`
	ChunkCount          int                `json:"chunk_count"`
	Truncated           bool               `json:"truncated"`
	VectorCount         int                `json:"vector_count"`
	Dimension           int                `json:"dimension"`
	EmbeddingInProgress bool               `json:"embedding_in_progress"`
}

// SearchInput defines the input parameters for the search and ask tools.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the question or search text"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default 3)"`
}

// SearchOutput contains ranked chunks.
type SearchOutput struct {
	Results []pipeline.Hit `json:"results"`
	Count   int            `json:"count"`
}

// AskOutput is a grounded answer with the chunks it used.
type AskOutput struct {
	Answer  string         `json:"answer"`
	Results []pipeline.Hit `json:"results"`
}

func statusOutput(st session.Status) StatusOutput {
	out := StatusOutput{
		SessionID:           st.ID,
		Step:                int(st.Step),
		StepName:            st.StepName,
		ChunkSize:           st.ChunkConfig.ChunkSize,
		Overlap:             st.ChunkConfig.Overlap,
		ChunkCount:          st.ChunkCount,
		Truncated:           st.Truncated,
		VectorCount:         st.VectorCount,
		Dimension:           st.Dimension,
		EmbeddingInProgress: st.EmbeddingInProgress,
	}
	if st.Document != nil {
		out.Document = st.Document.Name
		out.DocumentBytes = st.Document.Size
		out.Outline = st.Document.Outline
	}
	return out
}

func stepOutput(res *pipeline.StepResult) StepOutput {
	out := StepOutput{
		Status:       statusOutput(res.Session),
		Embedded:     res.Embedded,
		Warning:      res.Warning,
		AutoRunError: res.AutoRunError,
	}
	if res.Chunked != nil {
		out.Chunks = res.Chunked.Count
	}
	return out
}
