package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-studio/internal/apperr"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	require.NoError(t, err)
	return NewFetcher(client)
}

func TestSource_Validate(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		ok   bool
	}{
		{"markdown", Source{Owner: "o", Repo: "r", Path: "docs/a.md"}, true},
		{"text", Source{Owner: "o", Repo: "r", Path: "notes.TXT"}, true},
		{"missing owner", Source{Repo: "r", Path: "a.md"}, false},
		{"missing path", Source{Owner: "o", Repo: "r"}, false},
		{"unsupported", Source{Owner: "o", Repo: "r", Path: "main.go"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
			}
		})
	}
}

func TestFetchDoc(t *testing.T) {
	var gotRef string
	fetcher := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/handbook/contents/docs/intro.md", r.URL.Path)
		gotRef = r.URL.Query().Get("ref")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"encoding": "base64",
			"name":     "intro.md",
			"path":     "docs/intro.md",
			"sha":      "abc123",
			"content":  base64.StdEncoding.EncodeToString([]byte("# Intro\n\nWelcome.")),
		})
	})

	doc, err := fetcher.FetchDoc(context.Background(), Source{
		Owner: "acme", Repo: "handbook", Path: "docs/intro.md", Ref: "v2",
	})
	require.NoError(t, err)

	assert.Equal(t, "v2", gotRef)
	assert.Equal(t, "intro.md", doc.Name)
	assert.Equal(t, "# Intro\n\nWelcome.", doc.Content)
	assert.Equal(t, "abc123", doc.SHA)
	assert.Equal(t, "https://raw.githubusercontent.com/acme/handbook/v2/docs/intro.md", doc.URL)
}

func TestFetchDoc_NotFound(t *testing.T) {
	fetcher := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})

	_, err := fetcher.FetchDoc(context.Background(), Source{Owner: "a", Repo: "b", Path: "missing.md"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFetchDoc_Directory(t *testing.T) {
	fetcher := newTestFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"file","name":"a.md","path":"dir.md/a.md"}]`))
	})

	_, err := fetcher.FetchDoc(context.Background(), Source{Owner: "a", Repo: "b", Path: "dir.md"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}
