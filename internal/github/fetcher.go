package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/bull/rag-studio/internal/apperr"
)

var supportedExtensions = []string{".md", ".markdown", ".txt"}

// Source identifies one file in a repository.
type Source struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Path  string `json:"path"`
	Ref   string `json:"ref,omitempty"` // Branch, tag or SHA; empty means the default branch
}

// Validate checks that the source names a supported file.
func (s Source) Validate() error {
	if strings.TrimSpace(s.Owner) == "" || strings.TrimSpace(s.Repo) == "" || strings.TrimSpace(s.Path) == "" {
		return apperr.New(apperr.KindInvalidInput, "owner, repo and path are required")
	}
	ext := strings.ToLower(path.Ext(s.Path))
	for _, supported := range supportedExtensions {
		if ext == supported {
			return nil
		}
	}
	return apperr.New(apperr.KindInvalidInput, "only markdown and text files can be loaded from GitHub")
}

// FetchedDoc represents a document fetched from GitHub
type FetchedDoc struct {
	Name    string // Base file name
	Path    string // Path within the repository
	Content string
	SHA     string // File's Git blob SHA
	URL     string // GitHub raw URL
}

// Fetcher loads single files from GitHub repositories.
type Fetcher struct {
	client *Client
}

// NewFetcher creates a new document fetcher
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// FetchDoc fetches the content of one file.
func (f *Fetcher) FetchDoc(ctx context.Context, src Source) (*FetchedDoc, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	var opts *github.RepositoryContentGetOptions
	if src.Ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: src.Ref}
	}

	fileContent, _, _, err := f.client.Repositories.GetContents(ctx, src.Owner, src.Repo, src.Path, opts)
	if err != nil {
		return nil, classify(err, src)
	}
	if fileContent == nil {
		return nil, apperr.New(apperr.KindInvalidInput, "%s is a directory, not a file", src.Path)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "failed to decode content of %s", src.Path)
	}

	ref := src.Ref
	if ref == "" {
		ref = "HEAD"
	}
	rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s", src.Owner, src.Repo, ref, src.Path)

	return &FetchedDoc{
		Name:    path.Base(src.Path),
		Path:    src.Path,
		Content: content,
		SHA:     fileContent.GetSHA(),
		URL:     rawURL,
	}, nil
}

func classify(err error, src Source) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return apperr.Wrap(apperr.KindNotFound, err, "%s not found in %s/%s", src.Path, src.Owner, src.Repo)
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrap(apperr.KindAuth, err, "GitHub denied access to %s/%s", src.Owner, src.Repo)
		}
	}
	return apperr.Wrap(apperr.KindUpstream, err, "failed to get content of %s", src.Path)
}
