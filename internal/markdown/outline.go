// Package markdown derives structural metadata from markdown documents.
package markdown

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// MaxDepth is the deepest heading level kept in an outline.
const MaxDepth = 3

// Heading is one entry of a document outline.
type Heading struct {
	Level int    `json:"level"` // Nesting depth, 1-based
	Title string `json:"title"`
	Path  string `json:"path"` // Hierarchy: "# Guide > ## Setup"
}

// Outliner extracts heading outlines with a goldmark parser.
type Outliner struct {
	parser goldmark.Markdown
}

// NewOutliner creates an outliner configured with auto heading IDs.
func NewOutliner() *Outliner {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Outliner{parser: md}
}

// Outline returns the document's headings in reading order.
// A document without headings has an empty outline.
func (o *Outliner) Outline(source []byte) ([]Heading, error) {
	doc := o.parser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(MaxDepth),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	headings := []Heading{}
	collect(tree.Items, nil, &headings)
	return headings, nil
}

// collect walks TOC items depth-first, building header paths from ancestors.
func collect(items toc.Items, ancestors []string, out *[]Heading) {
	for _, item := range items {
		path := ancestors
		title := strings.TrimSpace(string(item.Title))

		// Compact trees still carry untitled items for skipped levels.
		if title != "" {
			path = append(append([]string(nil), ancestors...), title)
			*out = append(*out, Heading{
				Level: len(path),
				Title: title,
				Path:  formatHeaderPath(path),
			})
		}

		if len(item.Items) > 0 {
			collect(item.Items, path, out)
		}
	}
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Installation", "Prerequisites"] -> "# Installation > ## Prerequisites"
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = strings.Repeat("#", i+1) + " " + segment
	}
	return strings.Join(parts, " > ")
}

// IsMarkdown reports whether a file name has a markdown extension.
func IsMarkdown(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".markdown")
}
