// Package keywords suggests queries from the most frequent terms in a chunk set.
package keywords

import (
	"regexp"
	"slices"
	"strings"
)

// DefaultLimit is the number of keywords returned by Extract.
const DefaultLimit = 5

// Extractor ranks tokens by frequency with stop words removed.
type Extractor struct {
	tokenPattern *regexp.Regexp
	stopWords    map[string]struct{}
	limit        int
}

// NewExtractor creates an extractor with the bilingual stop-word list.
func NewExtractor() *Extractor {
	return &Extractor{
		tokenPattern: regexp.MustCompile(`[가-힣a-zA-Z0-9]{2,}`),
		stopWords:    defaultStopWords(),
		limit:        DefaultLimit,
	}
}

// Extract returns up to five of the most frequent tokens across chunks.
// Equal counts keep first-seen order. Empty input yields an empty slice.
func (e *Extractor) Extract(chunks []string) []string {
	if len(chunks) == 0 {
		return []string{}
	}

	text := strings.ToLower(strings.Join(chunks, " "))

	counts := make(map[string]int)
	var order []string
	for _, tok := range e.tokenPattern.FindAllString(text, -1) {
		if _, stop := e.stopWords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})

	if len(order) > e.limit {
		order = order[:e.limit]
	}
	if order == nil {
		return []string{}
	}
	return order
}
