// Package vectorstore holds chunk embeddings in memory and ranks them against a query.
package vectorstore

import (
	"fmt"
	"slices"
)

// Entry binds one chunk's text to its embedding.
// ID is the chunk's 0-based position in the chunk sequence.
type Entry struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// SearchResult is an Entry scored against a query vector.
type SearchResult struct {
	Entry
	Similarity float64 `json:"similarity"`
}

// Store is an immutable, ordered collection of entries with uniform dimension.
type Store struct {
	entries   []Entry
	dimension int
}

// Build pairs chunks with embeddings by position. Both slices must have the same length
// and every embedding must share one non-zero dimension.
func Build(chunks []string, embeddings [][]float32) (*Store, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d chunks, %d embeddings",
			ErrLengthMismatch, len(chunks), len(embeddings))
	}

	s := &Store{entries: make([]Entry, len(chunks))}
	for i, chunk := range chunks {
		vec := embeddings[i]
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: entry %d", ErrEmptyEmbedding, i)
		}
		if s.dimension == 0 {
			s.dimension = len(vec)
		} else if len(vec) != s.dimension {
			return nil, fmt.Errorf("%w: entry %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), s.dimension)
		}
		s.entries[i] = Entry{
			ID:        i,
			Text:      chunk,
			Embedding: slices.Clone(vec),
		}
	}

	return s, nil
}

// Len returns the number of entries. A nil Store is empty.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Dimension returns the shared embedding length, or 0 for an empty store.
func (s *Store) Dimension() int {
	if s == nil {
		return 0
	}
	return s.dimension
}

// Entries returns a deep copy of the entries in ID order.
func (s *Store) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, len(s.entries))
	for i, entry := range s.entries {
		out[i] = entry.clone()
	}
	return out
}

func (e Entry) clone() Entry {
	e.Embedding = slices.Clone(e.Embedding)
	return e
}

// Search scores every entry against query and returns the k most similar,
// highest first. Equal scores keep ID order. k <= 0 or an empty store yields no results.
func (s *Store) Search(query []float32, k int) []SearchResult {
	if s.Len() == 0 || k <= 0 {
		return []SearchResult{}
	}

	results := make([]SearchResult, len(s.entries))
	for i, entry := range s.entries {
		results[i] = SearchResult{
			Entry:      entry,
			Similarity: CosineSimilarity(query, entry.Embedding),
		}
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})

	if k < len(results) {
		results = results[:k]
	}
	for i := range results {
		results[i].Entry = results[i].Entry.clone()
	}
	return results
}
