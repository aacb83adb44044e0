package vectorstore

import "errors"

var (
	ErrLengthMismatch    = errors.New("chunks and embeddings length mismatch")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyEmbedding    = errors.New("embedding is empty")
)
