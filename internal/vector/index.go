// Package vector provides an in-memory vector index and cosine-similarity search.
package vector

import "context"

// Index defines vector storage and similarity search over unit-norm vectors.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns the top-k hits by cosine similarity, descending.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single vector search hit (ID is the image record ID).
type Result struct {
	ID    string
	Score float64 // Dot product; equals cosine similarity for unit-norm vectors.
}
