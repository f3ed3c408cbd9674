// Package store defines persistence for image records and cosine-similarity queries.
package store

import (
	"context"
	"errors"

	"github.com/clinivis/mediscope/internal/models"
)

// ErrDimensionMismatch is returned when an embedding's length differs from
// the store's configured dimensionality. Mismatched vectors would silently
// corrupt similarity ranking, so they are rejected at the boundary.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("image record not found")

// Match pairs a stored record with its cosine similarity to a query vector.
type Match struct {
	Record     *models.ImageRecord
	Similarity float64
}

// Store defines image record persistence and similarity search.
// Records are immutable after Insert; there is no update operation.
type Store interface {
	// Insert stores the record, generating an ID when unset, and returns the ID.
	Insert(ctx context.Context, rec *models.ImageRecord) (string, error)
	// Query returns up to k records ranked by descending cosine similarity to
	// vector, excluding records with similarity <= threshold. A non-empty
	// category restricts results to exact category match. Identical queries
	// return identical, identically ordered results.
	Query(ctx context.Context, vector []float32, k int, threshold float64, category string) ([]Match, error)
	// Count returns the number of records, optionally restricted to category.
	Count(ctx context.Context, category string) (int64, error)
	Get(ctx context.Context, id string) (*models.ImageRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*models.ImageRecord, error)
	// IndexSize returns the number of vectors in the similarity index.
	IndexSize() int
	// SaveIndex writes an index snapshot to path. A snapshot that still
	// matches the table is loaded on the next open instead of a full rebuild.
	SaveIndex(path string) error
	Close() error
}
