// Package keyword provides a keyword index over image descriptions, backing
// the metadata browse endpoint.
package keyword

import "context"

// Index defines keyword indexing and search over image metadata.
// Search returns matching record IDs ranked by relevance.
type Index interface {
	Index(ctx context.Context, id string, entry *Entry) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]string, error)
	Close() error
}

// Entry is the indexable view of an image record.
type Entry struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	SourceRef   string `json:"source_ref"`
}
