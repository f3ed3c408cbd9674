// Package models defines core data structures for image records, queries, and search results.
package models

import "time"

// ImageRecord is a stored image with its embedding and metadata.
// Records are immutable after insert; there is no update path.
type ImageRecord struct {
	ID          string    `json:"id"`
	Embedding   []float32 `json:"-"`
	SourceRef   string    `json:"source_ref"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}
