// Package provider implements external image search providers and the
// fallback aggregator that queries them when the local index has no match.
package provider

import (
	"context"

	"github.com/clinivis/mediscope/internal/models"
)

// PlaceholderSimilarity is assigned to external results; true cosine
// similarity is not computable for provider hits.
const PlaceholderSimilarity = 0.9

// Provider searches an external image service by text query. Implementations
// return an error for non-2xx responses and malformed payloads; the
// aggregator isolates failures so one provider cannot fail the whole search.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}
