package models

// Result sources reported in SearchResponse.
const (
	SourceLocal    = "local"
	SourceFallback = "fallback"
	SourceNone     = "none"
)

// SearchResult is a single search hit. Local hits carry true cosine
// similarity; fallback hits from external providers carry a fixed
// placeholder similarity since none is computable for them.
type SearchResult struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Similarity  float64 `json:"similarity"`
	Source      string  `json:"source,omitempty"`
}

// SearchResponse is the response for a search request. An empty Results list
// is a valid outcome, not an error.
type SearchResponse struct {
	Results   []SearchResult `json:"results"`
	Total     int            `json:"total"`
	Source    string         `json:"source"`
	QueryTime int64          `json:"query_time_ms"`
	Query     string         `json:"query,omitempty"`
}
