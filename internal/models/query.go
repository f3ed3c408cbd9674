package models

import "errors"

// Query types accepted by the search API.
const (
	QueryTypeText  = "text"
	QueryTypeImage = "image"
)

// ErrInvalidQuery is returned for empty or malformed caller input. It is the
// only failure that surfaces to the caller as an error; every other failure
// mode degrades to fewer or zero results.
var ErrInvalidQuery = errors.New("query is required")

// SearchQuery represents a search request. For text queries, Query is the
// query string; for image queries, Query is a base64 data URL of the image.
type SearchQuery struct {
	Query    string `json:"query"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Validate checks the query and normalizes the type. Returns ErrInvalidQuery
// for an empty query or an unknown type. Limit normalization happens in the
// searcher, which knows the configured defaults.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return ErrInvalidQuery
	}
	switch q.Type {
	case "":
		q.Type = QueryTypeText
	case QueryTypeText, QueryTypeImage:
	default:
		return ErrInvalidQuery
	}
	return nil
}
