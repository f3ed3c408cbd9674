// Package cli provides CLI output utilities for Mediscope.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/clinivis/mediscope/internal/models"
	"github.com/clinivis/mediscope/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one line per result.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		writeSearchResultsCompact(w, response)
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (source: %s)\n\n",
		response.Total, response.QueryTime, response.Source)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Similarity: %.4f | Category: %s\n", i+1, result.Similarity, result.Category)
		fmt.Fprintf(w, "ID: %s\n", result.ID)
		if result.Description != "" {
			fmt.Fprintf(w, "Description: %s\n", utils.Truncate(result.Description, 200))
		}
		fmt.Fprintf(w, "URL: %s\n", result.URL)
		fmt.Fprintln(w)
	}
}

func writeSearchResultsCompact(w io.Writer, response *models.SearchResponse) {
	for _, result := range response.Results {
		fmt.Fprintf(w, "%.4f\t%s\t%s\n", result.Similarity, result.ID, utils.Truncate(result.Description, 60))
	}
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}
