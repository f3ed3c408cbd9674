package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/clinivis/mediscope/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Results: []models.SearchResult{
			{ID: "a", URL: "https://img/a.jpg", Description: "chest xray", Category: "healthcare", Similarity: 0.91},
			{ID: "b", URL: "https://img/b.jpg", Description: "brain mri", Category: "healthcare", Similarity: 0.87},
		},
		Total:     2,
		Source:    models.SourceLocal,
		QueryTime: 12,
		Query:     "xray",
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results", "source: local", "chest xray", "0.9100"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("compact output lines = %d, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "0.9100\ta\t") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Total != 2 || decoded.Source != models.SourceLocal {
		t.Errorf("decoded = %+v", decoded)
	}
}
