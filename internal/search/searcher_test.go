package search

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/clinivis/mediscope/internal/config"
	"github.com/clinivis/mediscope/internal/embedding"
	"github.com/clinivis/mediscope/internal/models"
	"github.com/clinivis/mediscope/internal/store"
)

type fakeStore struct {
	store.Store

	matches []store.Match
	err     error

	lastK         int
	lastThreshold float64
	lastCategory  string
}

func (f *fakeStore) Query(_ context.Context, _ []float32, k int, threshold float64, category string) ([]store.Match, error) {
	f.lastK = k
	f.lastThreshold = threshold
	f.lastCategory = category
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type fakeFallback struct {
	results      []models.SearchResult
	textCalls    int
	imageCalls   int
	lastQuery    string
	lastLimit    int
}

func (f *fakeFallback) Search(_ context.Context, query string, limit int) []models.SearchResult {
	f.textCalls++
	f.lastQuery = query
	f.lastLimit = limit
	return f.results
}

func (f *fakeFallback) SearchByImage(_ context.Context, limit int) []models.SearchResult {
	f.imageCalls++
	f.lastLimit = limit
	return f.results
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{DefaultLimit: 6, MaxLimit: 50, Threshold: 0.6}
}

func localMatches(n int) []store.Match {
	out := make([]store.Match, n)
	for i := range out {
		out[i] = store.Match{
			Record: &models.ImageRecord{
				ID:          string(rune('a' + i)),
				SourceRef:   "/images/img.jpg",
				Description: "chest xray",
				Category:    "healthcare",
			},
			Similarity: 0.9 - float64(i)*0.01,
		}
	}
	return out
}

func TestSearcher_EmptyQueryIsInvalid(t *testing.T) {
	s := NewSearcher(embedding.NewMockEmbedder(8), &fakeStore{}, &fakeFallback{}, testSearchConfig())

	_, err := s.Search(context.Background(), &models.SearchQuery{Query: ""})
	if !errors.Is(err, models.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestSearcher_UnknownTypeIsInvalid(t *testing.T) {
	s := NewSearcher(embedding.NewMockEmbedder(8), &fakeStore{}, &fakeFallback{}, testSearchConfig())

	_, err := s.Search(context.Background(), &models.SearchQuery{Query: "xray", Type: "audio"})
	if !errors.Is(err, models.ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestSearcher_LocalResultsWin(t *testing.T) {
	st := &fakeStore{matches: localMatches(2)}
	fb := &fakeFallback{results: []models.SearchResult{{ID: "ext"}}}
	s := NewSearcher(embedding.NewMockEmbedder(8), st, fb, testSearchConfig())

	resp, err := s.Search(context.Background(), &models.SearchQuery{Query: "chest xray", Category: "healthcare"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Source != models.SourceLocal {
		t.Errorf("source = %q", resp.Source)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d", resp.Total)
	}
	if fb.textCalls != 0 {
		t.Error("fallback should not run when local results exist")
	}
	if st.lastThreshold != 0.6 {
		t.Errorf("threshold = %v", st.lastThreshold)
	}
	if st.lastCategory != "healthcare" {
		t.Errorf("category = %q", st.lastCategory)
	}
	if resp.Results[0].Source != models.SourceLocal {
		t.Errorf("result source = %q", resp.Results[0].Source)
	}
}

func TestSearcher_FallbackWhenLocalEmpty(t *testing.T) {
	fb := &fakeFallback{results: []models.SearchResult{
		{ID: "p1", Similarity: 0.9, Source: "pexels"},
		{ID: "p2", Similarity: 0.9, Source: "pixabay"},
	}}
	s := NewSearcher(embedding.NewMockEmbedder(8), &fakeStore{}, fb, testSearchConfig())

	resp, err := s.Search(context.Background(), &models.SearchQuery{Query: "broken arm", Limit: 4})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Source != models.SourceFallback {
		t.Errorf("source = %q", resp.Source)
	}
	if fb.textCalls != 1 || fb.lastQuery != "broken arm" || fb.lastLimit != 4 {
		t.Errorf("fallback calls=%d query=%q limit=%d", fb.textCalls, fb.lastQuery, fb.lastLimit)
	}
}

func TestSearcher_StoreFailureDegradesToFallback(t *testing.T) {
	st := &fakeStore{err: errors.New("database locked")}
	fb := &fakeFallback{results: []models.SearchResult{{ID: "ext"}}}
	s := NewSearcher(embedding.NewMockEmbedder(8), st, fb, testSearchConfig())

	resp, err := s.Search(context.Background(), &models.SearchQuery{Query: "xray"})
	if err != nil {
		t.Fatalf("infrastructure failure must not surface: %v", err)
	}
	if resp.Source != models.SourceFallback || resp.Total != 1 {
		t.Errorf("source = %q, total = %d", resp.Source, resp.Total)
	}
}

func TestSearcher_BothTiersEmptyIsValid(t *testing.T) {
	s := NewSearcher(embedding.NewMockEmbedder(8), &fakeStore{}, &fakeFallback{}, testSearchConfig())

	resp, err := s.Search(context.Background(), &models.SearchQuery{Query: "something obscure"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("results = %v, want empty non-nil", resp.Results)
	}
	if resp.Source != models.SourceNone {
		t.Errorf("source = %q", resp.Source)
	}
}

func TestSearcher_NilFallback(t *testing.T) {
	s := NewSearcher(embedding.NewMockEmbedder(8), &fakeStore{}, nil, testSearchConfig())

	resp, err := s.Search(context.Background(), &models.SearchQuery{Query: "xray"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 || resp.Source != models.SourceNone {
		t.Errorf("total = %d, source = %q", resp.Total, resp.Source)
	}
}

func TestSearcher_ImageQueryFallsBackByKeyword(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("not really a png"))
	fb := &fakeFallback{results: []models.SearchResult{{ID: "ext"}}}
	s := NewSearcher(embedding.NewMockEmbedder(8), &fakeStore{}, fb, testSearchConfig())

	resp, err := s.Search(context.Background(), &models.SearchQuery{
		Query: "data:image/png;base64," + payload,
		Type:  models.QueryTypeImage,
	})
	if err != nil {
		t.Fatal(err)
	}
	if fb.imageCalls != 1 {
		t.Errorf("imageCalls = %d", fb.imageCalls)
	}
	if fb.textCalls != 0 {
		t.Errorf("textCalls = %d", fb.textCalls)
	}
	if resp.Source != models.SourceFallback {
		t.Errorf("source = %q", resp.Source)
	}
}

func TestSearcher_LimitNormalization(t *testing.T) {
	st := &fakeStore{matches: localMatches(1)}
	s := NewSearcher(embedding.NewMockEmbedder(8), st, nil, testSearchConfig())

	if _, err := s.Search(context.Background(), &models.SearchQuery{Query: "xray"}); err != nil {
		t.Fatal(err)
	}
	if st.lastK != 6 {
		t.Errorf("default limit = %d, want 6", st.lastK)
	}

	if _, err := s.Search(context.Background(), &models.SearchQuery{Query: "xray", Limit: 500}); err != nil {
		t.Fatal(err)
	}
	if st.lastK != 50 {
		t.Errorf("capped limit = %d, want 50", st.lastK)
	}
}
