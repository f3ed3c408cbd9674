package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/clinivis/mediscope/internal/models"
)

type fakeProvider struct {
	name    string
	results []models.SearchResult
	err     error

	lastQuery string
	lastLimit int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, query string, limit int) ([]models.SearchResult, error) {
	f.lastQuery = query
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func fakeResults(prefix string, n int) []models.SearchResult {
	out := make([]models.SearchResult, n)
	for i := range out {
		out[i] = models.SearchResult{
			ID:         fmt.Sprintf("%s-%d", prefix, i),
			Similarity: PlaceholderSimilarity,
			Source:     prefix,
		}
	}
	return out
}

func newTestAggregator(providers []Provider, opts ...AggregatorOption) *Aggregator {
	opts = append(opts, WithRand(rand.New(rand.NewSource(1))))
	return NewAggregator(
		providers,
		time.Second,
		[]string{"healthcare", "medical"},
		"medical healthcare",
		[]string{"xray", "mri", "ultrasound"},
		opts...,
	)
}

func TestAggregator_AugmentQuery(t *testing.T) {
	agg := newTestAggregator(nil)

	tests := []struct {
		query string
		want  string
	}{
		{"broken arm", "broken arm medical healthcare"},
		{"medical scan", "medical scan"},
		{"Healthcare worker", "Healthcare worker"},
		{"knee MRI medical", "knee MRI medical"},
	}
	for _, tt := range tests {
		if got := agg.AugmentQuery(tt.query); got != tt.want {
			t.Errorf("AugmentQuery(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestAggregator_SearchDispatchesAugmentedQuery(t *testing.T) {
	p := &fakeProvider{name: "a", results: fakeResults("a", 2)}
	agg := newTestAggregator([]Provider{p})

	agg.Search(context.Background(), "broken arm", 4)
	if p.lastQuery != "broken arm medical healthcare" {
		t.Errorf("dispatched query = %q", p.lastQuery)
	}
}

func TestAggregator_SearchMergesAndTruncates(t *testing.T) {
	a := &fakeProvider{name: "a", results: fakeResults("a", 3)}
	b := &fakeProvider{name: "b", results: fakeResults("b", 3)}
	agg := newTestAggregator([]Provider{a, b})

	results := agg.Search(context.Background(), "medical xray", 4)
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4", len(results))
	}
	if a.lastLimit != 2 || b.lastLimit != 2 {
		t.Errorf("per-provider limits = %d, %d", a.lastLimit, b.lastLimit)
	}
}

func TestAggregator_SearchIsolatesFailures(t *testing.T) {
	ok := &fakeProvider{name: "ok", results: fakeResults("ok", 2)}
	broken := &fakeProvider{name: "broken", err: errors.New("boom")}
	agg := newTestAggregator([]Provider{broken, ok})

	results := agg.Search(context.Background(), "medical xray", 4)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Source != "ok" {
			t.Errorf("unexpected source %q", r.Source)
		}
	}
}

func TestAggregator_SearchAllFail(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("down")}
	b := &fakeProvider{name: "b", err: errors.New("down")}
	agg := newTestAggregator([]Provider{a, b})

	if results := agg.Search(context.Background(), "medical xray", 4); len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestAggregator_SearchShuffleDeterministicWithSeed(t *testing.T) {
	run := func() []string {
		a := &fakeProvider{name: "a", results: fakeResults("a", 3)}
		b := &fakeProvider{name: "b", results: fakeResults("b", 3)}
		agg := newTestAggregator([]Provider{a, b})
		results := agg.Search(context.Background(), "medical xray", 6)
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		return ids
	}

	first := run()
	second := run()
	if len(first) != 6 {
		t.Fatalf("got %d ids", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("seeded shuffle not deterministic: %v vs %v", first, second)
		}
	}
}

func TestAggregator_SearchByImageUsesConfiguredKeyword(t *testing.T) {
	p := &fakeProvider{name: "a", results: fakeResults("a", 1)}
	agg := newTestAggregator([]Provider{p})

	results := agg.SearchByImage(context.Background(), 3)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	keywords := map[string]bool{
		"xray medical healthcare":       true,
		"mri medical healthcare":        true,
		"ultrasound medical healthcare": true,
		"xray":                          true,
		"mri":                           true,
		"ultrasound":                    true,
	}
	if !keywords[p.lastQuery] {
		t.Errorf("dispatched query %q not derived from configured keywords", p.lastQuery)
	}
}

func TestAggregator_SearchNoProviders(t *testing.T) {
	agg := newTestAggregator(nil)
	if results := agg.Search(context.Background(), "xray", 4); results != nil {
		t.Errorf("got %v, want nil", results)
	}
}
