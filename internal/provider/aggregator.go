package provider

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clinivis/mediscope/internal/models"
)

// Aggregator fans a text query out to all configured providers, merges their
// results, and shuffles the merged list. Provider order carries no ranking
// meaning: true similarity is not computable for external hits.
type Aggregator struct {
	providers    []Provider
	timeout      time.Duration
	domainTerms  []string
	domainSuffix string
	// imageKeywords are candidate text queries used when the fallback is
	// triggered by an image query (providers only support text search).
	imageKeywords []string
	logger        *zap.Logger

	rng   *rand.Rand
	rngMu sync.Mutex
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets a logger for provider failures and dispatched queries.
func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// WithRand sets the randomness source used for shuffling and image-fallback
// keyword selection, so tests can seed it.
func WithRand(r *rand.Rand) AggregatorOption {
	return func(a *Aggregator) { a.rng = r }
}

// NewAggregator creates an aggregator over the given providers. When none of
// domainTerms appears in the lower-cased query, domainSuffix is appended
// before dispatch; imageKeywords feed SearchByImage. timeout bounds each
// provider call.
func NewAggregator(
	providers []Provider,
	timeout time.Duration,
	domainTerms []string,
	domainSuffix string,
	imageKeywords []string,
	opts ...AggregatorOption,
) *Aggregator {
	a := &Aggregator{
		providers:     providers,
		timeout:       timeout,
		domainTerms:   domainTerms,
		domainSuffix:  domainSuffix,
		imageKeywords: imageKeywords,
		logger:        zap.NewNop(),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AugmentQuery appends the domain suffix when the lower-cased query mentions
// none of the configured domain terms. This deliberately biases external
// search toward the deployment's subject domain.
func (a *Aggregator) AugmentQuery(query string) string {
	if a.domainSuffix == "" {
		return query
	}
	lower := strings.ToLower(query)
	for _, term := range a.domainTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return query
		}
	}
	return query + " " + a.domainSuffix
}

// Search queries all providers concurrently with the augmented query, merges
// whatever succeeded, shuffles, and truncates to limit. A failing provider
// contributes nothing; when all fail the result is empty, not an error.
func (a *Aggregator) Search(ctx context.Context, query string, limit int) []models.SearchResult {
	if limit <= 0 || len(a.providers) == 0 {
		return nil
	}
	dispatched := a.AugmentQuery(query)
	a.logger.Debug("dispatching fallback search",
		zap.String("query", dispatched),
		zap.Int("providers", len(a.providers)))

	// Split the limit across providers; any remainder is absorbed by the
	// final truncation.
	perProvider := limit / len(a.providers)
	if perProvider < 1 {
		perProvider = 1
	}

	collected := make([][]models.SearchResult, len(a.providers))
	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()
			results, err := p.Search(callCtx, dispatched, perProvider)
			if err != nil {
				a.logger.Warn("provider search failed",
					zap.String("provider", p.Name()),
					zap.Error(err))
				return
			}
			collected[i] = results
		}(i, p)
	}
	wg.Wait()

	var merged []models.SearchResult
	for _, results := range collected {
		merged = append(merged, results...)
	}
	a.shuffle(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// SearchByImage handles fallback for image queries. Providers only support
// text search, so one keyword is drawn at random from the configured set and
// searched as text.
func (a *Aggregator) SearchByImage(ctx context.Context, limit int) []models.SearchResult {
	if len(a.imageKeywords) == 0 {
		return nil
	}
	a.rngMu.Lock()
	keyword := a.imageKeywords[a.rng.Intn(len(a.imageKeywords))]
	a.rngMu.Unlock()
	a.logger.Debug("image fallback using keyword", zap.String("keyword", keyword))
	return a.Search(ctx, keyword, limit)
}

func (a *Aggregator) shuffle(results []models.SearchResult) {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	a.rng.Shuffle(len(results), func(i, j int) {
		results[i], results[j] = results[j], results[i]
	})
}
