// Package search implements the search orchestrator: validate, embed, query
// the local store, and fall back to external providers when no local record
// clears the similarity threshold.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/clinivis/mediscope/internal/config"
	"github.com/clinivis/mediscope/internal/embedding"
	"github.com/clinivis/mediscope/internal/imaging"
	"github.com/clinivis/mediscope/internal/models"
	"github.com/clinivis/mediscope/internal/provider"
	"github.com/clinivis/mediscope/internal/store"
)

// Fallback is the provider aggregator surface the searcher depends on.
type Fallback interface {
	Search(ctx context.Context, query string, limit int) []models.SearchResult
	SearchByImage(ctx context.Context, limit int) []models.SearchResult
}

var _ Fallback = (*provider.Aggregator)(nil)

// Searcher orchestrates a search request across the embedder, the local
// store, and the fallback aggregator. The only error it ever returns is
// models.ErrInvalidQuery; infrastructure failures degrade to fewer results.
type Searcher struct {
	embedder embedding.Embedder
	store    store.Store
	fallback Fallback
	cfg      config.SearchConfig
	logger   *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// NewSearcher creates a search orchestrator. fallback may be nil, in which
// case an empty local result is the final result.
func NewSearcher(embedder embedding.Embedder, st store.Store, fallback Fallback, cfg config.SearchConfig, opts ...Option) *Searcher {
	s := &Searcher{
		embedder: embedder,
		store:    st,
		fallback: fallback,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the full pipeline for a query. An empty result list with
// Source "none" is a valid outcome, not an error.
func (s *Searcher) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()

	if err := query.Validate(); err != nil {
		return nil, err
	}
	limit := s.normalizeLimit(query.Limit)

	results, source := s.localSearch(ctx, query, limit)
	if len(results) == 0 && s.fallback != nil {
		results = s.fallbackSearch(ctx, query, limit)
		if len(results) > 0 {
			source = models.SourceFallback
		}
	}
	if len(results) == 0 {
		source = models.SourceNone
		results = []models.SearchResult{}
	}

	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		Source:    source,
		QueryTime: time.Since(start).Milliseconds(),
		Query:     query.Query,
	}, nil
}

// localSearch embeds the query and runs the similarity query. Embedding or
// store failures are logged and reported as an empty local result so the
// fallback tier still runs.
func (s *Searcher) localSearch(ctx context.Context, query *models.SearchQuery, limit int) ([]models.SearchResult, string) {
	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, skipping local search",
			zap.String("type", query.Type),
			zap.Error(err))
		return nil, models.SourceNone
	}

	matches, err := s.store.Query(ctx, vector, limit, s.cfg.Threshold, query.Category)
	if err != nil {
		s.logger.Warn("local similarity query failed", zap.Error(err))
		return nil, models.SourceNone
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.SearchResult{
			ID:          m.Record.ID,
			URL:         m.Record.SourceRef,
			Description: m.Record.Description,
			Category:    m.Record.Category,
			Similarity:  m.Similarity,
			Source:      models.SourceLocal,
		})
	}
	return results, models.SourceLocal
}

func (s *Searcher) embedQuery(ctx context.Context, query *models.SearchQuery) ([]float32, error) {
	if query.Type == models.QueryTypeImage {
		data, err := imaging.DecodeDataURL(query.Query)
		if err != nil {
			return nil, err
		}
		return s.embedder.EmbedImage(ctx, data)
	}
	return s.embedder.EmbedText(ctx, query.Query)
}

func (s *Searcher) fallbackSearch(ctx context.Context, query *models.SearchQuery, limit int) []models.SearchResult {
	if query.Type == models.QueryTypeImage {
		return s.fallback.SearchByImage(ctx, limit)
	}
	return s.fallback.Search(ctx, query.Query, limit)
}

func (s *Searcher) normalizeLimit(limit int) int {
	if limit <= 0 {
		if s.cfg.DefaultLimit > 0 {
			return s.cfg.DefaultLimit
		}
		return config.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}
