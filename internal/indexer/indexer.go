// Package indexer ingests images into the store and keyword index: local
// files, whole directories, and downloads fetched from external providers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/clinivis/mediscope/internal/embedding"
	"github.com/clinivis/mediscope/internal/imageid"
	"github.com/clinivis/mediscope/internal/imaging"
	"github.com/clinivis/mediscope/internal/keyword"
	"github.com/clinivis/mediscope/internal/models"
	"github.com/clinivis/mediscope/internal/provider"
	"github.com/clinivis/mediscope/internal/store"
	"github.com/clinivis/mediscope/pkg/utils"
)

// maxDownloadBytes caps a single provider image download.
const maxDownloadBytes = 20 << 20

// Fetcher is the aggregator surface used by FetchAndIndex.
type Fetcher interface {
	Search(ctx context.Context, query string, limit int) []models.SearchResult
}

var _ Fetcher = (*provider.Aggregator)(nil)

// Indexer embeds images and writes them to the store and keyword index.
type Indexer struct {
	store      store.Store
	embedder   embedding.Embedder
	keywords   keyword.Index
	fetcher    Fetcher
	extensions []string
	client     *http.Client
	logger     *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithHTTPClient sets the client used to download fetched images.
func WithHTTPClient(c *http.Client) Option {
	return func(ix *Indexer) { ix.client = c }
}

// WithExtensions sets the file extensions considered indexable.
func WithExtensions(exts []string) Option {
	return func(ix *Indexer) { ix.extensions = exts }
}

// NewIndexer creates an indexer. keywords and fetcher may be nil; the
// corresponding features are then skipped.
func NewIndexer(st store.Store, embedder embedding.Embedder, keywords keyword.Index, fetcher Fetcher, opts ...Option) *Indexer {
	ix := &Indexer{
		store:    st,
		embedder: embedder,
		keywords: keywords,
		fetcher:  fetcher,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexFile reads, validates, embeds, and stores a single image file. The
// record ID derives from the path, so re-indexing an existing file replaces
// its record.
func (ix *Indexer) IndexFile(ctx context.Context, path, category string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !imaging.SupportedExtension(abs, ix.extensions) {
		return "", fmt.Errorf("%w: %s", imaging.ErrUnsupportedFormat, filepath.Ext(abs))
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	description := utils.DescriptionFromFilename(filepath.Base(abs))
	return ix.indexBytes(ctx, imageid.PathID(abs), data, abs, description, category)
}

// IndexDirectory walks dir and indexes every supported image file. Individual
// file failures are logged and skipped; the walk itself failing is an error.
// Returns the number of files indexed.
func (ix *Indexer) IndexDirectory(ctx context.Context, dir, category string) (int, error) {
	indexed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !imaging.SupportedExtension(path, ix.extensions) {
			return nil
		}
		if _, err := ix.IndexFile(ctx, path, category); err != nil {
			ix.logger.Warn("skipping file", zap.String("path", path), zap.Error(err))
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		return indexed, err
	}
	return indexed, nil
}

// FetchAndIndex queries external providers for the given text, downloads the
// returned images, and indexes them locally. Download or decode failures for
// individual results are logged and skipped. Returns the IDs of the records
// that were indexed.
func (ix *Indexer) FetchAndIndex(ctx context.Context, query, category string, limit int) ([]string, error) {
	if ix.fetcher == nil {
		return nil, fmt.Errorf("no providers configured")
	}
	results := ix.fetcher.Search(ctx, query, limit)

	var ids []string
	for _, r := range results {
		data, err := ix.download(ctx, r.URL)
		if err != nil {
			ix.logger.Warn("download failed", zap.String("url", r.URL), zap.Error(err))
			continue
		}
		description := r.Description
		if description == "" {
			description = query
		}
		id, err := ix.indexBytes(ctx, "", data, r.URL, description, category)
		if err != nil {
			ix.logger.Warn("indexing fetched image failed", zap.String("url", r.URL), zap.Error(err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes a record from the store and keyword index.
func (ix *Indexer) Delete(ctx context.Context, id string) error {
	if err := ix.store.Delete(ctx, id); err != nil {
		return err
	}
	if ix.keywords != nil {
		if err := ix.keywords.Delete(ctx, id); err != nil {
			ix.logger.Warn("keyword index delete failed", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

func (ix *Indexer) indexBytes(ctx context.Context, id string, data []byte, sourceRef, description, category string) (string, error) {
	if !imaging.Validate(data) {
		return "", imaging.ErrUnsupportedFormat
	}
	if id != "" {
		// Path-derived IDs are stable, so a changed file is re-indexed by
		// replacing its previous record.
		if err := ix.store.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return "", err
		}
	}
	vector, err := ix.embedder.EmbedImage(ctx, data)
	if err != nil {
		return "", fmt.Errorf("embedding failed: %w", err)
	}

	rec := &models.ImageRecord{
		ID:          id,
		Embedding:   vector,
		SourceRef:   sourceRef,
		Description: description,
		Category:    category,
		CreatedAt:   time.Now().UTC(),
	}
	storedID, err := ix.store.Insert(ctx, rec)
	if err != nil {
		return "", err
	}

	if ix.keywords != nil {
		entry := &keyword.Entry{
			Description: description,
			Category:    category,
			SourceRef:   sourceRef,
		}
		if err := ix.keywords.Index(ctx, storedID, entry); err != nil {
			ix.logger.Warn("keyword indexing failed", zap.String("id", storedID), zap.Error(err))
		}
	}

	ix.logger.Info("indexed image",
		zap.String("id", storedID),
		zap.String("description", utils.Truncate(description, 60)))
	return storedID, nil
}

func (ix *Indexer) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ix.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
}
