// Bleve implementation of the keyword Index.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so unchanged images are not re-indexed. If the mapping in
// code changes, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	entryMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match
	// modality terms like "xray" exactly.
	textFieldMapping.Analyzer = standard.Name
	entryMapping.AddFieldMappingsAt("description", textFieldMapping)
	entryMapping.AddFieldMappingsAt("source_ref", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	entryMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	im.AddDocumentMapping("image", entryMapping)
	im.DefaultType = "image"
	im.DefaultMapping = entryMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes an entry by record ID.
func (b *BleveIndex) Index(ctx context.Context, id string, entry *Entry) error {
	return b.index.Index(id, entry)
}

// Delete removes an entry by record ID.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Search runs a match query over descriptions and returns up to limit record IDs.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	mq := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(mq, limit, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
