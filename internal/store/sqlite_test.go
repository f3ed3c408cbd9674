package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/clinivis/mediscope/internal/embedding"
	"github.com/clinivis/mediscope/internal/models"
)

const testDims = 64

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "images.db"), testDims, "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func embedText(t *testing.T, text string) []float32 {
	t.Helper()
	emb, err := embedding.NewMockEmbedder(testDims).EmbedText(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	return emb
}

func TestSQLiteStore_InsertAndRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	emb := embedText(t, "ct scan brain")
	id, err := s.Insert(ctx, &models.ImageRecord{
		Embedding:   emb,
		SourceRef:   "/data/ct_scan_brain.png",
		Description: "ct scan brain",
		Category:    "healthcare",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty id")
	}

	// Querying with the record's own embedding returns it first with similarity ~1.
	matches, err := s.Query(ctx, emb, 1, 0.5, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Record.ID != id {
		t.Errorf("id = %s, want %s", matches[0].Record.ID, id)
	}
	if matches[0].Similarity < 0.999 {
		t.Errorf("self similarity = %f", matches[0].Similarity)
	}
}

func TestSQLiteStore_InsertDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Insert(context.Background(), &models.ImageRecord{
		Embedding: []float32{1, 0, 0},
		SourceRef: "bad.png",
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSQLiteStore_QueryThreshold(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, desc := range []string{"xray hand", "mri knee", "ultrasound abdomen"} {
		if _, err := s.Insert(ctx, &models.ImageRecord{
			Embedding:   embedText(t, desc),
			SourceRef:   desc + ".png",
			Description: desc,
			Category:    "healthcare",
		}); err != nil {
			t.Fatal(err)
		}
	}

	// A threshold of 0.999 excludes everything but a near-exact match.
	matches, err := s.Query(ctx, embedText(t, "xray hand"), 10, 0.999, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected only the exact match, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Similarity <= 0.999 {
			t.Errorf("match below threshold returned: %f", m.Similarity)
		}
	}

	// Threshold 1.0 excludes even the exact match (strictly greater-than).
	matches, err = s.Query(ctx, embedText(t, "xray hand"), 10, 1.0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches at threshold 1.0, got %d", len(matches))
	}
}

func TestSQLiteStore_QueryCategoryFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	emb := embedText(t, "scan")
	if _, err := s.Insert(ctx, &models.ImageRecord{Embedding: emb, SourceRef: "a.png", Category: "healthcare"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, &models.ImageRecord{Embedding: emb, SourceRef: "b.png", Category: "general"}); err != nil {
		t.Fatal(err)
	}

	matches, err := s.Query(ctx, emb, 10, 0.5, "healthcare")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Record.Category != "healthcare" {
		t.Errorf("category = %s", matches[0].Record.Category)
	}
}

func TestSQLiteStore_QueryLimitAndDeterminism(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	emb := embedText(t, "radiology")
	for i := 0; i < 5; i++ {
		if _, err := s.Insert(ctx, &models.ImageRecord{Embedding: emb, SourceRef: "dup.png", Category: "healthcare"}); err != nil {
			t.Fatal(err)
		}
	}

	first, err := s.Query(ctx, emb, 3, 0.5, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 {
		t.Fatalf("expected k=3 results, got %d", len(first))
	}
	for i := 0; i < 3; i++ {
		again, err := s.Query(ctx, emb, 3, 0.5, "")
		if err != nil {
			t.Fatal(err)
		}
		for j := range first {
			if again[j].Record.ID != first[j].Record.ID {
				t.Fatal("identical queries returned different order")
			}
		}
	}
}

func TestSQLiteStore_CountAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.Insert(ctx, &models.ImageRecord{Embedding: embedText(t, "a"), SourceRef: "a.png", Category: "healthcare"})
	_, _ = s.Insert(ctx, &models.ImageRecord{Embedding: embedText(t, "b"), SourceRef: "b.png", Category: "general"})

	if n, _ := s.Count(ctx, ""); n != 2 {
		t.Errorf("total count = %d", n)
	}
	if n, _ := s.Count(ctx, "healthcare"); n != 1 {
		t.Errorf("healthcare count = %d", n)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx, ""); n != 1 {
		t.Errorf("count after delete = %d", n)
	}
	if s.IndexSize() != 1 {
		t.Errorf("index size after delete = %d", s.IndexSize())
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_RebuildIndexOnOpen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "images.db")

	s, err := NewSQLiteStore(dbPath, testDims, "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	emb := embedText(t, "persisted scan")
	id, err := s.Insert(ctx, &models.ImageRecord{Embedding: emb, SourceRef: "p.png", Category: "healthcare"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(dbPath, testDims, "")
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.IndexSize() != 1 {
		t.Fatalf("index size after reopen = %d", reopened.IndexSize())
	}
	matches, err := reopened.Query(ctx, emb, 1, 0.5, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Record.ID != id {
		t.Errorf("reopened query = %+v", matches)
	}
}

func TestSQLiteStore_OpenFromSnapshot(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "images.db")
	snapPath := filepath.Join(dir, "vectors.bin")

	s, err := NewSQLiteStore(dbPath, testDims, snapPath)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	emb := embedText(t, "chest radiograph")
	id, err := s.Insert(ctx, &models.ImageRecord{Embedding: emb, SourceRef: "x.png", Category: "healthcare"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveIndex(snapPath); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(dbPath, testDims, snapPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.IndexSize() != 1 {
		t.Fatalf("index size after snapshot open = %d", reopened.IndexSize())
	}
	matches, err := reopened.Query(ctx, emb, 1, 0.5, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Record.ID != id {
		t.Errorf("snapshot-backed query = %+v", matches)
	}
}

func TestSQLiteStore_StaleSnapshotTriggersRebuild(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "images.db")
	snapPath := filepath.Join(dir, "vectors.bin")

	s, err := NewSQLiteStore(dbPath, testDims, snapPath)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := s.Insert(ctx, &models.ImageRecord{Embedding: embedText(t, "first"), SourceRef: "a.png"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveIndex(snapPath); err != nil {
		t.Fatal(err)
	}
	// A record inserted after the snapshot makes it stale; the reopen must
	// fall back to rebuilding from the table, not trust the snapshot.
	later := embedText(t, "second")
	id, err := s.Insert(ctx, &models.ImageRecord{Embedding: later, SourceRef: "b.png"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(dbPath, testDims, snapPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if reopened.IndexSize() != 2 {
		t.Fatalf("index size after stale snapshot = %d", reopened.IndexSize())
	}
	matches, err := reopened.Query(ctx, later, 1, 0.5, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Record.ID != id {
		t.Errorf("post-snapshot record not searchable: %+v", matches)
	}
}

func TestSQLiteStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, d := range []string{"one", "two", "three"} {
		if _, err := s.Insert(ctx, &models.ImageRecord{Embedding: embedText(t, d), SourceRef: d + ".png", Description: d}); err != nil {
			t.Fatal(err)
		}
	}
	records, err := s.List(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("list length = %d", len(records))
	}
}
