// SQLite implementation of the Store interface. Metadata and embedding blobs
// live in SQLite; similarity search runs against an in-memory vector index
// rebuilt from the table on open.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clinivis/mediscope/internal/models"
	"github.com/clinivis/mediscope/internal/vector"
	"github.com/google/uuid"
)

// SQLiteStore implements Store using SQLite plus a vector.MemoryIndex.
type SQLiteStore struct {
	db         *sql.DB
	index      *vector.MemoryIndex
	dimensions int
}

// NewSQLiteStore opens or creates a SQLite database at dbPath, initializes
// the schema, and fills the similarity index. A non-empty snapshotPath is
// tried first; when the snapshot is missing, unreadable, or does not match
// the table's record count, the index is rebuilt from the stored embeddings.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, dimensions int, snapshotPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	idx, err := vector.NewMemoryIndex(dimensions)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, index: idx, dimensions: dimensions}
	if err := s.initIndex(context.Background(), snapshotPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	return s, nil
}

// initIndex fills the similarity index from the snapshot when it agrees with
// the table's record count, otherwise from a full table scan. The record
// count is a cheap staleness check; a snapshot written on clean shutdown
// matches it exactly.
func (s *SQLiteStore) initIndex(ctx context.Context, snapshotPath string) error {
	if snapshotPath != "" {
		if err := s.index.Load(snapshotPath); err == nil {
			count, countErr := s.Count(ctx, "")
			if countErr == nil && int(count) == s.index.Size() {
				return nil
			}
		}
		// Stale or unreadable snapshot; start over from the table.
		fresh, err := vector.NewMemoryIndex(s.dimensions)
		if err != nil {
			return err
		}
		s.index = fresh
	}
	return s.rebuildIndex(ctx)
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS image_vectors (
		id TEXT PRIMARY KEY,
		embedding BLOB NOT NULL,
		source_ref TEXT NOT NULL,
		description TEXT,
		category TEXT NOT NULL DEFAULT 'general',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_image_vectors_category ON image_vectors(category);
	CREATE INDEX IF NOT EXISTS idx_image_vectors_created_at ON image_vectors(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// rebuildIndex loads all stored embeddings into the memory index in rowid
// order, preserving insertion order for deterministic tie-breaking.
func (s *SQLiteStore) rebuildIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM image_vectors ORDER BY rowid`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var ids []string
	var vectors [][]float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		vec := vector.BytesToFloat32s(blob)
		if len(vec) != s.dimensions {
			return fmt.Errorf("%w: stored record %s has %d dimensions, expected %d",
				ErrDimensionMismatch, id, len(vec), s.dimensions)
		}
		ids = append(ids, id)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.index.Add(ctx, ids, vectors)
}

// Insert stores the record and adds its embedding to the similarity index.
// The row is committed before the vector becomes searchable, so concurrent
// readers never observe a partially written record.
func (s *SQLiteStore) Insert(ctx context.Context, rec *models.ImageRecord) (string, error) {
	if len(rec.Embedding) != s.dimensions {
		return "", fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(rec.Embedding), s.dimensions)
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO image_vectors (id, embedding, source_ref, description, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, vector.Float32sToBytes(rec.Embedding), rec.SourceRef, rec.Description, rec.Category, rec.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert image record: %w", err)
	}

	if err := s.index.Add(ctx, []string{rec.ID}, [][]float32{rec.Embedding}); err != nil {
		return "", fmt.Errorf("failed to index embedding: %w", err)
	}
	return rec.ID, nil
}

// Query ranks stored records by cosine similarity to vector. With a category
// filter the whole index is scanned as the candidate set so filtered queries
// stay exact; without one, the index's top-k is already the answer.
func (s *SQLiteStore) Query(ctx context.Context, vec []float32, k int, threshold float64, category string) ([]Match, error) {
	if len(vec) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), s.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}

	candidates := k
	if category != "" {
		candidates = s.index.Size()
	}
	hits, err := s.index.Search(ctx, vec, candidates)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, k)
	for _, hit := range hits {
		if hit.Score <= threshold {
			// Hits are descending; everything after is below threshold too.
			break
		}
		rec, err := s.Get(ctx, hit.ID)
		if err != nil {
			// Record deleted between index scan and fetch; skip it.
			continue
		}
		if category != "" && rec.Category != category {
			continue
		}
		matches = append(matches, Match{Record: rec, Similarity: hit.Score})
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

// Count returns the number of records, optionally restricted to category.
func (s *SQLiteStore) Count(ctx context.Context, category string) (int64, error) {
	var count int64
	var err error
	if category != "" {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM image_vectors WHERE category = ?`, category).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM image_vectors`).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count image records: %w", err)
	}
	return count, nil
}

// Get returns a record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.ImageRecord, error) {
	var rec models.ImageRecord
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, embedding, source_ref, description, category, created_at
		 FROM image_vectors WHERE id = ?`, id,
	).Scan(&rec.ID, &blob, &rec.SourceRef, &rec.Description, &rec.Category, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	rec.Embedding = vector.BytesToFloat32s(blob)
	return &rec, nil
}

// Delete removes a record from the table and the similarity index.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM image_vectors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.index.Remove(ctx, []string{id})
}

// List returns records ordered by creation time, newest first.
func (s *SQLiteStore) List(ctx context.Context, offset, limit int) ([]*models.ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding, source_ref, description, category, created_at
		 FROM image_vectors ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.ImageRecord
	for rows.Next() {
		var rec models.ImageRecord
		var blob []byte
		if err := rows.Scan(&rec.ID, &blob, &rec.SourceRef, &rec.Description, &rec.Category, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Embedding = vector.BytesToFloat32s(blob)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// IndexSize returns the number of vectors in the similarity index.
func (s *SQLiteStore) IndexSize() int {
	return s.index.Size()
}

// SaveIndex writes an index snapshot to path.
func (s *SQLiteStore) SaveIndex(path string) error {
	return s.index.Save(path)
}

// Close closes the database. The memory index needs no teardown.
func (s *SQLiteStore) Close() error {
	_ = s.index.Close()
	return s.db.Close()
}
