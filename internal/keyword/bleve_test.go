package keyword

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_IndexAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	entries := map[string]*Entry{
		"1": {Description: "chest xray frontal", Category: "healthcare"},
		"2": {Description: "brain mri axial", Category: "healthcare"},
		"3": {Description: "sunset over mountains", Category: "general"},
	}
	for id, e := range entries {
		if err := idx.Index(ctx, id, e); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := idx.Search(ctx, "xray", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Errorf("search xray = %v", ids)
	}

	ids, err = idx.Search(ctx, "mri brain", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) == 0 || ids[0] != "2" {
		t.Errorf("search mri brain = %v", ids)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, "1", &Entry{Description: "ultrasound abdomen"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	ids, err := idx.Search(ctx, "ultrasound", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("deleted entry still found: %v", ids)
	}
}

func TestBleveIndex_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := idx.Index(ctx, "1", &Entry{Description: "ct scan brain"}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	ids, err := reopened.Search(ctx, "ct", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("reopened search = %v", ids)
	}
}
