// Package imageid derives stable record IDs from image file paths, so that
// re-indexing the same file updates its record instead of duplicating it.
package imageid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// PathID returns a deterministic ID for an image file path. The path is
// cleaned first so equivalent spellings map to the same ID.
func PathID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return "img:" + hex.EncodeToString(sum[:16])
}
