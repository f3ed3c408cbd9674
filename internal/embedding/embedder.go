// Package embedding provides text and image embedding in a shared CLIP-style
// vector space, via ONNX Runtime with an LRU cache.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when asked to embed an empty string or payload.
var ErrEmptyInput = errors.New("cannot embed empty input")

// Embedder produces unit-norm vector embeddings for text and images in one
// shared space, so text and image embeddings are directly comparable.
// Implementations must be deterministic for identical input.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)
	Dimensions() int
	Close() error
}
