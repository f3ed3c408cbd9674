package embedding

import (
	"context"
	"math"

	"github.com/clinivis/mediscope/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and for running without
// the ONNX models. It derives a fixed-dimension unit vector from the input
// hash, so identical input always gets the identical embedding. Text and
// image inputs hash into the same space.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	return &MockEmbedder{dimensions: dimensions}
}

// EmbedText returns a deterministic unit-norm embedding based on the text hash.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return e.fromHash(HashString(text)), nil
}

// EmbedImage returns a deterministic unit-norm embedding based on the byte hash.
func (e *MockEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	return e.fromHash(HashString(string(data))), nil
}

func (e *MockEmbedder) fromHash(h int) []float32 {
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
