//go:build cgo
// +build cgo

// CLIP embedder backed by ONNX Runtime (requires CGO and the onnxruntime
// shared library). The textual and visual encoders are separate ONNX models
// projecting into the same embedding space.
package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/clinivis/mediscope/internal/imaging"
	"github.com/clinivis/mediscope/pkg/utils"
)

// CLIPEmbedder embeds text and images with two ONNX sessions. All outputs
// are L2-normalized so cosine similarity reduces to a dot product.
type CLIPEmbedder struct {
	dimensions int
	tokenizer  Tokenizer
	cache      *EmbeddingCache

	// Text session with pre-allocated tensors; we update input data and read output.
	textSession *ort.AdvancedSession
	textInput   *ort.Tensor[int64]
	textOutput  *ort.Tensor[float32]
	textMu      sync.Mutex

	// Visual session, same scheme.
	imageSession *ort.AdvancedSession
	imageInput   *ort.Tensor[float32]
	imageOutput  *ort.Tensor[float32]
	imageMu      sync.Mutex
}

// NewCLIPEmbedder creates a CLIP embedder from textual and visual ONNX model
// paths. InitializeEnvironment is called if not already done.
func NewCLIPEmbedder(textModelPath, imageModelPath string, dimensions, cacheSize int) (*CLIPEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	e := &CLIPEmbedder{
		dimensions: dimensions,
		tokenizer:  &SimpleTokenizer{},
		cache:      NewEmbeddingCache(cacheSize),
	}

	var err error
	e.textInput, err = ort.NewTensor(ort.NewShape(1, ContextLength), make([]int64, ContextLength))
	if err != nil {
		return nil, fmt.Errorf("failed to create text input tensor: %w", err)
	}
	e.textOutput, err = ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create text output tensor: %w", err)
	}
	e.textSession, err = ort.NewAdvancedSession(
		textModelPath,
		[]string{"input_ids"},
		[]string{"text_embeds"},
		[]ort.ArbitraryTensor{e.textInput},
		[]ort.ArbitraryTensor{e.textOutput},
		nil,
	)
	if err != nil {
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create text session: %w", err)
	}

	pixels := 3 * imaging.InputSize * imaging.InputSize
	e.imageInput, err = ort.NewTensor(
		ort.NewShape(1, 3, imaging.InputSize, imaging.InputSize),
		make([]float32, pixels),
	)
	if err != nil {
		e.closeText()
		return nil, fmt.Errorf("failed to create image input tensor: %w", err)
	}
	e.imageOutput, err = ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		e.closeText()
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create image output tensor: %w", err)
	}
	e.imageSession, err = ort.NewAdvancedSession(
		imageModelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{e.imageInput},
		[]ort.ArbitraryTensor{e.imageOutput},
		nil,
	)
	if err != nil {
		e.closeText()
		e.destroyTensors()
		return nil, fmt.Errorf("failed to create image session: %w", err)
	}

	return e, nil
}

// EmbedText returns the unit-norm embedding for text, using the cache when available.
func (e *CLIPEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	e.textMu.Lock()
	defer e.textMu.Unlock()

	copy(e.textInput.GetData(), e.tokenizer.Tokenize(text))
	if err := e.textSession.Run(); err != nil {
		return nil, fmt.Errorf("text inference failed: %w", err)
	}

	embedding := make([]float32, e.dimensions)
	copy(embedding, e.textOutput.GetData()[:e.dimensions])
	utils.NormalizeL2(embedding)
	e.cache.Set(text, embedding)
	return embedding, nil
}

// EmbedImage decodes data and returns the unit-norm embedding of the image.
func (e *CLIPEmbedder) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	tensor := imaging.ToTensor(img)

	e.imageMu.Lock()
	defer e.imageMu.Unlock()

	copy(e.imageInput.GetData(), tensor)
	if err := e.imageSession.Run(); err != nil {
		return nil, fmt.Errorf("image inference failed: %w", err)
	}

	embedding := make([]float32, e.dimensions)
	copy(embedding, e.imageOutput.GetData()[:e.dimensions])
	utils.NormalizeL2(embedding)
	return embedding, nil
}

// Dimensions returns the embedding dimension.
func (e *CLIPEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *CLIPEmbedder) closeText() {
	if e.textSession != nil {
		_ = e.textSession.Destroy()
		e.textSession = nil
	}
}

func (e *CLIPEmbedder) destroyTensors() {
	for _, t := range []ort.ArbitraryTensor{e.textInput, e.textOutput, e.imageInput, e.imageOutput} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.textInput, e.textOutput, e.imageInput, e.imageOutput = nil, nil, nil, nil
}

// Close destroys both sessions and their tensors.
func (e *CLIPEmbedder) Close() error {
	var err error
	if e.textSession != nil {
		err = e.textSession.Destroy()
		e.textSession = nil
	}
	if e.imageSession != nil {
		if derr := e.imageSession.Destroy(); err == nil {
			err = derr
		}
		e.imageSession = nil
	}
	e.destroyTensors()
	return err
}
