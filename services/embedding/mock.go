package embedding

import (
	"context"
	"math"

	"github.com/context-engine/models"
)

// MockClient produces deterministic unit vectors from the text content.
// Identical texts embed identically and similar prefixes land near each
// other, which is enough structure for tests.
type MockClient struct {
	dimensions int
}

func NewMockClient(dimensions int) *MockClient {
	if dimensions <= 0 {
		dimensions = 1024
	}
	return &MockClient{dimensions: dimensions}
}

func (c *MockClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = c.vectorFor(text)
	}
	return out, nil
}

func (c *MockClient) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return c.vectorFor(text), nil
}

func (c *MockClient) ModelInfo() models.EmbeddingModelInfo {
	return models.EmbeddingModelInfo{Provider: "mock", Model: "mock-embedding", Dimensions: c.dimensions}
}

func (c *MockClient) vectorFor(text string) []float32 {
	vec := make([]float32, c.dimensions)
	for i, char := range text {
		vec[i%c.dimensions] += float32(char) / 1000.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
	return v
}

var (
	_ Client = (*VoyageClient)(nil)
	_ Client = (*GeminiClient)(nil)
	_ Client = (*MockClient)(nil)
)
