package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/imwonpark/RAG-based-SE/services"
)

// MockEmbedder is a test double for services.EmbeddingModel.
type MockEmbedder struct {
	// EmbedFunc replaces the default single-text behavior when set. It is
	// also used per text by EmbedBatch when EmbedBatchFunc is nil.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedBatchFunc replaces the default batch behavior when set.
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

	dim        int
	mu         sync.Mutex
	calls      int
	batchSizes []int
}

var _ services.EmbeddingModel = (*MockEmbedder)(nil)

// NewMockEmbedder creates an embedder producing vectors of dimension dim.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{dim: dim}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.embed(ctx, text)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.batchSizes = append(m.batchSizes, len(texts))
	m.mu.Unlock()

	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *MockEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return DeterministicVector(text, m.dim), nil
}

// CallCount returns the number of Embed and EmbedBatch calls.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// BatchSizes returns the length of every EmbedBatch input, in call order.
func (m *MockEmbedder) BatchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchSizes...)
}

// DeterministicVector derives a unit vector of dimension dim from text.
// The same text always yields the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	var sumSquares float64
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%1000)/1000.0 + 0.001
		sumSquares += float64(vector[i]) * float64(vector[i])
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
