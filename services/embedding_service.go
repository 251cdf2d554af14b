package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/imwonpark/RAG-based-SE/models"
)

// DefaultEmbeddingBatchSize is the number of texts sent to the model per call.
const DefaultEmbeddingBatchSize = 32

// EmbeddingService batches texts through an EmbeddingModel. It adds batching
// and timing logs only; there is no caching and no retry.
type EmbeddingService struct {
	model     EmbeddingModel
	batchSize int
	logger    *slog.Logger
}

// EmbeddingOption configures an EmbeddingService.
type EmbeddingOption func(*EmbeddingService) error

// WithEmbeddingBatchSize overrides DefaultEmbeddingBatchSize.
func WithEmbeddingBatchSize(size int) EmbeddingOption {
	return func(s *EmbeddingService) error {
		if size <= 0 {
			return &ConfigurationError{Component: "embedding service", Reason: fmt.Sprintf("batch size must be positive, got %d", size)}
		}
		s.batchSize = size
		return nil
	}
}

// WithEmbeddingLogger sets the logger.
func WithEmbeddingLogger(logger *slog.Logger) EmbeddingOption {
	return func(s *EmbeddingService) error {
		s.logger = logger
		return nil
	}
}

// NewEmbeddingService wraps model. A nil model is a ConfigurationError.
func NewEmbeddingService(model EmbeddingModel, opts ...EmbeddingOption) (*EmbeddingService, error) {
	if model == nil {
		return nil, &ConfigurationError{Component: "embedding service", Reason: "embedding model is required"}
	}
	s := &EmbeddingService{
		model:     model,
		batchSize: DefaultEmbeddingBatchSize,
		logger:    slog.Default().With("component", "embedder"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// EmbedOne embeds a single text.
func (s *EmbeddingService) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.model.Embed(ctx, text)
	if err != nil {
		return nil, &EmbeddingError{Op: "embed", Err: err}
	}
	if len(vector) == 0 {
		return nil, &EmbeddingError{Op: "embed", Err: fmt.Errorf("model returned an empty vector")}
	}
	return vector, nil
}

// EmbedBatch embeds texts in batches of batchSize, or the service default when
// batchSize is not positive. The result is one-to-one with texts and in the
// same order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	start := time.Now()
	vectors := make([][]float32, 0, len(texts))
	for offset := 0; offset < len(texts); offset += batchSize {
		end := min(offset+batchSize, len(texts))
		batch, err := s.model.EmbedBatch(ctx, texts[offset:end])
		if err != nil {
			return nil, &EmbeddingError{Op: fmt.Sprintf("batch %d-%d", offset, end), Err: err}
		}
		if len(batch) != end-offset {
			return nil, &EmbeddingError{
				Op:  fmt.Sprintf("batch %d-%d", offset, end),
				Err: fmt.Errorf("model returned %d vectors for %d texts", len(batch), end-offset),
			}
		}
		vectors = append(vectors, batch...)
		s.logger.Debug("embedded batch", "from", offset, "to", end, "total", len(texts))
	}

	s.logger.Info("embedded texts", "count", len(texts), "batch_size", batchSize, "elapsed", time.Since(start))
	return vectors, nil
}

// EmbedChunks embeds the text of every chunk.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return s.EmbedBatch(ctx, texts, s.batchSize)
}
