package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"unicode"

	"github.com/imwonpark/RAG-based-SE/models"
)

const (
	// DefaultIngestBatchSize is the number of records upserted per index call.
	DefaultIngestBatchSize = 100

	unknownMetadata = "Unknown"
	sampleSize      = 5
)

// VectorStore adapts a VectorIndex to chunk ingestion and retrieval.
type VectorStore struct {
	index     VectorIndex
	batchSize int
	logger    *slog.Logger
}

// VectorStoreOption configures a VectorStore.
type VectorStoreOption func(*VectorStore) error

// WithIngestBatchSize overrides DefaultIngestBatchSize.
func WithIngestBatchSize(size int) VectorStoreOption {
	return func(s *VectorStore) error {
		if size <= 0 {
			return &ConfigurationError{Component: "vector store", Reason: fmt.Sprintf("batch size must be positive, got %d", size)}
		}
		s.batchSize = size
		return nil
	}
}

// WithVectorStoreLogger sets the logger.
func WithVectorStoreLogger(logger *slog.Logger) VectorStoreOption {
	return func(s *VectorStore) error {
		s.logger = logger
		return nil
	}
}

// NewVectorStore wraps index. A nil index is a ConfigurationError.
func NewVectorStore(index VectorIndex, opts ...VectorStoreOption) (*VectorStore, error) {
	if index == nil {
		return nil, &ConfigurationError{Component: "vector store", Reason: "vector index is required"}
	}
	s := &VectorStore{
		index:     index,
		batchSize: DefaultIngestBatchSize,
		logger:    slog.Default().With("component", "vector_store"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Ingest stores one record per chunk and returns the number stored. Batches
// already written stay written when a later batch fails.
func (s *VectorStore) Ingest(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, &DimensionMismatchError{Chunks: len(chunks), Vectors: len(vectors)}
	}

	records := make([]models.IndexedRecord, len(chunks))
	for i, chunk := range chunks {
		title := metaString(chunk.Metadata, "title", unknownMetadata)
		source := metaString(chunk.Metadata, "source", unknownMetadata)
		seq := i
		if source != unknownMetadata {
			seq = SourceSeq(source)
		}
		records[i] = models.IndexedRecord{
			ID:     RecordID(title, chunk.ChunkIndex, seq),
			Vector: vectors[i],
			Text:   chunk.Text,
			Metadata: map[string]any{
				"title":       title,
				"source":      source,
				"chunk_index": chunk.ChunkIndex,
				"chunk_size":  metaInt(chunk.Metadata, "chunk_size", len([]rune(chunk.Text))),
			},
		}
	}

	stored := 0
	for offset := 0; offset < len(records); offset += s.batchSize {
		end := min(offset+s.batchSize, len(records))
		if err := s.index.Upsert(ctx, records[offset:end]); err != nil {
			return stored, s.wrap("upsert", err)
		}
		stored = end
		s.logger.Debug("upserted batch", "from", offset, "to", end, "total", len(records))
	}

	s.logger.Info("ingested chunks", "count", stored, "collection", s.index.Name())
	return stored, nil
}

// Search returns up to topK results ordered by ascending distance. filter is
// an equality match on record metadata and may be nil.
func (s *VectorStore) Search(ctx context.Context, vector []float32, topK int, filter map[string]any) ([]models.RetrievalResult, error) {
	if topK <= 0 {
		return []models.RetrievalResult{}, nil
	}
	res, err := s.index.Query(ctx, vector, topK, filter)
	if err != nil {
		return nil, s.wrap("query", err)
	}

	n := res.Len()
	if n == 0 {
		return []models.RetrievalResult{}, nil
	}
	if len(res.Texts) != n || len(res.Metadatas) != n || len(res.Distances) != n {
		return nil, &IndexUnavailableError{Op: "query", Err: fmt.Errorf("malformed result: %d ids, %d texts, %d metadatas, %d distances",
			n, len(res.Texts), len(res.Metadatas), len(res.Distances))}
	}

	results := make([]models.RetrievalResult, 0, n)
	for i := 0; i < n; i++ {
		meta := res.Metadatas[i]
		distance := res.Distances[i]
		results = append(results, models.RetrievalResult{
			Text:       res.Texts[i],
			Title:      metaString(meta, "title", unknownMetadata),
			Source:     metaString(meta, "source", unknownMetadata),
			ChunkIndex: metaInt(meta, "chunk_index", 0),
			Distance:   distance,
			Similarity: Similarity(distance),
		})
	}
	return results, nil
}

// SearchByText embeds text with embedder and searches with the result.
func (s *VectorStore) SearchByText(ctx context.Context, text string, embedder *EmbeddingService, topK int) ([]models.RetrievalResult, error) {
	vector, err := embedder.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, vector, topK, nil)
}

// Clear drops every record and recreates an empty collection.
func (s *VectorStore) Clear(ctx context.Context) error {
	if err := s.index.Reset(ctx); err != nil {
		return s.wrap("reset", err)
	}
	s.logger.Info("cleared collection", "collection", s.index.Name())
	return nil
}

// DeleteByFilter removes every record matching filter and returns how many
// were removed.
func (s *VectorStore) DeleteByFilter(ctx context.Context, filter map[string]any) (int, error) {
	ids, err := s.index.Find(ctx, filter)
	if err != nil {
		return 0, s.wrap("find", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.index.Delete(ctx, ids); err != nil {
		return 0, s.wrap("delete", err)
	}
	s.logger.Info("deleted records", "count", len(ids), "filter", filter)
	return len(ids), nil
}

// Stats describes the collection. An empty collection reports only its count.
func (s *VectorStore) Stats(ctx context.Context) (*models.IndexStats, error) {
	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, s.wrap("count", err)
	}
	if count == 0 {
		return &models.IndexStats{RecordCount: 0}, nil
	}

	stats := &models.IndexStats{
		CollectionName:  s.index.Name(),
		RecordCount:     count,
		PersistLocation: s.index.Location(),
	}
	sample, err := s.index.Peek(ctx, sampleSize)
	if err != nil {
		return nil, s.wrap("peek", err)
	}
	if len(sample) > 0 {
		stats.SampleMetadata = sample[0].Metadata
	}
	return stats, nil
}

func (s *VectorStore) wrap(op string, err error) error {
	if errors.Is(err, ErrInvalidFilter) {
		return err
	}
	var unavailable *IndexUnavailableError
	if errors.As(err, &unavailable) {
		return err
	}
	return &IndexUnavailableError{Op: op, Err: err}
}

// Similarity maps a distance onto a similarity score as 1 - distance/2.
// Unit vectors give 1 when identical and 0 when orthogonal.
func Similarity(distance float64) float64 {
	return 1 - distance/2
}

// SourceSeq derives the record sequence number from a source path, so files
// that share a title keep distinct ids across ingest calls.
func SourceSeq(source string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(source))
	return int(h.Sum32() & 0x7fffffff)
}

// RecordID builds the index id of a chunk. Whitespace and path separators in
// the title become underscores.
func RecordID(title string, chunkIndex, seq int) string {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, title)
	return fmt.Sprintf("%s_%d_%d", normalized, chunkIndex, seq)
}

func metaString(meta map[string]any, key, fallback string) string {
	if v, ok := meta[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// metaInt reads an integer that may have been decoded from JSON as a float.
func metaInt(meta map[string]any, key string, fallback int) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
