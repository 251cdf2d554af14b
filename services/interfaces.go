package services

import (
	"context"

	"github.com/imwonpark/RAG-based-SE/models"
)

// DocumentSource turns files on disk into Documents.
type DocumentSource interface {
	LoadFile(path string) (*models.Document, error)
	// LoadDirectory loads every supported file under dir. Files that cannot be
	// loaded are reported in the second return value instead of failing the call.
	LoadDirectory(dir string) ([]models.Document, []models.SkippedFile, error)
}

// EmbeddingModel maps text to fixed-dimension vectors.
type EmbeddingModel interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is a similarity-searchable store of IndexedRecords.
// Query results must be ordered by ascending distance.
type VectorIndex interface {
	Upsert(ctx context.Context, records []models.IndexedRecord) error
	Query(ctx context.Context, vector []float32, k int, filter map[string]any) (*models.QueryResult, error)
	// Find returns the ids of every record whose metadata equals filter on all keys.
	Find(ctx context.Context, filter map[string]any) ([]string, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	Peek(ctx context.Context, limit int) ([]models.IndexedRecord, error)
	// Reset drops every record and leaves an empty collection behind.
	Reset(ctx context.Context) error
	Name() string
	Location() string
}

// LLMClient completes a single system + user prompt pair.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// Chunker splits document text into Chunks.
type Chunker interface {
	Chunk(text string, metadata map[string]any) []models.Chunk
	ChunkDocuments(docs []models.Document) []models.Chunk
}
