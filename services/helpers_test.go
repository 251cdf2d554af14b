package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
	"github.com/imwonpark/RAG-based-SE/vectorindex"
)

var errIndexDown = errors.New("connection refused")

// recordingIndex is a MemoryIndex that records the size of every upsert.
type recordingIndex struct {
	*vectorindex.MemoryIndex

	mu      sync.Mutex
	upserts []int
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{MemoryIndex: vectorindex.NewMemoryIndex("test_docs")}
}

func (r *recordingIndex) Upsert(ctx context.Context, records []models.IndexedRecord) error {
	r.mu.Lock()
	r.upserts = append(r.upserts, len(records))
	r.mu.Unlock()
	return r.MemoryIndex.Upsert(ctx, records)
}

func (r *recordingIndex) UpsertSizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.upserts...)
}

// flakyIndex fails the failOn-th upsert and passes every other call through.
type flakyIndex struct {
	*recordingIndex
	failOn int
}

func (f *flakyIndex) Upsert(ctx context.Context, records []models.IndexedRecord) error {
	if len(f.UpsertSizes())+1 == f.failOn {
		f.mu.Lock()
		f.upserts = append(f.upserts, len(records))
		f.mu.Unlock()
		return errIndexDown
	}
	return f.recordingIndex.Upsert(ctx, records)
}

// shortIndex answers every query with two ids but a single distance.
type shortIndex struct {
	*vectorindex.MemoryIndex
}

func (shortIndex) Query(context.Context, []float32, int, map[string]any) (*models.QueryResult, error) {
	return &models.QueryResult{
		IDs:       []string{"a", "b"},
		Texts:     []string{"a", "b"},
		Metadatas: []map[string]any{{}, {}},
		Distances: []float64{0.1},
	}, nil
}

// failingIndex fails every operation.
type failingIndex struct{}

func (failingIndex) Upsert(context.Context, []models.IndexedRecord) error { return errIndexDown }
func (failingIndex) Query(context.Context, []float32, int, map[string]any) (*models.QueryResult, error) {
	return nil, errIndexDown
}
func (failingIndex) Find(context.Context, map[string]any) ([]string, error) { return nil, errIndexDown }
func (failingIndex) Delete(context.Context, []string) error                  { return errIndexDown }
func (failingIndex) Count(context.Context) (int, error)                      { return 0, errIndexDown }
func (failingIndex) Peek(context.Context, int) ([]models.IndexedRecord, error) {
	return nil, errIndexDown
}
func (failingIndex) Reset(context.Context) error { return errIndexDown }
func (failingIndex) Name() string                { return "down" }
func (failingIndex) Location() string            { return "nowhere" }

func newStore(t *testing.T, index services.VectorIndex, opts ...services.VectorStoreOption) *services.VectorStore {
	t.Helper()
	store, err := services.NewVectorStore(index, opts...)
	require.NoError(t, err)
	return store
}

func chunk(text, title, source string, index int) models.Chunk {
	return models.Chunk{
		Text:       text,
		ChunkIndex: index,
		Metadata: map[string]any{
			"title":       title,
			"source":      source,
			"chunk_index": index,
			"chunk_size":  len([]rune(text)),
		},
	}
}
