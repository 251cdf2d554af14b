package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
	"github.com/imwonpark/RAG-based-SE/vectorindex"
)

func TestVectorStore_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects mismatched lengths", func(t *testing.T) {
		index := newRecordingIndex()
		store := newStore(t, index)

		chunks := []models.Chunk{chunk("a", "A", "a.md", 0), chunk("b", "A", "a.md", 1)}
		_, err := store.Ingest(ctx, chunks, [][]float32{{1, 0}})

		var mismatch *services.DimensionMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, 2, mismatch.Chunks)
		assert.Equal(t, 1, mismatch.Vectors)
		assert.Empty(t, index.UpsertSizes())
	})

	t.Run("upserts in batches of one hundred", func(t *testing.T) {
		index := newRecordingIndex()
		store := newStore(t, index)

		chunks := make([]models.Chunk, 250)
		vectors := make([][]float32, 250)
		for i := range chunks {
			chunks[i] = chunk(fmt.Sprintf("text %d", i), "Big", "big.md", i)
			vectors[i] = []float32{float32(i), 1}
		}

		stored, err := store.Ingest(ctx, chunks, vectors)
		require.NoError(t, err)
		assert.Equal(t, 250, stored)
		assert.Equal(t, []int{100, 100, 50}, index.UpsertSizes())

		count, err := index.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 250, count)
	})

	t.Run("builds ids and metadata", func(t *testing.T) {
		index := vectorindex.NewMemoryIndex("docs")
		store := newStore(t, index)

		chunks := []models.Chunk{
			chunk("Redis keeps data in memory.", "Redis Caching", "docs/redis.md", 0),
			{Text: "untitled", ChunkIndex: 3},
		}
		_, err := store.Ingest(ctx, chunks, [][]float32{{1, 0}, {0, 1}})
		require.NoError(t, err)

		ids, err := index.Find(ctx, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			services.RecordID("Redis Caching", 0, services.SourceSeq("docs/redis.md")),
			"Unknown_3_1",
		}, ids)

		records, err := index.Peek(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"title":       "Redis Caching",
			"source":      "docs/redis.md",
			"chunk_index": 0,
			"chunk_size":  27,
		}, records[0].Metadata)
		assert.Equal(t, map[string]any{
			"title":       "Unknown",
			"source":      "Unknown",
			"chunk_index": 3,
			"chunk_size":  8,
		}, records[1].Metadata)
	})

	t.Run("keeps earlier batches when a later one fails", func(t *testing.T) {
		index := &flakyIndex{recordingIndex: newRecordingIndex(), failOn: 2}
		store := newStore(t, index)

		chunks := make([]models.Chunk, 250)
		vectors := make([][]float32, 250)
		for i := range chunks {
			chunks[i] = chunk(fmt.Sprintf("text %d", i), "Big", "big.md", i)
			vectors[i] = []float32{float32(i), 1}
		}

		stored, err := store.Ingest(ctx, chunks, vectors)
		require.ErrorIs(t, err, errIndexDown)
		assert.Equal(t, 100, stored)

		count, err := index.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 100, count)
	})

	t.Run("same title from different sources", func(t *testing.T) {
		index := vectorindex.NewMemoryIndex("docs")
		store := newStore(t, index)

		_, err := store.Ingest(ctx, []models.Chunk{chunk("a", "Overview", "a/README.md", 0)}, [][]float32{{1, 0}})
		require.NoError(t, err)
		_, err = store.Ingest(ctx, []models.Chunk{chunk("b", "Overview", "b/README.md", 0)}, [][]float32{{0, 1}})
		require.NoError(t, err)

		count, err := index.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("wraps index failures", func(t *testing.T) {
		store := newStore(t, failingIndex{})
		_, err := store.Ingest(ctx, []models.Chunk{chunk("a", "A", "a.md", 0)}, [][]float32{{1}})

		var unavailable *services.IndexUnavailableError
		require.True(t, errors.As(err, &unavailable))
		assert.Equal(t, "upsert", unavailable.Op)
		assert.ErrorIs(t, err, errIndexDown)
	})
}

func TestVectorStore_Search(t *testing.T) {
	ctx := context.Background()
	index := vectorindex.NewMemoryIndex("docs")
	store := newStore(t, index)

	chunks := []models.Chunk{
		chunk("redis", "Redis", "redis.md", 0),
		chunk("go", "Go", "go.md", 0),
	}
	_, err := store.Ingest(ctx, chunks, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	t.Run("orders by distance", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0}, 5, nil)
		require.NoError(t, err)

		require.Len(t, results, 2)
		assert.Equal(t, "redis", results[0].Text)
		assert.Equal(t, "Redis", results[0].Title)
		assert.Equal(t, "redis.md", results[0].Source)
		assert.InDelta(t, 0, results[0].Distance, 1e-9)
		assert.InDelta(t, 1, results[0].Similarity, 1e-9)
		assert.InDelta(t, 2, results[1].Distance, 1e-9)
		assert.InDelta(t, 0, results[1].Similarity, 1e-9)
	})

	t.Run("limits to topK", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0}, 1, nil)
		require.NoError(t, err)
		assert.Len(t, results, 1)

		results, err = store.Search(ctx, []float32{1, 0}, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("applies metadata filter", func(t *testing.T) {
		results, err := store.Search(ctx, []float32{1, 0}, 5, map[string]any{"source": "go.md"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "go", results[0].Text)
	})

	t.Run("invalid filter is not an availability error", func(t *testing.T) {
		_, err := store.Search(ctx, []float32{1, 0}, 5, map[string]any{"source": []string{"a"}})
		require.ErrorIs(t, err, services.ErrInvalidFilter)

		var unavailable *services.IndexUnavailableError
		assert.False(t, errors.As(err, &unavailable))
	})

	t.Run("index failure", func(t *testing.T) {
		_, err := newStore(t, failingIndex{}).Search(ctx, []float32{1, 0}, 5, nil)
		var unavailable *services.IndexUnavailableError
		assert.True(t, errors.As(err, &unavailable))
	})
}

func TestVectorStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	index := vectorindex.NewMemoryIndex("docs")
	store := newStore(t, index)

	chunks := []models.Chunk{
		chunk("a0", "A", "a.md", 0),
		chunk("a1", "A", "a.md", 1),
		chunk("b0", "B", "b.md", 0),
	}
	_, err := store.Ingest(ctx, chunks, [][]float32{{1, 0}, {1, 0}, {0, 1}})
	require.NoError(t, err)

	deleted, err := store.DeleteByFilter(ctx, map[string]any{"source": "a.md"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	deleted, err = store.DeleteByFilter(ctx, map[string]any{"source": "missing.md"})
	require.NoError(t, err)
	assert.Zero(t, deleted)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.Clear(ctx))
	count, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	err = newStore(t, failingIndex{}).Clear(ctx)
	var unavailable *services.IndexUnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestVectorStore_Stats(t *testing.T) {
	ctx := context.Background()
	index := vectorindex.NewMemoryIndex("docs")
	store := newStore(t, index)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &models.IndexStats{RecordCount: 0}, stats)

	_, err = store.Ingest(ctx, []models.Chunk{chunk("a", "A", "a.md", 0)}, [][]float32{{1}})
	require.NoError(t, err)

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "docs", stats.CollectionName)
	assert.Equal(t, 1, stats.RecordCount)
	assert.Equal(t, "memory", stats.PersistLocation)
	assert.Equal(t, "A", stats.SampleMetadata["title"])
}

func TestNewVectorStore(t *testing.T) {
	var cfgErr *services.ConfigurationError

	_, err := services.NewVectorStore(nil)
	assert.True(t, errors.As(err, &cfgErr))

	_, err = services.NewVectorStore(vectorindex.NewMemoryIndex("docs"), services.WithIngestBatchSize(-1))
	assert.True(t, errors.As(err, &cfgErr))
}

func TestVectorStore_SearchRejectsMalformedResults(t *testing.T) {
	store := newStore(t, shortIndex{MemoryIndex: vectorindex.NewMemoryIndex("docs")})

	_, err := store.Search(context.Background(), []float32{1, 0}, 5, nil)
	var unavailable *services.IndexUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "query", unavailable.Op)
	assert.Contains(t, err.Error(), "2 ids")
}

func TestSourceSeq(t *testing.T) {
	assert.Equal(t, services.SourceSeq("docs/redis.md"), services.SourceSeq("docs/redis.md"))
	assert.NotEqual(t, services.SourceSeq("a/README.md"), services.SourceSeq("b/README.md"))
	assert.GreaterOrEqual(t, services.SourceSeq("docs/redis.md"), 0)
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "Redis_Caching_0_0", services.RecordID("Redis Caching", 0, 0))
	assert.Equal(t, "docs_a_b_c_1_2", services.RecordID("docs/a b\\c", 1, 2))
	assert.Equal(t, "tab_new_line_4_5", services.RecordID("tab\tnew\nline", 4, 5))
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, services.Similarity(0), 1e-9)
	assert.InDelta(t, 0.5, services.Similarity(1), 1e-9)
	assert.InDelta(t, 0.0, services.Similarity(2), 1e-9)
	assert.InDelta(t, -1.0, services.Similarity(4), 1e-9)
}
