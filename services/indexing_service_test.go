package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imwonpark/RAG-based-SE/mock"
	"github.com/imwonpark/RAG-based-SE/services"
	"github.com/imwonpark/RAG-based-SE/vectorindex"
)

type indexFixture struct {
	dir     string
	index   *vectorindex.MemoryIndex
	store   *services.VectorStore
	indexer *services.IndexingService
}

func newIndexFixture(t *testing.T) *indexFixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "redis.md"), "# Redis Caching\n\nRedis keeps hot data in memory.\n\nKeys can expire.")
	writeFile(t, filepath.Join(dir, "go.md"), "# Go\n\nGo has goroutines.")

	index := vectorindex.NewMemoryIndex("engineering_docs")
	store := newStore(t, index)
	embedder, err := services.NewEmbeddingService(mock.NewMockEmbedder(8))
	require.NoError(t, err)
	chunker, err := services.NewTextChunker(8, 0, "")
	require.NoError(t, err)

	indexer, err := services.NewIndexingService(services.NewDocumentLoader(), chunker, embedder, store)
	require.NoError(t, err)
	return &indexFixture{dir: dir, index: index, store: store, indexer: indexer}
}

func (f *indexFixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.index.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestIndexingService_IndexDirectory(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t)

	report, err := f.indexer.IndexDirectory(ctx, f.dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, report.Chunks, report.Records)
	assert.Greater(t, report.Chunks, 2)
	assert.False(t, report.Rebuilt)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, report.Records, f.count(t))

	t.Run("reindexing replaces records", func(t *testing.T) {
		again, err := f.indexer.IndexDirectory(ctx, f.dir, false)
		require.NoError(t, err)
		assert.Equal(t, report.Records, again.Records)
		assert.Equal(t, report.Records, f.count(t))
	})

	t.Run("rebuild clears first", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(f.dir, "go.md")))

		rebuilt, err := f.indexer.IndexDirectory(ctx, f.dir, true)
		require.NoError(t, err)
		assert.True(t, rebuilt.Rebuilt)
		assert.Equal(t, 1, rebuilt.Documents)
		assert.Equal(t, rebuilt.Records, f.count(t))

		ids, err := f.index.Find(ctx, map[string]any{"title": "Go"})
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := f.indexer.IndexDirectory(ctx, filepath.Join(f.dir, "missing"), false)
		assert.ErrorIs(t, err, services.ErrDirectoryNotFound)
	})
}

func TestIndexingService_IndexAndRemoveFile(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t)
	path := filepath.Join(f.dir, "go.md")

	stored, err := f.indexer.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Equal(t, 1, f.count(t))

	stored, err = f.indexer.IndexFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Equal(t, 1, f.count(t))

	removed, err := f.indexer.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, f.count(t))
}

func TestIndexingService_WatchDirectory(t *testing.T) {
	f := newIndexFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.indexer.WatchDirectory(ctx, f.dir) }()

	path := filepath.Join(f.dir, "watched.md")
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("# Watched\n\nWritten while watching."), 0o644)
		ids, err := f.index.Find(context.Background(), map[string]any{"source": path})
		return err == nil && len(ids) > 0
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewIndexingService(t *testing.T) {
	_, err := services.NewIndexingService(nil, nil, nil, nil)
	var cfgErr *services.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestIndexingService_SameTitleInDifferentDirectories(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t)
	first := filepath.Join(f.dir, "a", "README.md")
	second := filepath.Join(f.dir, "b", "README.md")
	writeFile(t, first, "# Overview\n\nAlpha service notes.")
	writeFile(t, second, "# Overview\n\nBeta service notes.")

	n, err := f.indexer.IndexFile(ctx, first)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	n, err = f.indexer.IndexFile(ctx, second)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	assert.Equal(t, 2, f.count(t))
	for _, path := range []string{first, second} {
		ids, err := f.index.Find(ctx, map[string]any{"source": path})
		require.NoError(t, err)
		assert.Len(t, ids, 1, path)
	}
}
