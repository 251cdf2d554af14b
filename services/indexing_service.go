package services

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/imwonpark/RAG-based-SE/models"
)

// IndexingService loads, chunks, embeds and stores documents.
type IndexingService struct {
	loader   DocumentSource
	chunker  Chunker
	embedder *EmbeddingService
	store    *VectorStore
	logger   *slog.Logger
}

// NewIndexingService creates an indexing service. Every dependency is required.
func NewIndexingService(loader DocumentSource, chunker Chunker, embedder *EmbeddingService, store *VectorStore) (*IndexingService, error) {
	switch {
	case loader == nil:
		return nil, &ConfigurationError{Component: "indexing service", Reason: "document source is required"}
	case chunker == nil:
		return nil, &ConfigurationError{Component: "indexing service", Reason: "chunker is required"}
	case embedder == nil:
		return nil, &ConfigurationError{Component: "indexing service", Reason: "embedding service is required"}
	case store == nil:
		return nil, &ConfigurationError{Component: "indexing service", Reason: "vector store is required"}
	}
	return &IndexingService{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   slog.Default().With("component", "indexer"),
	}, nil
}

// IndexDirectory indexes every supported file under dir. With rebuild the
// collection is cleared first; otherwise the previous records of each loaded
// file are replaced.
func (s *IndexingService) IndexDirectory(ctx context.Context, dir string, rebuild bool) (*models.IndexReport, error) {
	start := time.Now()
	s.logger.Info("starting directory scan", "directory", dir, "rebuild", rebuild)

	docs, skipped, err := s.loader.LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	for _, skip := range skipped {
		s.logger.Warn("skipped file", "path", skip.Path, "reason", skip.Reason)
	}

	chunks := s.chunker.ChunkDocuments(docs)
	vectors, err := s.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if rebuild {
		if err := s.store.Clear(ctx); err != nil {
			return nil, err
		}
	} else {
		for _, doc := range docs {
			if _, err := s.store.DeleteByFilter(ctx, map[string]any{"source": doc.Source}); err != nil {
				return nil, fmt.Errorf("failed to delete old version of %s: %w", doc.Source, err)
			}
		}
	}

	stored, err := s.store.Ingest(ctx, chunks, vectors)
	if err != nil {
		return nil, err
	}

	report := &models.IndexReport{
		Directory:  dir,
		Documents:  len(docs),
		Chunks:     len(chunks),
		Records:    stored,
		Skipped:    skipped,
		Rebuilt:    rebuild,
		DurationMs: elapsedMs(start),
	}
	s.logger.Info("directory scan finished",
		"directory", dir,
		"documents", report.Documents,
		"chunks", report.Chunks,
		"skipped", len(skipped),
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

// IndexFile replaces the records of a single file and returns how many
// records were written.
func (s *IndexingService) IndexFile(ctx context.Context, path string) (int, error) {
	doc, err := s.loader.LoadFile(path)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.DeleteByFilter(ctx, map[string]any{"source": doc.Source}); err != nil {
		return 0, err
	}

	chunks := s.chunker.ChunkDocuments([]models.Document{*doc})
	vectors, err := s.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return 0, err
	}
	stored, err := s.store.Ingest(ctx, chunks, vectors)
	if err != nil {
		return stored, err
	}
	s.logger.Info("indexed file", "path", path, "chunks", len(chunks))
	return stored, nil
}

// RemoveFile deletes every record that came from path.
func (s *IndexingService) RemoveFile(ctx context.Context, path string) (int, error) {
	return s.store.DeleteByFilter(ctx, map[string]any{"source": path})
}

// WatchDirectory re-indexes supported files under dir as they are written and
// drops them from the index when they are removed. It blocks until ctx is
// cancelled.
func (s *IndexingService) WatchDirectory(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return fs.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.logger.Info("watching directory", "directory", dir)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		case <-ctx.Done():
			s.logger.Info("context cancelled, shutting down watcher")
			return nil
		}
	}
}

func (s *IndexingService) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !IsSupportedFile(event.Name) {
		return
	}
	s.logger.Debug("watcher event", "event", event.String())

	// Editors often save through a temp file and a rename, so Create and
	// Write are handled the same way.
	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		if _, err := s.IndexFile(ctx, event.Name); err != nil {
			s.logger.Error("failed to re-index file", "path", event.Name, "error", err)
		}
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		removed, err := s.RemoveFile(ctx, event.Name)
		if err != nil {
			s.logger.Error("failed to delete records", "path", event.Name, "error", err)
			return
		}
		s.logger.Info("removed file from index", "path", event.Name, "records", removed)
	}
}
