package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/imwonpark/RAG-based-SE/config"
	"github.com/imwonpark/RAG-based-SE/embedder"
	"github.com/imwonpark/RAG-based-SE/llm"
	"github.com/imwonpark/RAG-based-SE/services"
	"github.com/imwonpark/RAG-based-SE/vectorindex"
)

// App holds the wired components for one command invocation.
type App struct {
	Config   *config.AppConfig
	Index    services.VectorIndex
	Store    *services.VectorStore
	Embedder *services.EmbeddingService
	Pipeline *services.RAGPipeline
	Indexer  *services.IndexingService

	closers []func() error
	genai   *genai.Client
}

// NewApp builds every component selected by cfg.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	app := &App{Config: cfg}
	if err := app.build(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config
	if err := services.ConfigurePDFLicense(cfg.PDFLicenseKey()); err != nil {
		// Text and markdown still load without a license.
		slog.Warn("PDF processing disabled", "error", err)
	}

	index, err := a.newVectorIndex(ctx)
	if err != nil {
		return err
	}
	a.Index = index

	a.Store, err = services.NewVectorStore(index, services.WithIngestBatchSize(cfg.VectorStore.BatchSize))
	if err != nil {
		return err
	}

	model, err := a.newEmbeddingModel(ctx)
	if err != nil {
		return err
	}
	a.Embedder, err = services.NewEmbeddingService(model, services.WithEmbeddingBatchSize(cfg.Embedder.BatchSize))
	if err != nil {
		return err
	}

	pipelineOpts := []services.PipelineOption{
		services.WithSimilarityThreshold(cfg.Retrieval.SimilarityThreshold),
		services.WithBatchConcurrency(cfg.Retrieval.BatchConcurrency),
		services.WithLLMEnabled(cfg.LLM.Enabled),
		services.WithLLMTimeout(time.Duration(cfg.LLM.TimeoutSecs) * time.Second),
	}
	if cfg.LLM.Enabled {
		client, err := a.newLLMClient(ctx)
		if err != nil {
			return err
		}
		pipelineOpts = append(pipelineOpts, services.WithLLMClient(client))
	}
	a.Pipeline, err = services.NewRAGPipeline(a.Store, a.Embedder, pipelineOpts...)
	if err != nil {
		return err
	}

	chunker, err := newChunker(cfg.Chunker)
	if err != nil {
		return err
	}
	a.Indexer, err = services.NewIndexingService(services.NewDocumentLoader(), chunker, a.Embedder, a.Store)
	return err
}

// Close releases every component that holds a connection or a file.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newVectorIndex(ctx context.Context) (services.VectorIndex, error) {
	vs := a.Config.VectorStore
	switch vs.Type {
	case "chroma":
		index, err := vectorindex.NewChromaIndex(ctx, vs.URL, vs.Collection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, index.Close)
		return index, nil
	case "badger":
		index, err := vectorindex.OpenBadgerIndex(vs.PersistDirectory, vs.Collection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, index.Close)
		return index, nil
	case "memory":
		return vectorindex.NewMemoryIndex(vs.Collection), nil
	default:
		return nil, &services.ConfigurationError{Component: "vector store", Reason: fmt.Sprintf("unknown type %q", vs.Type)}
	}
}

func (a *App) newEmbeddingModel(ctx context.Context) (services.EmbeddingModel, error) {
	ec := a.Config.Embedder
	switch ec.Type {
	case "ollama":
		client := &http.Client{Timeout: time.Duration(ec.TimeoutSecs) * time.Second}
		return embedder.NewOllamaEmbedder(client, ec.BaseURL, ec.Model), nil
	case "openai":
		return embedder.NewOpenAIEmbedder(ec.APIKey(), ec.BaseURL, ec.Model)
	case "gemini":
		client, err := a.genaiClient(ctx, ec.APIKey())
		if err != nil {
			return nil, err
		}
		return embedder.NewGeminiEmbedder(client, ec.Model), nil
	default:
		return nil, &services.ConfigurationError{Component: "embedder", Reason: fmt.Sprintf("unknown type %q", ec.Type)}
	}
}

func (a *App) newLLMClient(ctx context.Context) (services.LLMClient, error) {
	lc := a.Config.LLM
	switch lc.Type {
	case "openai":
		return llm.NewOpenAIClient(lc.APIKey(), lc.BaseURL, lc.Model)
	case "gemini":
		client, err := a.genaiClient(ctx, lc.APIKey())
		if err != nil {
			return nil, err
		}
		return llm.NewGeminiClient(client, lc.Model), nil
	case "ollama":
		return llm.NewOllamaClient(lc.BaseURL, lc.Model)
	default:
		return nil, &services.ConfigurationError{Component: "llm", Reason: fmt.Sprintf("unknown type %q", lc.Type)}
	}
}

// genaiClient shares one Gemini client between the embedder and the LLM.
func (a *App) genaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if a.genai != nil {
		return a.genai, nil
	}
	client, err := llm.NewGenAIClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	a.genai = client
	return client, nil
}

func newChunker(cc config.ChunkerConfig) (services.Chunker, error) {
	if cc.Strategy == "recursive" {
		return services.NewRecursiveChunker(cc.ChunkSize, cc.ChunkOverlap)
	}
	return services.NewTextChunker(cc.ChunkSize, cc.ChunkOverlap, cc.Separator)
}
