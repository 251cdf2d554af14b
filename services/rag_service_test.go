package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imwonpark/RAG-based-SE/mock"
	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
	"github.com/imwonpark/RAG-based-SE/vectorindex"
)

const (
	redisText = "Redis is an in-memory data store commonly used for caching."
	goText    = "Go is a statically typed language designed at Google."
)

// engineeringDocs returns a store holding a Redis chunk along the first axis and
// a Go chunk along the second, and an embedder that maps questions onto them.
func engineeringDocs(t *testing.T) (*services.VectorStore, *services.EmbeddingService, *mock.MockEmbedder) {
	t.Helper()
	store := newStore(t, vectorindex.NewMemoryIndex("engineering_docs"))
	_, err := store.Ingest(context.Background(),
		[]models.Chunk{
			chunk(redisText, "Redis Caching", "redis.md", 0),
			chunk(goText, "Go Language", "go.md", 0),
		},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
	)
	require.NoError(t, err)

	model := mock.NewMockEmbedder(3)
	model.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
		lower := strings.ToLower(text)
		switch {
		case strings.Contains(lower, "redis"):
			return []float32{1, 0, 0}, nil
		case strings.Contains(lower, "go"):
			return []float32{0, 1, 0}, nil
		default:
			return []float32{0, 0, 1}, nil
		}
	}
	embedder, err := services.NewEmbeddingService(model)
	require.NoError(t, err)
	return store, embedder, model
}

func newPipeline(t *testing.T, store *services.VectorStore, embedder *services.EmbeddingService, opts ...services.PipelineOption) *services.RAGPipeline {
	t.Helper()
	p, err := services.NewRAGPipeline(store, embedder, opts...)
	require.NoError(t, err)
	return p
}

func TestRAGPipeline_Query(t *testing.T) {
	ctx := context.Background()

	t.Run("answers from the closest chunk", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		p := newPipeline(t, store, embedder)

		result, err := p.Query(ctx, "How does Redis caching work?", 2, 0.7)
		require.NoError(t, err)

		require.Len(t, result.Sources, 1)
		assert.Equal(t, "Redis Caching", result.Sources[0].Title)
		assert.InDelta(t, 1.0, result.Sources[0].Similarity, 1e-9)
		assert.Equal(t, "Based on the documentation, here's what I found:\n\n"+redisText, result.Answer)
		assert.Equal(t, "How does Redis caching work?", result.Query)
		assert.GreaterOrEqual(t, result.TotalTimeMs, result.RetrievalTimeMs)
	})

	t.Run("keeps the closest chunk below threshold", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		p := newPipeline(t, store, embedder)

		result, err := p.Query(ctx, "What is the weather?", 2, 0.7)
		require.NoError(t, err)

		require.Len(t, result.Sources, 1)
		assert.Less(t, result.Sources[0].Similarity, 0.7)
		assert.Contains(t, result.Answer, result.Sources[0].Text)
	})

	t.Run("adds an excerpt of the second source", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		p := newPipeline(t, store, embedder)

		result, err := p.Query(ctx, "Tell me about Redis", 2, 0)
		require.NoError(t, err)

		require.Len(t, result.Sources, 2)
		assert.Equal(t, "Based on the documentation, here's what I found:\n\n"+redisText+
			"\n\n---\n\nAdditional relevant information:\n\n"+goText, result.Answer)
	})

	t.Run("empty collection", func(t *testing.T) {
		_, embedder, _ := engineeringDocs(t)
		p := newPipeline(t, newStore(t, vectorindex.NewMemoryIndex("empty")), embedder)

		result, err := p.Query(ctx, "Anything?", 5, 0.7)
		require.NoError(t, err)
		assert.Empty(t, result.Sources)
		assert.Equal(t, services.NoRelevantInfoMessage, result.Answer)
	})

	t.Run("rejects an empty query", func(t *testing.T) {
		store, embedder, model := engineeringDocs(t)
		p := newPipeline(t, store, embedder)

		_, err := p.Query(ctx, "   ", 5, 0.7)
		assert.ErrorIs(t, err, services.ErrEmptyQuery)
		assert.Zero(t, model.CallCount())
	})

	t.Run("non-positive topK uses the default", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		p := newPipeline(t, store, embedder)

		result, err := p.Query(ctx, "Redis", 0, -1)
		require.NoError(t, err)
		assert.Len(t, result.Sources, 2)
	})

	t.Run("embedding failure propagates", func(t *testing.T) {
		store, embedder, model := engineeringDocs(t)
		model.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("ollama down")
		}
		p := newPipeline(t, store, embedder)

		_, err := p.Query(ctx, "Redis", 5, 0.7)
		var embErr *services.EmbeddingError
		assert.True(t, errors.As(err, &embErr))
	})
}

func TestRAGPipeline_LLMMode(t *testing.T) {
	ctx := context.Background()
	query := "How does Redis caching work?"

	t.Run("uses the completion", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		llm := mock.NewMockLLM("  Redis caches data in memory.  ")
		p := newPipeline(t, store, embedder, services.WithLLMClient(llm), services.WithLLMEnabled(true))

		result, err := p.Query(ctx, query, 2, 0.7)
		require.NoError(t, err)
		assert.Equal(t, "Redis caches data in memory.", result.Answer)

		calls := llm.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, services.SystemPrompt, calls[0].SystemPrompt)
		assert.Equal(t, services.BuildUserPrompt(query, []string{redisText}), calls[0].UserPrompt)
		assert.InDelta(t, 0.7, calls[0].Temperature, 1e-9)
		assert.Equal(t, 500, calls[0].MaxTokens)
	})

	t.Run("falls back to the extractive answer on error", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		llm := mock.NewMockLLM("")
		llm.CompleteFunc = func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
			return "", errors.New("rate limited")
		}
		p := newPipeline(t, store, embedder, services.WithLLMClient(llm), services.WithLLMEnabled(true))

		result, err := p.Query(ctx, query, 2, 0.7)
		require.NoError(t, err)
		assert.Equal(t, services.ExtractiveAnswer([]string{redisText}), result.Answer)
	})

	t.Run("falls back on an empty completion", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		llm := mock.NewMockLLM(" \n ")
		p := newPipeline(t, store, embedder, services.WithLLMClient(llm), services.WithLLMEnabled(true))

		result, err := p.Query(ctx, query, 2, 0.7)
		require.NoError(t, err)
		assert.Equal(t, services.ExtractiveAnswer([]string{redisText}), result.Answer)
	})

	t.Run("falls back when the LLM runs out of time", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		llm := mock.NewMockLLM("")
		llm.CompleteFunc = func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}
		p := newPipeline(t, store, embedder,
			services.WithLLMClient(llm), services.WithLLMEnabled(true), services.WithLLMTimeout(20*time.Millisecond))

		result, err := p.Query(ctx, query, 2, 0.7)
		require.NoError(t, err)
		assert.Equal(t, services.ExtractiveAnswer([]string{redisText}), result.Answer)
		assert.Equal(t, 1, llm.CallCount())
	})

	t.Run("does not call the LLM without context", func(t *testing.T) {
		_, embedder, _ := engineeringDocs(t)
		llm := mock.NewMockLLM("invented")
		p := newPipeline(t, newStore(t, vectorindex.NewMemoryIndex("empty")), embedder,
			services.WithLLMClient(llm), services.WithLLMEnabled(true))

		result, err := p.Query(ctx, query, 2, 0.7)
		require.NoError(t, err)
		assert.Equal(t, services.NoContextLLMMessage, result.Answer)
		assert.Zero(t, llm.CallCount())
	})

	t.Run("disabled mode ignores the client", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		llm := mock.NewMockLLM("unused")
		p := newPipeline(t, store, embedder, services.WithLLMClient(llm))

		_, err := p.Query(ctx, query, 2, 0.7)
		require.NoError(t, err)
		assert.Zero(t, llm.CallCount())
	})
}

func TestNewRAGPipeline(t *testing.T) {
	store, embedder, _ := engineeringDocs(t)
	var cfgErr *services.ConfigurationError

	cases := []struct {
		name     string
		store    *services.VectorStore
		embedder *services.EmbeddingService
		opts     []services.PipelineOption
	}{
		{"missing store", nil, embedder, nil},
		{"missing embedder", store, nil, nil},
		{"LLM enabled without client", store, embedder, []services.PipelineOption{services.WithLLMEnabled(true)}},
		{"threshold out of range", store, embedder, []services.PipelineOption{services.WithSimilarityThreshold(1.5)}},
		{"zero concurrency", store, embedder, []services.PipelineOption{services.WithBatchConcurrency(0)}},
		{"negative LLM timeout", store, embedder, []services.PipelineOption{services.WithLLMTimeout(-time.Second)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := services.NewRAGPipeline(tc.store, tc.embedder, tc.opts...)
			assert.True(t, errors.As(err, &cfgErr))
		})
	}

	p := newPipeline(t, store, embedder, services.WithSimilarityThreshold(0.4))
	assert.InDelta(t, 0.4, p.SimilarityThreshold(), 1e-9)
}

func TestRAGPipeline_BatchQuery(t *testing.T) {
	ctx := context.Background()
	queries := make([]string, 12)
	for i := range queries {
		if i%2 == 0 {
			queries[i] = fmt.Sprintf("redis question %d", i)
		} else {
			queries[i] = fmt.Sprintf("go question %d", i)
		}
	}

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d keeps input order", concurrency), func(t *testing.T) {
			store, embedder, _ := engineeringDocs(t)
			p := newPipeline(t, store, embedder, services.WithBatchConcurrency(concurrency))

			results, err := p.BatchQuery(ctx, queries, 2)
			require.NoError(t, err)

			require.Len(t, results, len(queries))
			for i, result := range results {
				assert.Equal(t, queries[i], result.Query)
				require.NotEmpty(t, result.Sources)
				if i%2 == 0 {
					assert.Equal(t, "Redis Caching", result.Sources[0].Title)
				} else {
					assert.Equal(t, "Go Language", result.Sources[0].Title)
				}
			}
		})
	}

	t.Run("rejects a blank query before embedding", func(t *testing.T) {
		for _, concurrency := range []int{1, 3} {
			store, embedder, model := engineeringDocs(t)
			p := newPipeline(t, store, embedder, services.WithBatchConcurrency(concurrency))

			_, err := p.BatchQuery(ctx, []string{"redis", "  ", "go"}, 2)
			require.ErrorIs(t, err, services.ErrEmptyQuery)
			assert.Contains(t, err.Error(), "query 1")
			assert.Zero(t, model.CallCount())
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		store, embedder, _ := engineeringDocs(t)
		p := newPipeline(t, store, embedder)

		results, err := p.BatchQuery(ctx, nil, 2)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Equal(t, models.PerformanceSummary{}, p.Performance(results))
	})
}

func TestSummarize(t *testing.T) {
	summary := services.Summarize([]*models.RAGResult{
		{RetrievalTimeMs: 4, GenerationTimeMs: 6, TotalTimeMs: 10},
		nil,
		{RetrievalTimeMs: 8, GenerationTimeMs: 22, TotalTimeMs: 30},
	})

	assert.Equal(t, 2, summary.NumQueries)
	assert.InDelta(t, 6, summary.AvgRetrievalTimeMs, 1e-9)
	assert.InDelta(t, 14, summary.AvgGenerationTimeMs, 1e-9)
	assert.InDelta(t, 20, summary.AvgTotalTimeMs, 1e-9)
	assert.InDelta(t, 10, summary.MinTotalTimeMs, 1e-9)
	assert.InDelta(t, 30, summary.MaxTotalTimeMs, 1e-9)

	assert.Equal(t, models.PerformanceSummary{}, services.Summarize(nil))
}

func TestExtractiveAnswer(t *testing.T) {
	assert.Equal(t, services.NoRelevantInfoMessage, services.ExtractiveAnswer(nil))
	assert.Equal(t, "Based on the documentation, here's what I found:\n\nonly", services.ExtractiveAnswer([]string{"only"}))

	long := strings.Repeat("é", 400)
	answer := services.ExtractiveAnswer([]string{"first", long, "third"})
	assert.True(t, strings.HasSuffix(answer, "\n\n---\n\nAdditional relevant information:\n\n"+strings.Repeat("é", 300)+"..."))
	assert.NotContains(t, answer, "third")

	exact := strings.Repeat("x", 300)
	answer = services.ExtractiveAnswer([]string{"first", exact})
	assert.True(t, strings.HasSuffix(answer, exact))
}

func TestBuildUserPrompt(t *testing.T) {
	prompt := services.BuildUserPrompt("Why?", []string{"one", "two"})
	assert.Equal(t, "Context:\none\n\n---\n\ntwo\n\nQuestion: Why?\n\nAnswer:", prompt)
}
