package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/panjf2000/ants/v2"
)

const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.7

	// NoRelevantInfoMessage is the extractive answer when nothing was retrieved.
	NoRelevantInfoMessage = "No relevant information found in the documents."
	// NoContextLLMMessage is returned in LLM mode when nothing was retrieved.
	// The LLM is not called in that case.
	NoContextLLMMessage = "No relevant information was found in the documents. Any answer would come from the model's general training data rather than retrieved context."

	generationTemperature = 0.7
	generationMaxTokens   = 500
	excerptChars          = 300

	extractiveHeader = "Based on the documentation, here's what I found:\n\n"
	additionalHeader = "\n\n---\n\nAdditional relevant information:\n\n"
)

// RAGService answers questions over the indexed documents.
type RAGService interface {
	Query(ctx context.Context, query string, topK int, threshold float64) (*models.RAGResult, error)
	BatchQuery(ctx context.Context, queries []string, topK int) ([]*models.RAGResult, error)
	Performance(results []*models.RAGResult) models.PerformanceSummary
	SimilarityThreshold() float64
}

// RAGPipeline retrieves chunks for a query and composes an answer from them,
// either extractively or through an LLM.
type RAGPipeline struct {
	store       *VectorStore
	embedder    *EmbeddingService
	llm         LLMClient
	useLLM      bool
	threshold   float64
	concurrency int
	llmTimeout  time.Duration
	logger      *slog.Logger
}

var _ RAGService = (*RAGPipeline)(nil)

// PipelineOption configures a RAGPipeline.
type PipelineOption func(*RAGPipeline) error

// WithLLMClient sets the client used in LLM mode.
func WithLLMClient(client LLMClient) PipelineOption {
	return func(p *RAGPipeline) error {
		p.llm = client
		return nil
	}
}

// WithLLMEnabled switches between LLM answers and extractive answers.
func WithLLMEnabled(enabled bool) PipelineOption {
	return func(p *RAGPipeline) error {
		p.useLLM = enabled
		return nil
	}
}

// WithSimilarityThreshold sets the threshold BatchQuery uses.
func WithSimilarityThreshold(threshold float64) PipelineOption {
	return func(p *RAGPipeline) error {
		if threshold < -1 || threshold > 1 {
			return &ConfigurationError{Component: "rag pipeline", Reason: fmt.Sprintf("similarity threshold %.2f outside [-1, 1]", threshold)}
		}
		p.threshold = threshold
		return nil
	}
}

// WithBatchConcurrency sets how many batch queries run at once. Values above
// one run queries on a worker pool.
func WithBatchConcurrency(n int) PipelineOption {
	return func(p *RAGPipeline) error {
		if n <= 0 {
			return &ConfigurationError{Component: "rag pipeline", Reason: fmt.Sprintf("batch concurrency must be positive, got %d", n)}
		}
		p.concurrency = n
		return nil
	}
}

// WithLLMTimeout bounds each LLM call. A call that runs out of time falls back
// to the extractive answer. Zero means no bound.
func WithLLMTimeout(d time.Duration) PipelineOption {
	return func(p *RAGPipeline) error {
		if d < 0 {
			return &ConfigurationError{Component: "rag pipeline", Reason: fmt.Sprintf("LLM timeout must not be negative, got %s", d)}
		}
		p.llmTimeout = d
		return nil
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *RAGPipeline) error {
		p.logger = logger
		return nil
	}
}

// NewRAGPipeline creates a pipeline over store and embedder. Enabling LLM mode
// without a client is a ConfigurationError.
func NewRAGPipeline(store *VectorStore, embedder *EmbeddingService, opts ...PipelineOption) (*RAGPipeline, error) {
	if store == nil {
		return nil, &ConfigurationError{Component: "rag pipeline", Reason: "vector store is required"}
	}
	if embedder == nil {
		return nil, &ConfigurationError{Component: "rag pipeline", Reason: "embedding service is required"}
	}
	p := &RAGPipeline{
		store:       store,
		embedder:    embedder,
		threshold:   DefaultSimilarityThreshold,
		concurrency: 1,
		logger:      slog.Default().With("component", "rag_pipeline"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.useLLM && p.llm == nil {
		return nil, &ConfigurationError{Component: "rag pipeline", Reason: "LLM mode requires an LLM client"}
	}
	return p, nil
}

// SimilarityThreshold returns the threshold used by BatchQuery.
func (p *RAGPipeline) SimilarityThreshold() float64 { return p.threshold }

// Query answers one question. Retrieved chunks below threshold are dropped,
// except that the closest chunk is always kept.
func (p *RAGPipeline) Query(ctx context.Context, query string, topK int, threshold float64) (*models.RAGResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	start := time.Now()
	candidates, err := p.store.SearchByText(ctx, query, p.embedder, topK)
	if err != nil {
		return nil, err
	}
	retrievalMs := elapsedMs(start)

	sources, contexts := selectSources(candidates, threshold)

	generationStart := time.Now()
	answer := p.generate(ctx, query, contexts)
	generationMs := elapsedMs(generationStart)

	result := &models.RAGResult{
		Query:            query,
		Answer:           answer,
		Sources:          sources,
		RetrievalTimeMs:  retrievalMs,
		GenerationTimeMs: generationMs,
		TotalTimeMs:      elapsedMs(start),
	}
	p.logger.Info("answered query",
		"candidates", len(candidates),
		"sources", len(sources),
		"retrieval_ms", result.RetrievalTimeMs,
		"generation_ms", result.GenerationTimeMs,
		"llm", p.useLLM,
	)
	return result, nil
}

// BatchQuery answers every query with the pipeline threshold and returns the
// results in input order. Every query must be non-blank: a blank one fails the
// batch with ErrEmptyQuery before anything is embedded.
func (p *RAGPipeline) BatchQuery(ctx context.Context, queries []string, topK int) ([]*models.RAGResult, error) {
	for i, query := range queries {
		if strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("query %d: %w", i, ErrEmptyQuery)
		}
	}

	results := make([]*models.RAGResult, len(queries))
	if p.concurrency <= 1 || len(queries) <= 1 {
		for i, query := range queries {
			res, err := p.Query(ctx, query, topK, p.threshold)
			if err != nil {
				return nil, fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = res
		}
		return results, nil
	}

	pool, err := ants.NewPool(min(p.concurrency, len(queries)))
	if err != nil {
		return nil, fmt.Errorf("failed to create query pool: %w", err)
	}
	defer pool.Release()

	errs := make([]error, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = p.Query(ctx, query, topK, p.threshold)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", i, err)
		}
	}
	return results, nil
}

// Performance summarizes the timings of results.
func (p *RAGPipeline) Performance(results []*models.RAGResult) models.PerformanceSummary {
	return Summarize(results)
}

// Summarize aggregates RAGResult timings. Nil entries are ignored and an
// empty input yields the zero summary.
func Summarize(results []*models.RAGResult) models.PerformanceSummary {
	var summary models.PerformanceSummary
	for _, r := range results {
		if r == nil {
			continue
		}
		if summary.NumQueries == 0 || r.TotalTimeMs < summary.MinTotalTimeMs {
			summary.MinTotalTimeMs = r.TotalTimeMs
		}
		if r.TotalTimeMs > summary.MaxTotalTimeMs {
			summary.MaxTotalTimeMs = r.TotalTimeMs
		}
		summary.NumQueries++
		summary.AvgRetrievalTimeMs += r.RetrievalTimeMs
		summary.AvgGenerationTimeMs += r.GenerationTimeMs
		summary.AvgTotalTimeMs += r.TotalTimeMs
	}
	if summary.NumQueries == 0 {
		return models.PerformanceSummary{}
	}
	n := float64(summary.NumQueries)
	summary.AvgRetrievalTimeMs /= n
	summary.AvgGenerationTimeMs /= n
	summary.AvgTotalTimeMs /= n
	return summary
}

// ExtractiveAnswer builds an answer from the context chunks alone: the first
// chunk verbatim, followed by an excerpt of the second when there is one.
func ExtractiveAnswer(contextChunks []string) string {
	if len(contextChunks) == 0 {
		return NoRelevantInfoMessage
	}
	var b strings.Builder
	b.WriteString(extractiveHeader)
	b.WriteString(contextChunks[0])
	if len(contextChunks) > 1 {
		b.WriteString(additionalHeader)
		b.WriteString(excerpt(contextChunks[1], excerptChars))
	}
	return b.String()
}

// generation is the outcome of one LLM call.
type generation struct {
	text string
	err  error
}

func (p *RAGPipeline) generate(ctx context.Context, query string, contextChunks []string) string {
	if !p.useLLM {
		return ExtractiveAnswer(contextChunks)
	}
	if len(contextChunks) == 0 {
		return NoContextLLMMessage
	}
	gen := p.complete(ctx, query, contextChunks)
	if gen.err != nil {
		p.logger.Warn("falling back to extractive answer", "error", gen.err)
		return ExtractiveAnswer(contextChunks)
	}
	return gen.text
}

func (p *RAGPipeline) complete(ctx context.Context, query string, contextChunks []string) generation {
	if p.llmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.llmTimeout)
		defer cancel()
	}
	text, err := p.llm.Complete(ctx, SystemPrompt, BuildUserPrompt(query, contextChunks), generationTemperature, generationMaxTokens)
	if err != nil {
		return generation{err: &GenerationError{Err: err}}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return generation{err: &GenerationError{Err: errors.New("empty completion")}}
	}
	return generation{text: text}
}

func selectSources(candidates []models.RetrievalResult, threshold float64) ([]models.RetrievalResult, []string) {
	sources := make([]models.RetrievalResult, 0, len(candidates))
	contextChunks := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= threshold || len(sources) == 0 {
			sources = append(sources, c)
			contextChunks = append(contextChunks, c.Text)
		}
	}
	return sources, contextChunks
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func elapsedMs(since time.Time) float64 {
	return float64(time.Since(since).Microseconds()) / 1000
}
