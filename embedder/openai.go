package embedder

import (
	"context"
	"fmt"

	"github.com/imwonpark/RAG-based-SE/services"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the default OpenAI embedding model.
const DefaultOpenAIModel = openai.SmallEmbedding3

// OpenAIEmbedder calls the OpenAI embeddings endpoint, or any compatible
// server when a base URL is given.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

var _ services.EmbeddingModel = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder. An empty baseURL targets api.openai.com.
func NewOpenAIEmbedder(apiKey, baseURL, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	embeddingModel := DefaultOpenAIModel
	if model != "" {
		embeddingModel = openai.EmbeddingModel(model)
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  embeddingModel,
	}, nil
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one request. Results are placed by their
// reported index so the output order matches texts.
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("openai returned out of range embedding index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
