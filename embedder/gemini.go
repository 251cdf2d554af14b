package embedder

import (
	"context"
	"fmt"

	"github.com/imwonpark/RAG-based-SE/services"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the default Gemini embedding model.
const DefaultGeminiModel = "text-embedding-004"

// GeminiEmbedder calls the Gemini embedContent API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

var _ services.EmbeddingModel = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder wraps an existing genai client.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEmbedder{client: client, model: model}
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed call failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}
