package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/imwonpark/RAG-based-SE/services"
	"google.golang.org/genai"
)

// DefaultGeminiModel is the default Gemini chat model.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient completes prompts with Gemini GenerateContent.
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ services.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient wraps an existing genai client.
func NewGeminiClient(client *genai.Client, model string) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{client: client, model: model}
}

// NewGenAIClient creates a Gemini API client for apiKey.
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

func (g *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(temperature)),
		MaxOutputTokens:   int32(maxTokens),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	return responseText.String(), nil
}
