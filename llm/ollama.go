package llm

import (
	"context"
	"fmt"

	"github.com/imwonpark/RAG-based-SE/services"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaModel is the default local chat model.
const DefaultOllamaModel = "llama3.2"

// LangChainClient completes prompts with any langchaingo model.
type LangChainClient struct {
	model llms.Model
}

var _ services.LLMClient = (*LangChainClient)(nil)

// NewLangChainClient wraps model.
func NewLangChainClient(model llms.Model) *LangChainClient {
	return &LangChainClient{model: model}
}

// NewOllamaClient creates a LangChainClient backed by an Ollama server.
func NewOllamaClient(serverURL, model string) (*LangChainClient, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama llm: %w", err)
	}
	return NewLangChainClient(client), nil
}

func (l *LangChainClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}
	resp, err := l.model.GenerateContent(ctx, messages,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("langchain generate failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("langchain returned no choices")
	}
	return resp.Choices[0].Content, nil
}
