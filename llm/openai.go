// Package llm provides LLMClient implementations for OpenAI, Gemini and Ollama.
package llm

import (
	"context"
	"fmt"

	"github.com/imwonpark/RAG-based-SE/services"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the default chat model.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIClient completes prompts with the chat completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

var _ services.LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a chat client. An empty baseURL targets api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (o *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
