// Package embedder provides EmbeddingModel implementations backed by Ollama,
// OpenAI and Gemini.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text:v1.5"
	DefaultTimeout     = 30 * time.Second
)

// OllamaEmbedder calls a local Ollama server.
type OllamaEmbedder struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

var _ services.EmbeddingModel = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder for model at baseURL. Empty values
// select the defaults; a nil client gets DefaultTimeout.
func NewOllamaEmbedder(client *http.Client, baseURL, model string) *OllamaEmbedder {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaEmbedder{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

// Embed generates an embedding with /api/embeddings.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var ollamaResp models.OllamaEmbedResponse
	err := o.post(ctx, "/api/embeddings", models.OllamaEmbedRequest{Model: o.model, Prompt: text}, &ollamaResp)
	if err != nil {
		return nil, err
	}
	return ollamaResp.Embedding, nil
}

// EmbedBatch generates embeddings for all texts in one /api/embed call.
func (o *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var ollamaResp models.OllamaBatchEmbedResponse
	err := o.post(ctx, "/api/embed", models.OllamaBatchEmbedRequest{Model: o.model, Input: texts}, &ollamaResp)
	if err != nil {
		return nil, err
	}
	return ollamaResp.Embeddings, nil
}

func (o *OllamaEmbedder) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create ollama http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call ollama embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama api returned non-200 status: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return nil
}
