package models

// OllamaEmbedRequest is the body of the single-prompt /api/embeddings call.
type OllamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// OllamaEmbedResponse is the reply of /api/embeddings.
type OllamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// OllamaBatchEmbedRequest is the body of the batched /api/embed call.
type OllamaBatchEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// OllamaBatchEmbedResponse is the reply of /api/embed.
type OllamaBatchEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}
