// Package mcptools exposes the retrieval pipeline as MCP tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/imwonpark/RAG-based-SE/services"
)

// Handlers implements the tool callbacks.
type Handlers struct {
	ragService services.RAGService
	store      *services.VectorStore
	embedder   *services.EmbeddingService
	topK       int
}

// NewHandlers creates tool handlers. topK applies when a call omits top_k.
func NewHandlers(ragService services.RAGService, store *services.VectorStore, embedder *services.EmbeddingService, topK int) *Handlers {
	if topK <= 0 {
		topK = services.DefaultTopK
	}
	return &Handlers{ragService: ragService, store: store, embedder: embedder, topK: topK}
}

// RegisterTools registers every tool with the server.
func RegisterTools(server *mcpserver.MCPServer, h *Handlers) {
	server.AddTool(mcp.Tool{
		Name:        "ask_documents",
		Description: "Answer a question from the indexed engineering documentation. Returns the answer and the source chunks it was built from.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Number of chunks to retrieve (default: 5)",
					"default":     h.topK,
				},
				"similarity_threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum similarity for additional sources",
				},
			},
			Required: []string{"query"},
		},
	}, h.AskDocuments)

	server.AddTool(mcp.Tool{
		Name:        "search_documents",
		Description: "Return the chunks most similar to a query without composing an answer.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results to return (default: 5)",
					"default":     h.topK,
				},
				"source": map[string]interface{}{
					"type":        "string",
					"description": "Only return chunks from this source file",
				},
			},
			Required: []string{"query"},
		},
	}, h.SearchDocuments)

	server.AddTool(mcp.Tool{
		Name:        "index_stats",
		Description: "Describe the vector index: collection name, record count and a sample of stored metadata.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.IndexStats)
}

// AskDocuments handles ask_documents.
func (h *Handlers) AskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	topK := request.GetInt("top_k", h.topK)
	threshold := request.GetFloat("similarity_threshold", h.ragService.SimilarityThreshold())

	result, err := h.ragService.Query(ctx, query, topK, threshold)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return jsonResult(result)
}

// SearchDocuments handles search_documents.
func (h *Handlers) SearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	topK := request.GetInt("top_k", h.topK)

	var filter map[string]any
	if source := request.GetString("source", ""); source != "" {
		filter = map[string]any{"source": source}
	}

	vector, err := h.embedder.EmbedOne(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("embedding failed: %v", err)), nil
	}
	results, err := h.store.Search(ctx, vector, topK, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// IndexStats handles index_stats.
func (h *Handlers) IndexStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.store.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read stats: %v", err)), nil
	}
	return jsonResult(stats)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
