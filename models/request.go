package models

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Query               string   `json:"query" binding:"required"`
	TopK                int      `json:"top_k,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

// BatchQueryRequest is the body of POST /api/v1/query/batch.
type BatchQueryRequest struct {
	Queries []string `json:"queries" binding:"required,min=1"`
	TopK    int      `json:"top_k,omitempty"`
}

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query  string         `json:"query" binding:"required"`
	TopK   int            `json:"top_k,omitempty"`
	Filter map[string]any `json:"filter,omitempty"`
}

// IndexRequest is the body of POST /api/v1/index.
type IndexRequest struct {
	Directory string `json:"directory,omitempty"`
	Rebuild   bool   `json:"rebuild,omitempty"`
}

// DeleteDocumentsRequest is the body of DELETE /api/v1/documents.
type DeleteDocumentsRequest struct {
	Filter map[string]any `json:"filter" binding:"required"`
}
