package models

// BatchQueryResponse pairs the per-query results with their timing summary.
type BatchQueryResponse struct {
	Results     []*RAGResult       `json:"results"`
	Performance PerformanceSummary `json:"performance"`
}

// SearchResponse is the reply of POST /api/v1/search.
type SearchResponse struct {
	Query   string            `json:"query"`
	Count   int               `json:"count"`
	Results []RetrievalResult `json:"results"`
}

// DeleteResponse reports how many records a delete removed.
type DeleteResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}
