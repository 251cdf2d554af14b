package models

// RetrievalResult is a single source chunk returned by a similarity search.
type RetrievalResult struct {
	Text       string  `json:"text"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// RAGResult is the answer to one query together with the sources it was
// built from and the time spent in each stage.
type RAGResult struct {
	Query            string            `json:"query"`
	Answer           string            `json:"answer"`
	Sources          []RetrievalResult `json:"sources"`
	RetrievalTimeMs  float64           `json:"retrieval_time_ms"`
	GenerationTimeMs float64           `json:"generation_time_ms"`
	TotalTimeMs      float64           `json:"total_time_ms"`
}

// PerformanceSummary aggregates the timings of several RAGResults. The zero
// value describes an empty batch.
type PerformanceSummary struct {
	NumQueries          int     `json:"num_queries"`
	AvgRetrievalTimeMs  float64 `json:"avg_retrieval_time_ms"`
	AvgGenerationTimeMs float64 `json:"avg_generation_time_ms"`
	AvgTotalTimeMs      float64 `json:"avg_total_time_ms"`
	MaxTotalTimeMs      float64 `json:"max_total_time_ms"`
	MinTotalTimeMs      float64 `json:"min_total_time_ms"`
}

// IndexReport describes the outcome of indexing a directory.
type IndexReport struct {
	Directory  string        `json:"directory"`
	Documents  int           `json:"documents"`
	Chunks     int           `json:"chunks"`
	Records    int           `json:"records"`
	Skipped    []SkippedFile `json:"skipped,omitempty"`
	Rebuilt    bool          `json:"rebuilt"`
	DurationMs float64       `json:"duration_ms"`
}
