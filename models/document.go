package models

// Document is a loaded source file ready for chunking.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Source   string         `json:"source"`
}

// SkippedFile records a file the loader could not turn into a Document.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// DocumentStats summarizes a set of loaded documents.
type DocumentStats struct {
	TotalDocuments  int      `json:"total_documents"`
	TotalCharacters int      `json:"total_characters"`
	AverageLength   float64  `json:"average_length"`
	FileTypes       []string `json:"file_types"`
}

// Chunk is a bounded piece of a document's text. It is not modified after
// the chunker creates it.
type Chunk struct {
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata"`
	ChunkIndex int            `json:"chunk_index"`
}

// ChunkStats summarizes the output of a chunking run.
type ChunkStats struct {
	TotalChunks     int     `json:"total_chunks"`
	AvgChunkSize    float64 `json:"avg_chunk_size"`
	MinChunkSize    int     `json:"min_chunk_size"`
	MaxChunkSize    int     `json:"max_chunk_size"`
	TotalCharacters int     `json:"total_characters"`
}
