package models

// IndexedRecord is one chunk as stored in the vector index.
type IndexedRecord struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// QueryResult holds the nearest neighbours of a single query vector, ordered
// by ascending distance. The slices are parallel.
type QueryResult struct {
	IDs       []string
	Texts     []string
	Metadatas []map[string]any
	Distances []float64
}

// Len returns the number of hits.
func (q *QueryResult) Len() int {
	if q == nil {
		return 0
	}
	return len(q.IDs)
}

// IndexStats describes the contents of a collection.
type IndexStats struct {
	CollectionName  string         `json:"collection_name,omitempty"`
	RecordCount     int            `json:"total_documents"`
	PersistLocation string         `json:"persist_directory,omitempty"`
	SampleMetadata  map[string]any `json:"sample_metadata,omitempty"`
}
