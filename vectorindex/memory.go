package vectorindex

import (
	"context"
	"slices"
	"sync"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
)

// MemoryIndex is an exact brute-force index held in process memory.
type MemoryIndex struct {
	mu      sync.RWMutex
	name    string
	records map[string]models.IndexedRecord
	order   []string
}

var _ services.VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index.
func NewMemoryIndex(name string) *MemoryIndex {
	return &MemoryIndex{
		name:    name,
		records: make(map[string]models.IndexedRecord),
	}
}

func (m *MemoryIndex) Upsert(_ context.Context, records []models.IndexedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if _, exists := m.records[r.ID]; !exists {
			m.order = append(m.order, r.ID)
		}
		m.records[r.ID] = cloneRecord(r)
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, vector []float32, k int, filter map[string]any) (*models.QueryResult, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]hit, 0, len(m.order))
	for _, id := range m.order {
		r := m.records[id]
		if !matches(r.Metadata, filter) {
			continue
		}
		d, err := squaredL2(vector, r.Vector)
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit{record: r, distance: d})
	}
	return rank(hits, k), nil
}

func (m *MemoryIndex) Find(_ context.Context, filter map[string]any) ([]string, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, id := range m.order {
		if matches(m.records[id].Metadata, filter) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.records, id)
	}
	m.order = slices.DeleteFunc(m.order, func(id string) bool {
		_, ok := m.records[id]
		return !ok
	})
	return nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MemoryIndex) Peek(_ context.Context, limit int) ([]models.IndexedRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := min(limit, len(m.order))
	out := make([]models.IndexedRecord, 0, max(n, 0))
	for _, id := range m.order[:max(n, 0)] {
		out = append(out, cloneRecord(m.records[id]))
	}
	return out, nil
}

func (m *MemoryIndex) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]models.IndexedRecord)
	m.order = nil
	return nil
}

func (m *MemoryIndex) Name() string { return m.name }

func (m *MemoryIndex) Location() string { return "memory" }
