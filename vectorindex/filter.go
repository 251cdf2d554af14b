// Package vectorindex provides VectorIndex implementations: ChromaDB over HTTP,
// Badger on local disk, and an exact in-process index.
package vectorindex

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/imwonpark/RAG-based-SE/models"
	"github.com/imwonpark/RAG-based-SE/services"
)

// validateFilter checks that every filter value is a scalar the indexes can
// compare for equality.
func validateFilter(filter map[string]any) error {
	for key, value := range filter {
		if key == "" {
			return fmt.Errorf("%w: empty key", services.ErrInvalidFilter)
		}
		switch value.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			return fmt.Errorf("%w: unsupported value type %T for key %q", services.ErrInvalidFilter, value, key)
		}
	}
	return nil
}

// matches reports whether meta equals filter on every filter key.
func matches(meta, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := meta[key]
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

// equalValue compares metadata scalars. Numbers compare by value so that an
// int filter matches a count that was decoded from JSON as a float.
func equalValue(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// squaredL2 is the squared euclidean distance, the metric ChromaDB uses by
// default. Orthogonal unit vectors are at distance 2.
func squaredL2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension %d does not match stored dimension %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}

type hit struct {
	record   models.IndexedRecord
	distance float64
}

// rank orders hits by ascending distance, keeping insertion order on ties,
// and returns the first k.
func rank(hits []hit, k int) *models.QueryResult {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	res := &models.QueryResult{
		IDs:       make([]string, len(hits)),
		Texts:     make([]string, len(hits)),
		Metadatas: make([]map[string]any, len(hits)),
		Distances: make([]float64, len(hits)),
	}
	for i, h := range hits {
		res.IDs[i] = h.record.ID
		res.Texts[i] = h.record.Text
		res.Metadatas[i] = maps.Clone(h.record.Metadata)
		res.Distances[i] = h.distance
	}
	return res
}

func cloneRecord(r models.IndexedRecord) models.IndexedRecord {
	return models.IndexedRecord{
		ID:       r.ID,
		Vector:   slices.Clone(r.Vector),
		Text:     r.Text,
		Metadata: maps.Clone(r.Metadata),
	}
}
