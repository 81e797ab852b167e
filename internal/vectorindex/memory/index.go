// Package memory is a brute-force cosine similarity index for development
// and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/AGtheOG/ikarus3d-advisorBot/internal/domain"
	"github.com/AGtheOG/ikarus3d-advisorBot/internal/vectorindex"
)

// Item is one stored product vector.
type Item struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata"`
}

// Index keeps every item in memory and scans them all on each query.
type Index struct {
	mu    sync.RWMutex
	dims  int
	items map[string]Item
}

// New returns an empty index of the given dimension. Zero accepts the
// dimension of the first upserted item.
func New(dims int) *Index {
	return &Index{dims: dims, items: make(map[string]Item)}
}

// Load reads a JSON array of items from path into a new index.
func Load(path string, dims int) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	idx := New(dims)
	if err := idx.Upsert(items...); err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return idx, nil
}

// Upsert adds or replaces items by ID.
func (idx *Index) Upsert(items ...Item) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("item without id")
		}
		if idx.dims == 0 {
			idx.dims = len(it.Vector)
		}
		if err := vectorindex.CheckDimensions(it.Vector, idx.dims); err != nil {
			return fmt.Errorf("item %s: %w", it.ID, err)
		}
		idx.items[it.ID] = Item{
			ID:       it.ID,
			Vector:   append([]float32(nil), it.Vector...),
			Metadata: it.Metadata,
		}
	}
	return nil
}

// Len returns the number of stored items.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.items)
}

// Query ranks every item by cosine similarity. Ties are broken by ID.
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) ([]domain.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := vectorindex.CheckDimensions(vector, idx.dims); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []domain.Match{}, nil
	}

	matches := make([]domain.Match, 0, len(idx.items))
	for _, it := range idx.items {
		matches = append(matches, domain.Match{
			ID:       it.ID,
			Score:    CosineSimilarity(vector, it.Vector),
			Metadata: it.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Ping always succeeds.
func (idx *Index) Ping(context.Context) error { return nil }

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is a zero vector or the lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
