package vector

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore is a process-local Store. Vectors are copied on the way in and
// out, and an upsert swaps the whole slice under the write lock, so readers
// never observe a partially written vector.
type MemoryStore struct {
	mu      sync.RWMutex
	dims    int
	metric  Metric
	vectors map[int64][]float32
}

// NewMemoryStore returns an empty store for vectors of length dims.
func NewMemoryStore(dims int, metric Metric) (*MemoryStore, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("vector: invalid dimensions %d", dims)
	}
	if metric == "" {
		metric = Cosine
	}
	return &MemoryStore{
		dims:    dims,
		metric:  metric,
		vectors: make(map[int64][]float32),
	}, nil
}

func (m *MemoryStore) Dimensions() int { return m.dims }
func (m *MemoryStore) Metric() Metric  { return m.metric }

func (m *MemoryStore) Upsert(ctx context.Context, recordID int64, vec []float32) error {
	if err := checkDims(m.dims, vec); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := slices.Clone(vec)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[recordID] = cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, recordID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, recordID)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, recordID int64) ([]float32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vec, ok := m.vectors[recordID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(vec), true, nil
}

func (m *MemoryStore) Query(ctx context.Context, q []float32, k int, threshold float64) ([]Match, error) {
	if err := checkDims(m.dims, q); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	top := newTopK(k)
	for id, vec := range m.vectors {
		if score := Score(m.metric.Distance(q, vec)); score >= threshold {
			top.Offer(Match{RecordID: id, Score: score})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return top.Sorted(), nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors), nil
}

var _ Store = (*MemoryStore)(nil)
