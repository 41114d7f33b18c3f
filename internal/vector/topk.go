package vector

import (
	"container/heap"
	"slices"
)

// Match is a query hit.
type Match struct {
	RecordID int64
	Score    float64
}

// better reports whether a ranks before b: higher score first, then lower
// record id.
func better(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.RecordID < b.RecordID
}

// topK keeps the best k matches seen so far. The root of the heap is the
// worst retained match, so a candidate only has to beat the root.
type topK struct {
	k     int
	items []Match
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]Match, 0, min(k, 64))}
}

func (t *topK) Len() int           { return len(t.items) }
func (t *topK) Less(i, j int) bool { return better(t.items[j], t.items[i]) }
func (t *topK) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }
func (t *topK) Push(x any)         { t.items = append(t.items, x.(Match)) }
func (t *topK) Pop() any {
	n := len(t.items)
	m := t.items[n-1]
	t.items = t.items[:n-1]
	return m
}

// Offer considers m for the result set.
func (t *topK) Offer(m Match) {
	if t.k <= 0 {
		return
	}
	if len(t.items) < t.k {
		heap.Push(t, m)
		return
	}
	if better(m, t.items[0]) {
		t.items[0] = m
		heap.Fix(t, 0)
	}
}

// Sorted returns the retained matches best first.
func (t *topK) Sorted() []Match {
	out := slices.Clone(t.items)
	slices.SortFunc(out, func(a, b Match) int {
		switch {
		case better(a, b):
			return -1
		case better(b, a):
			return 1
		default:
			return 0
		}
	})
	return out
}
