package embed

import (
	"context"
	"sync"
)

// StubEmbedder returns canned vectors for testing. Texts without an entry in
// Vectors fall back to the local hashing embedder.
type StubEmbedder struct {
	mu      sync.Mutex
	dims    int
	Vectors map[string][]float32
	Err     error
	failOn  map[string]error
	calls   int
}

func NewStubEmbedder(dims int) *StubEmbedder {
	return &StubEmbedder{
		dims:    dims,
		Vectors: make(map[string][]float32),
	}
}

func (m *StubEmbedder) Set(text string, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Vectors[text] = vec
}

func (m *StubEmbedder) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// FailOn makes Embed return err for text only.
func (m *StubEmbedder) FailOn(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == nil {
		m.failOn = make(map[string]error)
	}
	m.failOn[text] = err
}

// Calls reports how many times Embed ran.
func (m *StubEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	err := m.Err
	if e, ok := m.failOn[text]; ok {
		err = e
	}
	vec, ok := m.Vectors[text]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if ok {
		return append([]float32(nil), vec...), nil
	}
	return NewHashEmbedder(m.dims).Embed(ctx, text)
}

func (m *StubEmbedder) Dimensionality() int {
	return m.dims
}

func (m *StubEmbedder) Name() string {
	return "stub"
}
