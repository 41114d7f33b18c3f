// Package memory answers semantic queries over stored contexts and keeps
// the vector index in step with the record store.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/brainrot/internal/store"
)

// ErrInvalidQuery is returned for empty or whitespace-only search text.
var ErrInvalidQuery = errors.New("query cannot be empty")

// ErrNotIndexed is returned by Related when the reference context has no
// vector.
var ErrNotIndexed = errors.New("context has no embedding")

// ScoreKey is the metadata key search results carry their score under.
const ScoreKey = "similarity_score"

const (
	DefaultLimit     = 10
	DefaultThreshold = 0.5
)

// RecordLookup resolves record ids and keys to records.
type RecordLookup interface {
	GetByID(ctx context.Context, id int64) (*store.Record, error)
	GetByKey(ctx context.Context, key string) (*store.Record, error)
}

// RecordLister enumerates records for bulk reindexing.
type RecordLister interface {
	ListContexts(ctx context.Context, opts store.ListOptions) ([]*store.Record, error)
}

// keyedMutex hands out one mutex per record id and forgets it once nobody
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int64]*refMutex)}
}

// Lock blocks until id is free and returns the matching unlock.
func (k *keyedMutex) Lock(id int64) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
