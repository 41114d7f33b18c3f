package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/brainrot/internal/embed"
	"github.com/felixgeelhaar/brainrot/internal/events"
	"github.com/felixgeelhaar/brainrot/internal/observe"
	"github.com/felixgeelhaar/brainrot/internal/store"
	"github.com/felixgeelhaar/brainrot/internal/ui"
	"github.com/felixgeelhaar/brainrot/internal/vector"
)

// hookTimeout bounds the embedding work done for one record event.
const hookTimeout = 30 * time.Second

// Indexer keeps one vector per record in sync with the record's content.
// Work for one record is serialized; different records proceed in
// parallel.
type Indexer struct {
	records  RecordLookup
	vectors  vector.Store
	embedder embed.Embedder
	obs      *observe.Observer
	bus      *events.Bus
	locks    *keyedMutex
}

func NewIndexer(records RecordLookup, vectors vector.Store, embedder embed.Embedder, opts ...Option) *Indexer {
	o := buildOptions(opts)
	return &Indexer{
		records:  records,
		vectors:  vectors,
		embedder: embedder,
		obs:      o.obs,
		locks:    newKeyedMutex(),
	}
}

// Attach subscribes the indexer to record events on bus and reports its own
// outcomes there.
func (ix *Indexer) Attach(bus *events.Bus) {
	ix.bus = bus
	bus.Subscribe(events.EventRecordChanged, func(e events.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		// Failures are published; the push itself already committed.
		_ = ix.Reindex(ctx, e.RecordID)
	})
	bus.Subscribe(events.EventRecordDeleted, func(e events.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		defer cancel()
		_ = ix.Forget(ctx, e.RecordID)
	})
}

// Reindex regenerates the vector for id from the record as currently
// stored. A missing record drops the vector. If embedding fails, or
// embedding is disabled, the old vector is dropped too, since it no longer
// describes the content.
func (ix *Indexer) Reindex(ctx context.Context, id int64) (err error) {
	if ix.vectors == nil {
		return nil
	}

	unlock := ix.locks.Lock(id)
	defer unlock()

	if ix.embedder == nil {
		if err := ix.vectors.Delete(ctx, id); err != nil {
			ix.failed(id, "", err)
			return err
		}
		return nil
	}

	ctx, span := ix.obs.StartSpan(ctx, "memory.Reindex")
	span.SetAttributes(attribute.Int64("record_id", id))
	defer func() { observe.EndSpan(span, err) }()

	rec, err := ix.records.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ix.vectors.Delete(ctx, id)
	}
	if err != nil {
		ix.failed(id, "", err)
		return err
	}

	vec, err := ix.embedder.Embed(ctx, embed.Compose(rec.Content, rec.Summary))
	if err != nil {
		err = fmt.Errorf("failed to embed context %q: %w", rec.Key, err)
		if derr := ix.vectors.Delete(ctx, id); derr != nil {
			err = errors.Join(err, derr)
		}
		ix.failed(id, rec.Key, err)
		return err
	}

	if err := ix.vectors.Upsert(ctx, id, vec); err != nil {
		ix.failed(id, rec.Key, err)
		return err
	}

	ix.bus.PublishRecord(events.EventRecordIndexed, id, rec.Key, map[string]any{"dimensions": len(vec)})
	return nil
}

// Has reports whether id currently has a vector.
func (ix *Indexer) Has(ctx context.Context, id int64) (bool, error) {
	if ix.vectors == nil {
		return false, nil
	}
	_, ok, err := ix.vectors.Get(ctx, id)
	return ok, err
}

// Forget drops the vector for id.
func (ix *Indexer) Forget(ctx context.Context, id int64) error {
	if ix.vectors == nil {
		return nil
	}
	unlock := ix.locks.Lock(id)
	defer unlock()

	if err := ix.vectors.Delete(ctx, id); err != nil {
		ix.failed(id, "", err)
		return err
	}
	return nil
}

func (ix *Indexer) failed(id int64, key string, err error) {
	ix.obs.Log().Warn().Int("record_id", int(id)).Str("key", key).Err(err).Msg("indexing failed")
	ix.bus.PublishRecord(events.EventIndexFailed, id, key, map[string]any{"error": err.Error()})
}

// ReindexReport summarizes a ReindexAll run.
type ReindexReport struct {
	Total    int
	Indexed  int
	Failures []ReindexFailure
}

type ReindexFailure struct {
	Key string
	Err error
}

// ReindexAll regenerates the vector of every record, running up to
// concurrency embeddings at once. Per-record failures are collected in the
// report; only cancellation or a failure to list records aborts the run.
func (ix *Indexer) ReindexAll(ctx context.Context, lister RecordLister, concurrency int, progress ui.UI) (_ *ReindexReport, err error) {
	if ix.embedder == nil {
		return nil, embed.ErrDisabled
	}
	if progress == nil {
		progress = ui.SilentUI{}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, span := ix.obs.StartSpan(ctx, "memory.ReindexAll")
	defer func() { observe.EndSpan(span, err) }()

	records, err := lister.ListContexts(ctx, store.ListOptions{})
	if err != nil {
		return nil, err
	}

	report := &ReindexReport{Total: len(records)}
	span.SetAttributes(attribute.Int("total", report.Total))
	progress.UpdateStatus(fmt.Sprintf("Reindexing %d contexts with %s", report.Total, ix.embedder.Name()))
	progress.UpdateProgress(0, report.Total)

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rerr := ix.Reindex(gctx, rec.ID)

			mu.Lock()
			defer mu.Unlock()
			done++
			if rerr != nil {
				report.Failures = append(report.Failures, ReindexFailure{Key: rec.Key, Err: rerr})
				progress.Log(fmt.Sprintf("failed %s: %v", rec.Key, rerr))
			} else {
				report.Indexed++
			}
			progress.UpdateProgress(done, report.Total)
			if errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
				return rerr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	ix.obs.Log().Info().Int("indexed", report.Indexed).Int("failed", len(report.Failures)).Msg("reindex complete")
	return report, nil
}
