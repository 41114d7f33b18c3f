package memory

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/brainrot/internal/embed"
	"github.com/felixgeelhaar/brainrot/internal/engine"
	"github.com/felixgeelhaar/brainrot/internal/events"
	"github.com/felixgeelhaar/brainrot/internal/store"
	"github.com/felixgeelhaar/brainrot/internal/vector"
)

type fixture struct {
	bus     *events.Bus
	records *store.SQLiteStore
	vectors *vector.SQLiteStore
	emb     *embed.StubEmbedder
	ix      *Indexer
	svc     *Service
}

func newFixture(t *testing.T, metric vector.Metric) *fixture {
	t.Helper()
	bus := events.NewBus()
	records, err := store.Open(engine.MemoryDSN, bus)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	vectors, err := vector.NewSQLiteStore(records.DB(), 2, vector.WithMetric(metric), vector.WithParent("contexts", "id"))
	if err != nil {
		t.Fatalf("Failed to open vector store: %v", err)
	}

	emb := embed.NewStubEmbedder(2)
	ix := NewIndexer(records, vectors, emb)
	ix.Attach(bus)

	return &fixture{
		bus:     bus,
		records: records,
		vectors: vectors,
		emb:     emb,
		ix:      ix,
		svc:     NewService(records, vectors, emb),
	}
}

func (f *fixture) push(t *testing.T, key, content string, vec []float32) *store.Record {
	t.Helper()
	f.emb.Set(content, vec)
	rec, err := f.records.PushContext(context.Background(), &store.Record{Key: key, Content: content})
	if err != nil {
		t.Fatalf("PushContext failed: %v", err)
	}
	return rec
}

func keys(recs []*store.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}

func score(t *testing.T, r *store.Record) float64 {
	t.Helper()
	s, ok := r.Metadata[ScoreKey].(float64)
	if !ok {
		t.Fatalf("record %q has no score", r.Key)
	}
	return s
}

func TestSearch_InvalidQuery(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := f.svc.Search(context.Background(), q, 10, 0.5); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("Search(%q): expected ErrInvalidQuery, got %v", q, err)
		}
	}

	disabled := NewService(f.records, f.vectors, nil)
	if _, err := disabled.Search(context.Background(), " ", 10, 0.5); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery with embedding disabled, got %v", err)
	}
}

func TestSearch_Disabled(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	f.push(t, "k", "anything", []float32{1, 0})

	svc := NewService(f.records, f.vectors, nil)
	if svc.Enabled() {
		t.Error("expected service to report disabled")
	}
	got, err := svc.Search(context.Background(), "anything", 10, 0.5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestSearch_RanksAndHydrates(t *testing.T) {
	f := newFixture(t, vector.L2)
	f.push(t, "near", "near text", []float32{0.1, 0})
	f.push(t, "mid", "mid text", []float32{0, 0.5})
	f.push(t, "far", "far text", []float32{1.9, 0})
	f.emb.Set("query", []float32{0, 0})

	got, err := f.svc.Search(context.Background(), "query", 2, 1.0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 || got[0].Key != "near" || got[1].Key != "mid" {
		t.Fatalf("expected [near mid], got %v", keys(got))
	}
	if math.Abs(score(t, got[0])-1.9) > 1e-6 || math.Abs(score(t, got[1])-1.5) > 1e-6 {
		t.Errorf("unexpected scores %v, %v", got[0].Metadata[ScoreKey], got[1].Metadata[ScoreKey])
	}
	if got[0].Content != "near text" {
		t.Errorf("expected hydrated content, got %q", got[0].Content)
	}
}

func TestSearch_DefaultLimit(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	for _, k := range []string{"a", "b", "c"} {
		f.push(t, k, "text "+k, []float32{1, 0})
	}
	f.emb.Set("q", []float32{1, 0})

	svc := NewService(f.records, f.vectors, f.emb, WithDefaultLimit(2))
	got, err := svc.Search(context.Background(), "q", 0, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected default limit of 2, got %d", len(got))
	}
	// Equal scores fall back to record id order.
	if got[0].Key != "a" || got[1].Key != "b" {
		t.Errorf("expected [a b], got %v", keys(got))
	}
}

func TestSearch_SkipsStaleVectors(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	f.push(t, "real", "real text", []float32{1, 0})

	vectors, err := vector.NewMemoryStore(2, vector.Cosine)
	if err != nil {
		t.Fatalf("NewMemoryStore failed: %v", err)
	}
	ctx := context.Background()
	rec, _ := f.records.GetByKey(ctx, "real")
	vectors.Upsert(ctx, rec.ID, []float32{1, 0})
	vectors.Upsert(ctx, 9999, []float32{1, 0})
	f.emb.Set("q", []float32{1, 0})

	svc := NewService(f.records, vectors, f.emb)
	got, err := svc.Search(ctx, "q", 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Key != "real" {
		t.Errorf("expected only [real], got %v", keys(got))
	}
}

type failingLookup struct {
	RecordLookup
}

func (failingLookup) GetByID(ctx context.Context, id int64) (*store.Record, error) {
	return nil, store.ErrUnavailable
}

func TestSearch_LookupFailure(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	f.push(t, "k", "text", []float32{1, 0})
	f.emb.Set("q", []float32{1, 0})

	svc := NewService(failingLookup{f.records}, f.vectors, f.emb)
	if _, err := svc.Search(context.Background(), "q", 10, 0); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestSearch_EmbedFailure(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	f.emb.FailOn("q", errors.New("model offline"))
	if _, err := f.svc.Search(context.Background(), "q", 10, 0); err == nil {
		t.Error("expected embedding error")
	}
}

func TestSearch_StaleDimensions(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	rec := f.push(t, "k", "text", []float32{1, 0})

	wide, err := vector.NewSQLiteStore(f.records.DB(), 3)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	emb := embed.NewStubEmbedder(3)
	svc := NewService(f.records, wide, emb)
	if _, err := svc.Search(context.Background(), "text", 10, 0); !vector.IsDimensionMismatch(err) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}

	ix := NewIndexer(f.records, wide, emb)
	if err := ix.Reindex(context.Background(), rec.ID); err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if _, err := svc.Search(context.Background(), "text", 10, 0); err != nil {
		t.Errorf("expected search to recover after reindex, got %v", err)
	}
}

func TestIndexer_UpdateReplacesVector(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	ctx := context.Background()
	rec := f.push(t, "k", "v1", []float32{1, 0})
	f.push(t, "k", "v2", []float32{0, 1})

	vec, ok, err := f.vectors.Get(ctx, rec.ID)
	if err != nil || !ok {
		t.Fatalf("expected vector, ok=%v err=%v", ok, err)
	}
	if vec[0] != 0 || vec[1] != 1 {
		t.Errorf("expected vector of latest content, got %v", vec)
	}
	if n, _ := f.vectors.Count(ctx); n != 1 {
		t.Errorf("expected 1 vector, got %d", n)
	}
}

func TestIndexer_DeleteRemovesVector(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	ctx := context.Background()
	gone := f.push(t, "gone", "bye", []float32{1, 0})
	f.push(t, "kept", "hi", []float32{1, 0})

	if err := f.records.DeleteContext(ctx, "gone"); err != nil {
		t.Fatalf("DeleteContext failed: %v", err)
	}

	if _, ok, _ := f.vectors.Get(ctx, gone.ID); ok {
		t.Error("expected vector to be removed with its context")
	}
	f.emb.Set("q", []float32{1, 0})
	got, err := f.svc.Search(ctx, "q", 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Key != "kept" {
		t.Errorf("expected [kept], got %v", keys(got))
	}
}

func TestIndexer_EmbedFailureDropsStaleVector(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	ctx := context.Background()

	var failed []events.Event
	f.bus.Subscribe(events.EventIndexFailed, func(e events.Event) { failed = append(failed, e) })

	rec := f.push(t, "k", "v1", []float32{1, 0})
	f.emb.FailOn("v2", errors.New("model offline"))
	if _, err := f.records.PushContext(ctx, &store.Record{Key: "k", Content: "v2"}); err != nil {
		t.Fatalf("push should succeed even when embedding fails: %v", err)
	}

	if _, ok, _ := f.vectors.Get(ctx, rec.ID); ok {
		t.Error("expected stale vector to be dropped")
	}
	if len(failed) != 1 || failed[0].Key != "k" {
		t.Errorf("expected one index_failed event for k, got %+v", failed)
	}
}

func TestIndexer_WrongDimensionsKeepsOldVector(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	ctx := context.Background()
	rec := f.push(t, "k", "v1", []float32{1, 0})

	f.emb.Set("v2", []float32{1, 0, 0})
	if _, err := f.records.PushContext(ctx, &store.Record{Key: "k", Content: "v2"}); err != nil {
		t.Fatalf("PushContext failed: %v", err)
	}

	if err := f.ix.Reindex(ctx, rec.ID); !vector.IsDimensionMismatch(err) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	vec, ok, _ := f.vectors.Get(ctx, rec.ID)
	if !ok || vec[0] != 1 {
		t.Errorf("expected previous vector to survive, got %v ok=%v", vec, ok)
	}
}

func TestIndexer_DisabledDropsVector(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	ctx := context.Background()
	rec := f.push(t, "k", "original text", []float32{1, 0})
	if _, ok, _ := f.vectors.Get(ctx, rec.ID); !ok {
		t.Fatal("expected a vector while embedding is enabled")
	}

	// Same database, but a process that runs with embedding disabled.
	bus := events.NewBus()
	NewIndexer(f.records, f.vectors, nil).Attach(bus)
	disabled, err := store.New(f.records.DB(), bus)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if _, err := disabled.PushContext(ctx, &store.Record{Key: "k", Content: "new unrelated text"}); err != nil {
		t.Fatalf("PushContext failed: %v", err)
	}

	if _, ok, err := f.vectors.Get(ctx, rec.ID); err != nil || ok {
		t.Fatalf("expected the vector of the old text to be dropped, present=%v err=%v", ok, err)
	}

	// Back with embedding on, the old text no longer finds the record.
	f.emb.Set("original text", []float32{1, 0})
	got, err := f.svc.Search(ctx, "original text", 10, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no hits, got %v", keys(got))
	}
}

func TestIndexer_Disabled(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	ix := NewIndexer(f.records, f.vectors, nil)
	rec, err := f.records.PushContext(context.Background(), &store.Record{Key: "x", Content: "y"})
	if err != nil {
		t.Fatalf("PushContext failed: %v", err)
	}
	if err := ix.Reindex(context.Background(), rec.ID); err != nil {
		t.Errorf("expected no error with embedding disabled, got %v", err)
	}
	if _, ok, _ := f.vectors.Get(context.Background(), rec.ID); ok {
		t.Error("expected no vector with embedding disabled")
	}
	if _, err := ix.ReindexAll(context.Background(), f.records, 2, nil); !errors.Is(err, embed.ErrDisabled) {
		t.Errorf("expected ErrDisabled from ReindexAll, got %v", err)
	}
}

type progressRecorder struct {
	mu     sync.Mutex
	last   int
	total  int
	status string
	logs   []string
}

func (p *progressRecorder) UpdateStatus(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = s
}

func (p *progressRecorder) UpdateProgress(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last, p.total = done, total
}

func (p *progressRecorder) Log(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, msg)
}

func TestIndexer_ReindexAll(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	records, err := store.Open(engine.MemoryDSN, bus)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer records.Close()

	// Records pushed while embedding was off have no vectors.
	for _, k := range []string{"a", "b", "c", "d"} {
		if _, err := records.PushContext(ctx, &store.Record{Key: k, Content: "text " + k}); err != nil {
			t.Fatalf("PushContext failed: %v", err)
		}
	}

	vectors, err := vector.NewMemoryStore(2, vector.Cosine)
	if err != nil {
		t.Fatalf("NewMemoryStore failed: %v", err)
	}
	emb := embed.NewStubEmbedder(2)
	emb.FailOn("text c", errors.New("model offline"))
	ix := NewIndexer(records, vectors, emb)

	progress := &progressRecorder{}
	report, err := ix.ReindexAll(ctx, records, 3, progress)
	if err != nil {
		t.Fatalf("ReindexAll failed: %v", err)
	}
	if report.Total != 4 || report.Indexed != 3 || len(report.Failures) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if report.Failures[0].Key != "c" {
		t.Errorf("expected failure for c, got %q", report.Failures[0].Key)
	}
	if n, _ := vectors.Count(ctx); n != 3 {
		t.Errorf("expected 3 vectors, got %d", n)
	}
	if progress.last != 4 || progress.total != 4 || len(progress.logs) != 1 {
		t.Errorf("unexpected progress: %+v", progress)
	}
}

func TestIndexer_ReindexAllCanceled(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	f.push(t, "a", "text", []float32{1, 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.ix.ReindexAll(ctx, f.records, 2, nil); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestRelated(t *testing.T) {
	f := newFixture(t, vector.Cosine)
	ctx := context.Background()
	f.push(t, "auth", "jwt", []float32{1, 0})
	f.push(t, "session", "cookies", []float32{0.9, 0.1})
	f.push(t, "db", "postgres", []float32{0, 1})

	got, err := f.svc.Related(ctx, "auth", 5, 1.5)
	if err != nil {
		t.Fatalf("Related failed: %v", err)
	}
	if len(got) != 1 || got[0].Key != "session" {
		t.Errorf("expected [session], got %v", keys(got))
	}

	if _, err := f.svc.Related(ctx, "missing", 5, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	f.emb.FailOn("unindexed", errors.New("offline"))
	if _, err := f.records.PushContext(ctx, &store.Record{Key: "u", Content: "unindexed"}); err != nil {
		t.Fatalf("PushContext failed: %v", err)
	}
	if _, err := f.svc.Related(ctx, "u", 5, 0); !errors.Is(err, ErrNotIndexed) {
		t.Errorf("expected ErrNotIndexed, got %v", err)
	}
}

func TestKeyedMutex(t *testing.T) {
	km := newKeyedMutex()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(1)
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("expected same-id holders to be serialized, saw %d at once", maxActive)
	}
	if len(km.locks) != 0 {
		t.Errorf("expected lock table to drain, %d left", len(km.locks))
	}

	// Different ids do not block each other.
	u1 := km.Lock(1)
	done := make(chan struct{})
	go func() {
		km.Lock(2)()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on id 2 blocked behind id 1")
	}
	u1()
}
