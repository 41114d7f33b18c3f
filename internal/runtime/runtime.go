package runtime

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/brainrot/internal/events"
	"github.com/felixgeelhaar/brainrot/internal/guard"
	"github.com/felixgeelhaar/brainrot/internal/memory"
	"github.com/felixgeelhaar/brainrot/internal/observe"
	"github.com/felixgeelhaar/brainrot/internal/store"
	"github.com/felixgeelhaar/brainrot/internal/ui"
)

const (
	DefaultPriority    = "medium"
	DefaultSource      = "cli"
	DefaultConcurrency = 4
)

// Runtime is the application core shared by the CLI and the MCP server.
type Runtime struct {
	store       store.Storage
	guard       *guard.Guard
	search      *memory.Service
	indexer     *memory.Indexer
	bus         *events.Bus
	observe     *observe.Observer
	ui          ui.UI
	concurrency int
}

func New(s store.Storage, g *guard.Guard, search *memory.Service, ix *memory.Indexer, bus *events.Bus, o *observe.Observer) *Runtime {
	if o == nil {
		o = observe.Nop()
	}
	return &Runtime{
		store:       s,
		guard:       g,
		search:      search,
		indexer:     ix,
		bus:         bus,
		observe:     o,
		ui:          ui.SilentUI{},
		concurrency: DefaultConcurrency,
	}
}

func (r *Runtime) SetUI(u ui.UI) {
	if u != nil {
		r.ui = u
	}
}

// SetConcurrency bounds the number of embeddings Reindex runs at once.
func (r *Runtime) SetConcurrency(n int) {
	if n > 0 {
		r.concurrency = n
	}
}

// SemanticEnabled reports whether search and related lookups can return
// anything.
func (r *Runtime) SemanticEnabled() bool {
	return r.search != nil && r.search.Enabled()
}

// Indexed reports whether the context with id has a vector, that is
// whether semantic search can find it.
func (r *Runtime) Indexed(ctx context.Context, id int64) bool {
	if r.indexer == nil || !r.SemanticEnabled() {
		return false
	}
	ok, err := r.indexer.Has(ctx, id)
	return err == nil && ok
}

func (r *Runtime) Store() store.Storage {
	return r.store
}

// PushRequest is a context to store under Key.
type PushRequest struct {
	Key      string
	Content  string
	Summary  string
	Tags     []string
	Priority string
	Source   string
	Metadata map[string]any
}

// Push validates req against the policy and stores it. An empty summary is
// derived from the content.
func (r *Runtime) Push(ctx context.Context, req PushRequest) (_ *store.Record, err error) {
	ctx, span := r.observe.StartSpan(ctx, "runtime.Push")
	span.SetAttributes(attribute.String("key", req.Key))
	defer func() { observe.EndSpan(span, err) }()

	if req.Priority == "" {
		req.Priority = DefaultPriority
	}
	if req.Source == "" {
		req.Source = DefaultSource
	}
	tags := store.NormalizeTags(req.Tags)

	if err := r.guard.CheckPush(req.Key, req.Content, tags, req.Priority); err != nil {
		r.bus.PublishRecord(events.EventGuardViolation, 0, req.Key, map[string]any{"error": err.Error()})
		return nil, err
	}

	summary := req.Summary
	if summary == "" {
		summary = Summarize(req.Content, SummaryLength)
	}

	meta := maps.Clone(req.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["priority"] = req.Priority
	meta["source"] = req.Source
	meta["char_count"] = utf8.RuneCountInString(req.Content)

	rec, err := r.store.PushContext(ctx, &store.Record{
		Key:      req.Key,
		Content:  req.Content,
		Summary:  summary,
		Tags:     tags,
		Metadata: meta,
	})
	if err != nil {
		r.observe.Log().Error().Str("key", req.Key).Err(err).Msg("failed to push context")
		return nil, fmt.Errorf("failed to push context: %w", err)
	}
	r.observe.Log().Info().Str("key", rec.Key).Int("tags", len(rec.Tags)).Msg("context stored")
	return rec, nil
}

// Pop returns the context stored under key.
func (r *Runtime) Pop(ctx context.Context, key string) (*store.Record, error) {
	return r.store.GetByKey(ctx, key)
}

func (r *Runtime) List(ctx context.Context, opts store.ListOptions) ([]*store.Record, error) {
	return r.store.ListContexts(ctx, opts)
}

// Delete removes the context stored under key; its vector follows through
// the indexer.
func (r *Runtime) Delete(ctx context.Context, key string) error {
	if err := r.store.DeleteContext(ctx, key); err != nil {
		return err
	}
	r.observe.Log().Info().Str("key", key).Msg("context deleted")
	return nil
}

func (r *Runtime) Search(ctx context.Context, query string, limit int, threshold float64) ([]*store.Record, error) {
	if r.search == nil {
		return nil, errors.New("search service not configured")
	}
	return r.search.Search(ctx, query, limit, threshold)
}

func (r *Runtime) Related(ctx context.Context, key string, limit int, threshold float64) ([]*store.Record, error) {
	if r.search == nil {
		return nil, errors.New("search service not configured")
	}
	return r.search.Related(ctx, key, limit, threshold)
}

// Reindex regenerates every vector, reporting progress on the runtime's UI.
func (r *Runtime) Reindex(ctx context.Context) (*memory.ReindexReport, error) {
	if r.indexer == nil {
		return nil, errors.New("indexer not configured")
	}
	return r.indexer.ReindexAll(ctx, r.store, r.concurrency, r.ui)
}

func (r *Runtime) CleanupTags(ctx context.Context) (*store.TagReport, error) {
	report, err := r.store.CleanupTags(ctx)
	if err != nil {
		return nil, err
	}
	r.observe.Log().Info().Int("fixed", report.Fixed).Int("total", report.Total).Msg("tags cleaned")
	return report, nil
}

// Priority reads the priority a context was pushed with.
func Priority(rec *store.Record) string {
	if p, ok := rec.Metadata["priority"].(string); ok && p != "" {
		return p
	}
	return DefaultPriority
}

// Score reads the similarity score attached by a search, if any.
func Score(rec *store.Record) (float64, bool) {
	s, ok := rec.Metadata[memory.ScoreKey].(float64)
	return s, ok
}
