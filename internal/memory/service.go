package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/brainrot/internal/embed"
	"github.com/felixgeelhaar/brainrot/internal/observe"
	"github.com/felixgeelhaar/brainrot/internal/store"
	"github.com/felixgeelhaar/brainrot/internal/vector"
)

// Service turns free-text queries into ranked, hydrated records.
type Service struct {
	records  RecordLookup
	vectors  vector.Store
	embedder embed.Embedder
	obs      *observe.Observer
	limit    int
}

// Option configures a Service or Indexer.
type Option func(*options)

type options struct {
	obs   *observe.Observer
	limit int
}

// WithObserver sets the logger and tracer.
func WithObserver(o *observe.Observer) Option {
	return func(opts *options) { opts.obs = o }
}

// WithDefaultLimit sets the result count used when a caller passes limit <= 0.
func WithDefaultLimit(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.limit = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{obs: observe.Nop(), limit: DefaultLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewService wires a search service. A nil embedder means embedding is
// disabled: searches then return no results instead of failing.
func NewService(records RecordLookup, vectors vector.Store, embedder embed.Embedder, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		records:  records,
		vectors:  vectors,
		embedder: embedder,
		obs:      o.obs,
		limit:    o.limit,
	}
}

// Enabled reports whether semantic search is available.
func (s *Service) Enabled() bool {
	return s.embedder != nil && s.vectors != nil
}

// Search embeds query and returns up to limit records scoring at least
// threshold, best first. Each record carries its score in
// Metadata[ScoreKey].
func (s *Service) Search(ctx context.Context, query string, limit int, threshold float64) (_ []*store.Record, err error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}
	if !s.Enabled() {
		return []*store.Record{}, nil
	}
	if limit <= 0 {
		limit = s.limit
	}

	ctx, span := s.obs.StartSpan(ctx, "memory.Search")
	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.Float64("threshold", threshold),
		attribute.String("embedder", s.embedder.Name()),
	)
	defer func() { observe.EndSpan(span, err) }()

	q, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.vectors.Query(ctx, q, limit, threshold)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("matches", len(matches)))

	return s.hydrate(ctx, matches)
}

// Related ranks contexts similar to the one stored under key, using its
// stored vector. The reference context itself is excluded.
func (s *Service) Related(ctx context.Context, key string, limit int, threshold float64) (_ []*store.Record, err error) {
	if !s.Enabled() {
		return []*store.Record{}, nil
	}
	if limit <= 0 {
		limit = s.limit
	}

	ctx, span := s.obs.StartSpan(ctx, "memory.Related")
	span.SetAttributes(attribute.String("key", key), attribute.Int("limit", limit))
	defer func() { observe.EndSpan(span, err) }()

	ref, err := s.records.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	vec, ok, err := s.vectors.Get(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("context %q: %w", key, ErrNotIndexed)
	}

	matches, err := s.vectors.Query(ctx, vec, limit+1, threshold)
	if err != nil {
		return nil, err
	}
	others := matches[:0]
	for _, m := range matches {
		if m.RecordID != ref.ID {
			others = append(others, m)
		}
	}
	if len(others) > limit {
		others = others[:limit]
	}

	return s.hydrate(ctx, others)
}

// hydrate loads records in match order. Vectors without a record are
// skipped.
func (s *Service) hydrate(ctx context.Context, matches []vector.Match) ([]*store.Record, error) {
	out := make([]*store.Record, 0, len(matches))
	for _, m := range matches {
		rec, err := s.records.GetByID(ctx, m.RecordID)
		if errors.Is(err, store.ErrNotFound) {
			s.obs.Log().Warn().Int("record_id", int(m.RecordID)).Msg("skipping vector without context")
			continue
		}
		if err != nil {
			return nil, err
		}
		hit := *rec
		hit.Metadata = maps.Clone(rec.Metadata)
		if hit.Metadata == nil {
			hit.Metadata = map[string]any{}
		}
		hit.Metadata[ScoreKey] = m.Score
		out = append(out, &hit)
	}
	return out, nil
}
