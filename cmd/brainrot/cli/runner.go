package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/felixgeelhaar/brainrot/internal/config"
	"github.com/felixgeelhaar/brainrot/internal/credential"
	"github.com/felixgeelhaar/brainrot/internal/embed"
	"github.com/felixgeelhaar/brainrot/internal/events"
	"github.com/felixgeelhaar/brainrot/internal/guard"
	"github.com/felixgeelhaar/brainrot/internal/memory"
	"github.com/felixgeelhaar/brainrot/internal/observe"
	"github.com/felixgeelhaar/brainrot/internal/runtime"
	"github.com/felixgeelhaar/brainrot/internal/store"
	"github.com/felixgeelhaar/brainrot/internal/vector"
)

// App is the wired application behind every command.
type App struct {
	Config   *config.Config
	Observer *observe.Observer
	Bus      *events.Bus
	Store    *store.SQLiteStore
	Vectors  *vector.SQLiteStore
	Embedder embed.Embedder
	Vault    *credential.Vault
	Runtime  *runtime.Runtime
}

// NewApp opens the database and wires store, vector index, embedder,
// indexer and runtime. Embedding failures at startup are fatal; a disabled
// embedder is not.
func NewApp(ctx context.Context, cfg *config.Config, obs *observe.Observer) (*App, error) {
	bus := events.NewBus()
	obs.Watch(bus)

	s, err := store.Open(cfg.DatabasePath(), bus)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Observer: obs, Bus: bus, Store: s}

	mgr, err := credential.NewManager()
	if err != nil {
		s.Close()
		return nil, err
	}
	app.Vault = credential.NewVault(s, mgr)

	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	apiKey := ""
	if key, env := cfg.APIKeyName(); key != "" {
		var err error
		if apiKey, err = a.Vault.Lookup(ctx, key, env); err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
	}

	emb, err := embed.New(ctx, cfg.EmbedConfig(apiKey))
	switch {
	case errors.Is(err, embed.ErrDisabled):
		a.Observer.Log().Info().Msg("semantic search disabled")
	case err != nil:
		return fmt.Errorf("failed to init embedder: %w", err)
	default:
		a.Embedder = emb
	}

	dims := cfg.Embedding.Dimensions
	if a.Embedder != nil {
		dims = a.Embedder.Dimensionality()
	}

	// The service treats a nil interface as "no index".
	var vectors vector.Store
	if dims > 0 {
		vs, err := vector.NewSQLiteStore(a.Store.DB(), dims,
			vector.WithMetric(cfg.Metric()),
			vector.WithParent("contexts", "id"))
		if err != nil {
			return err
		}
		a.Vectors = vs
		vectors = vs
		a.warnStale(ctx)
	}

	opts := []memory.Option{memory.WithObserver(a.Observer), memory.WithDefaultLimit(cfg.Search.Limit)}
	ix := memory.NewIndexer(a.Store, vectors, a.Embedder, opts...)
	ix.Attach(a.Bus)
	svc := memory.NewService(a.Store, vectors, a.Embedder, opts...)

	a.Runtime = runtime.New(a.Store, guard.New(cfg.Policy), svc, ix, a.Bus, a.Observer)
	a.Runtime.SetConcurrency(cfg.Reindex.Concurrency)
	return nil
}

func (a *App) warnStale(ctx context.Context) {
	stale, err := a.Vectors.Stale(ctx)
	if err != nil || len(stale) == 0 {
		return
	}
	a.Observer.Log().Warn().
		Int("stale", len(stale)).
		Int("dimensions", a.Vectors.Dimensions()).
		Msg("vectors were built with different dimensions; run `brainrot reindex`")
}

func (a *App) Close() error {
	var errs []error
	if c, ok := a.Embedder.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.Store.Close())
	return errors.Join(errs...)
}
