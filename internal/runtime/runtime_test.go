package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/brainrot/internal/embed"
	"github.com/felixgeelhaar/brainrot/internal/engine"
	"github.com/felixgeelhaar/brainrot/internal/events"
	"github.com/felixgeelhaar/brainrot/internal/guard"
	"github.com/felixgeelhaar/brainrot/internal/memory"
	"github.com/felixgeelhaar/brainrot/internal/store"
	"github.com/felixgeelhaar/brainrot/internal/vector"
)

func newTestRuntime(t *testing.T, withEmbedder bool) (*Runtime, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	s, err := store.Open(engine.MemoryDSN, bus)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	vectors, err := vector.NewSQLiteStore(s.DB(), 64, vector.WithParent("contexts", "id"))
	if err != nil {
		t.Fatalf("Failed to open vector store: %v", err)
	}

	var emb embed.Embedder
	if withEmbedder {
		emb = embed.NewStubEmbedder(64)
	}
	ix := memory.NewIndexer(s, vectors, emb)
	ix.Attach(bus)
	svc := memory.NewService(s, vectors, emb)

	return New(s, guard.New(guard.DefaultPolicy), svc, ix, bus, nil), bus
}

func TestRuntime_Push(t *testing.T) {
	r, _ := newTestRuntime(t, true)
	ctx := context.Background()

	t.Run("Defaults", func(t *testing.T) {
		rec, err := r.Push(ctx, PushRequest{Key: "auth-flow", Content: "JWT with refresh tokens", Tags: []string{"Security", "security"}})
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if rec.Summary != "JWT with refresh tokens" {
			t.Errorf("Expected summary to equal short content, got %q", rec.Summary)
		}
		if len(rec.Tags) != 1 || rec.Tags[0] != "security" {
			t.Errorf("Expected normalized tags [security], got %v", rec.Tags)
		}
		if Priority(rec) != "medium" {
			t.Errorf("Expected default priority medium, got %q", Priority(rec))
		}
		if rec.Metadata["source"] != DefaultSource {
			t.Errorf("Expected source %q, got %v", DefaultSource, rec.Metadata["source"])
		}
		if n, _ := rec.Metadata["char_count"].(float64); n != 23 {
			t.Errorf("Expected char_count 23, got %v", rec.Metadata["char_count"])
		}
	})

	t.Run("Long Content Is Summarized", func(t *testing.T) {
		content := strings.Repeat("word ", 100)
		rec, err := r.Push(ctx, PushRequest{Key: "long", Content: content, Priority: "high", Source: "mcp_push"})
		if err != nil {
			t.Fatalf("Push failed: %v", err)
		}
		if !strings.HasSuffix(rec.Summary, "...") {
			t.Errorf("Expected truncated summary, got %q", rec.Summary)
		}
		if Priority(rec) != "high" || rec.Metadata["source"] != "mcp_push" {
			t.Errorf("Unexpected metadata: %v", rec.Metadata)
		}
	})

	t.Run("Policy Violation", func(t *testing.T) {
		_, err := r.Push(ctx, PushRequest{Key: "bad", Content: "x", Priority: "urgent"})
		if !errors.Is(err, guard.ErrViolation) {
			t.Fatalf("Expected policy violation, got %v", err)
		}
		if _, err := r.Pop(ctx, "bad"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Rejected push must not be stored, got %v", err)
		}
	})
}

func TestRuntime_Indexed(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	s, err := store.Open(engine.MemoryDSN, bus)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()
	vectors, err := vector.NewSQLiteStore(s.DB(), 8, vector.WithParent("contexts", "id"))
	if err != nil {
		t.Fatalf("Failed to open vector store: %v", err)
	}
	emb := embed.NewStubEmbedder(8)
	emb.FailOn("model cannot read this", errors.New("model offline"))
	ix := memory.NewIndexer(s, vectors, emb)
	ix.Attach(bus)
	r := New(s, guard.New(guard.DefaultPolicy), memory.NewService(s, vectors, emb), ix, bus, nil)

	ok, err := r.Push(ctx, PushRequest{Key: "ok", Content: "indexed fine"})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if !r.Indexed(ctx, ok.ID) {
		t.Error("expected ok to be indexed")
	}

	// The record commits even though its vector could not be built.
	bad, err := r.Push(ctx, PushRequest{Key: "bad", Content: "model cannot read this"})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if r.Indexed(ctx, bad.ID) {
		t.Error("expected bad to be reported as not indexed")
	}

	disabled, _ := newTestRuntime(t, false)
	rec, err := disabled.Push(ctx, PushRequest{Key: "k", Content: "v"})
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if disabled.Indexed(ctx, rec.ID) {
		t.Error("nothing is indexed with embedding disabled")
	}
}

func TestRuntime_PushPublishesGuardViolation(t *testing.T) {
	r, bus := newTestRuntime(t, false)

	var mu sync.Mutex
	var got []events.Event
	bus.Subscribe(events.EventGuardViolation, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})

	r.Push(context.Background(), PushRequest{Key: "", Content: "x"})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("Expected 1 guard violation event, got %d", len(got))
	}
}

func TestRuntime_PopListDelete(t *testing.T) {
	r, _ := newTestRuntime(t, false)
	ctx := context.Background()

	for _, p := range []PushRequest{
		{Key: "a", Content: "alpha", Tags: []string{"todo"}},
		{Key: "b", Content: "beta", Tags: []string{"architecture"}},
		{Key: "c", Content: "gamma", Tags: []string{"todo"}},
	} {
		if _, err := r.Push(ctx, p); err != nil {
			t.Fatalf("Push %s failed: %v", p.Key, err)
		}
	}

	rec, err := r.Pop(ctx, "b")
	if err != nil || rec.Content != "beta" {
		t.Fatalf("Pop returned %v, %v", rec, err)
	}

	todos, err := r.List(ctx, store.ListOptions{Tag: "todo"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(todos) != 2 {
		t.Errorf("Expected 2 todos, got %d", len(todos))
	}

	if err := r.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := r.Delete(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestRuntime_SearchAndReindex(t *testing.T) {
	r, _ := newTestRuntime(t, true)
	ctx := context.Background()

	r.Push(ctx, PushRequest{Key: "jwt", Content: "jwt authentication with refresh tokens"})
	r.Push(ctx, PushRequest{Key: "db", Content: "postgres connection pooling settings"})

	hits, err := r.Search(ctx, "jwt authentication", 1, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Key != "jwt" {
		t.Fatalf("Expected jwt first, got %v", hits)
	}
	if _, ok := Score(hits[0]); !ok {
		t.Error("Expected a score on the search hit")
	}

	report, err := r.Reindex(ctx)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if report.Total != 2 || report.Indexed != 2 {
		t.Errorf("Unexpected report: %+v", report)
	}
}

func TestRuntime_Disabled(t *testing.T) {
	r, _ := newTestRuntime(t, false)
	ctx := context.Background()
	r.Push(ctx, PushRequest{Key: "jwt", Content: "jwt authentication"})

	if r.SemanticEnabled() {
		t.Error("Expected semantic search to be disabled")
	}
	hits, err := r.Search(ctx, "jwt", 5, 0)
	if err != nil || len(hits) != 0 {
		t.Errorf("Expected empty results, got %v, %v", hits, err)
	}
	if _, err := r.Reindex(ctx); !errors.Is(err, embed.ErrDisabled) {
		t.Errorf("Expected ErrDisabled, got %v", err)
	}
}

func TestRuntime_Summary(t *testing.T) {
	r, _ := newTestRuntime(t, false)
	ctx := context.Background()

	for _, key := range []string{"t1", "t2", "t3", "t4", "t5", "t6"} {
		r.Push(ctx, PushRequest{Key: key, Content: key, Tags: []string{"todo"}})
	}
	r.Push(ctx, PushRequest{Key: "loose", Content: "no tags"})

	out, err := r.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	for _, want := range []string{"Total contexts: 7", "## TODO (6 items)", "... and 1 more", "## UNTAGGED (1 items)", "  - loose"} {
		if !strings.Contains(out, want) {
			t.Errorf("Summary missing %q:\n%s", want, out)
		}
	}
}

func TestRuntime_Prompts(t *testing.T) {
	r, _ := newTestRuntime(t, false)
	ctx := context.Background()

	t.Run("Empty Store", func(t *testing.T) {
		out, _ := r.AnalyzeProject(ctx)
		if !strings.Contains(out, "No contexts found") {
			t.Errorf("Unexpected analysis: %s", out)
		}
		out, _ = r.SuggestNextActions(ctx)
		if !strings.Contains(out, "No TODOs or technical debt found.") {
			t.Errorf("Unexpected suggestions: %s", out)
		}
	})

	r.Push(ctx, PushRequest{Key: "fix-login", Content: "Fix login redirect", Tags: []string{"todo"}, Priority: "high"})
	r.Push(ctx, PushRequest{Key: "add-docs", Content: "Write API docs", Tags: []string{"todo"}, Priority: "low"})
	r.Push(ctx, PushRequest{Key: "old-orm", Content: "Replace legacy ORM", Tags: []string{"tech-debt"}})
	r.Push(ctx, PushRequest{Key: "hexagonal", Content: "Ports and adapters layout", Tags: []string{"architecture"}})

	t.Run("Analyze", func(t *testing.T) {
		out, err := r.AnalyzeProject(ctx)
		if err != nil {
			t.Fatalf("AnalyzeProject failed: %v", err)
		}
		if !strings.Contains(out, "## High Priority Items\n- **fix-login**") {
			t.Errorf("Expected high priority section:\n%s", out)
		}
	})

	t.Run("Next Actions", func(t *testing.T) {
		out, err := r.SuggestNextActions(ctx)
		if err != nil {
			t.Fatalf("SuggestNextActions failed: %v", err)
		}
		for _, want := range []string{"1. **fix-login**", "- **old-orm**", "- **add-docs** (low)"} {
			if !strings.Contains(out, want) {
				t.Errorf("Suggestions missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Feature Keywords", func(t *testing.T) {
		out, err := r.ContextForFeature(ctx, "login page")
		if err != nil {
			t.Fatalf("ContextForFeature failed: %v", err)
		}
		if !strings.Contains(out, "## Directly Relevant Contexts\n- **fix-login**") {
			t.Errorf("Expected fix-login as relevant:\n%s", out)
		}
		if !strings.Contains(out, "- **hexagonal**") {
			t.Errorf("Expected architecture section:\n%s", out)
		}
	})
}
