package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/felixgeelhaar/brainrot/internal/runtime"
	"github.com/felixgeelhaar/brainrot/internal/store"
)

const (
	defaultListLimit  = 20
	defaultPushSource = "mcp_push"
)

func object(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func decode(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return &ParamsError{Err: err}
	}
	return nil
}

// ParamsError marks malformed tool arguments.
type ParamsError struct {
	Err error
}

func (e *ParamsError) Error() string { return "invalid arguments: " + e.Err.Error() }
func (e *ParamsError) Unwrap() error { return e.Err }

func notFound(key string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("No context found with key '%s': %w", key, err)
	}
	return err
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func (s *Server) registerTools() {
	must := func(def ToolDefinition, exec ToolExecutor) {
		if err := s.tools.Register(def, exec); err != nil {
			panic(err)
		}
	}

	must(ToolDefinition{
		Name:        "push_context",
		Description: "Store context (architecture decisions, patterns, TODOs) under a key for later sessions. Pushing an existing key replaces it.",
		InputSchema: object([]string{"key", "content"}, map[string]any{
			"key":      prop("string", "Unique identifier, e.g. auth-pattern"),
			"content":  prop("string", "The full context to store"),
			"tags":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Tags for categorization"},
			"priority": map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}, "description": "Priority level"},
		}),
	}, s.pushContext)

	must(ToolDefinition{
		Name:        "pop_context",
		Description: "Retrieve previously stored context by key, with instructions on how to apply it.",
		InputSchema: object([]string{"key"}, map[string]any{
			"key":                  prop("string", "Key of the context to retrieve"),
			"include_instructions": prop("boolean", "Include application instructions (default true)"),
		}),
	}, s.popContext)

	must(ToolDefinition{
		Name:        "list_contexts",
		Description: "List stored contexts, most recently updated first, optionally filtered by tag.",
		InputSchema: object(nil, map[string]any{
			"tag":   prop("string", "Only contexts carrying this tag"),
			"limit": prop("integer", "Maximum number of contexts (default 20)"),
		}),
	}, s.listContexts)

	must(ToolDefinition{
		Name:        "delete_context",
		Description: "Delete a context by key.",
		InputSchema: object([]string{"key"}, map[string]any{
			"key": prop("string", "Key of the context to delete"),
		}),
	}, s.deleteContext)

	must(ToolDefinition{
		Name:        "search_contexts",
		Description: "Search contexts by semantic similarity to a free-text query.",
		InputSchema: object([]string{"query"}, map[string]any{
			"query":     prop("string", "What you are looking for"),
			"limit":     prop("integer", fmt.Sprintf("Maximum number of results (default %d)", s.limit)),
			"threshold": prop("number", fmt.Sprintf("Minimum similarity score (default %g)", s.threshold)),
		}),
	}, s.searchContexts)

	must(ToolDefinition{
		Name:        "related_contexts",
		Description: "Find contexts similar to the one stored under key.",
		InputSchema: object([]string{"key"}, map[string]any{
			"key":       prop("string", "Key of the reference context"),
			"limit":     prop("integer", fmt.Sprintf("Maximum number of results (default %d)", s.limit)),
			"threshold": prop("number", fmt.Sprintf("Minimum similarity score (default %g)", s.threshold)),
		}),
	}, s.relatedContexts)

	must(ToolDefinition{
		Name:        "context_summary",
		Description: "Summarize all stored contexts grouped by tag.",
		InputSchema: object(nil, map[string]any{}),
	}, s.contextSummary)
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func (s *Server) pushContext(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Key      string          `json:"key"`
		Content  string          `json:"content"`
		Tags     json.RawMessage `json:"tags"`
		Priority string          `json:"priority"`
	}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	var tags any
	if len(args.Tags) > 0 {
		if err := json.Unmarshal(args.Tags, &tags); err != nil {
			return nil, &ParamsError{Err: err}
		}
	}

	rec, err := s.rt.Push(ctx, runtime.PushRequest{
		Key:      args.Key,
		Content:  args.Content,
		Tags:     runtime.ParseTags(tags),
		Priority: args.Priority,
		Source:   defaultPushSource,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":    true,
		"key":        rec.Key,
		"summary":    rec.Summary,
		"tags":       rec.Tags,
		"message":    fmt.Sprintf("Context '%s' stored successfully", rec.Key),
		"indexed":    s.rt.Indexed(ctx, rec.ID),
		"created_at": stamp(rec.CreatedAt),
		"updated_at": stamp(rec.UpdatedAt),
	}, nil
}

func (s *Server) popContext(ctx context.Context, raw json.RawMessage) (any, error) {
	args := struct {
		Key                 string `json:"key"`
		IncludeInstructions *bool  `json:"include_instructions"`
	}{}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}

	rec, err := s.rt.Pop(ctx, args.Key)
	if err != nil {
		return nil, notFound(args.Key, err)
	}
	out := map[string]any{
		"success":    true,
		"key":        rec.Key,
		"content":    rec.Content,
		"summary":    rec.Summary,
		"tags":       rec.Tags,
		"priority":   runtime.Priority(rec),
		"created_at": stamp(rec.CreatedAt),
		"updated_at": stamp(rec.UpdatedAt),
	}
	if args.IncludeInstructions == nil || *args.IncludeInstructions {
		out["instructions"] = runtime.Instructions(rec)
	}
	return out, nil
}

func listEntry(rec *store.Record) map[string]any {
	return map[string]any{
		"key":        rec.Key,
		"summary":    rec.Summary,
		"tags":       rec.Tags,
		"priority":   runtime.Priority(rec),
		"updated_at": stamp(rec.UpdatedAt),
	}
}

func (s *Server) listContexts(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Tag   string `json:"tag"`
		Limit *int   `json:"limit"`
	}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	limit := defaultListLimit
	if args.Limit != nil && *args.Limit > 0 {
		limit = *args.Limit
	}
	tag := strings.TrimSpace(args.Tag)

	recs, err := s.rt.List(ctx, store.ListOptions{Tag: tag, Limit: limit})
	if err != nil {
		return nil, err
	}
	contexts := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		contexts = append(contexts, listEntry(rec))
	}
	out := map[string]any{
		"success":  true,
		"count":    len(contexts),
		"contexts": contexts,
		"filter":   nil,
	}
	if tag != "" {
		out["filter"] = map[string]any{"tag": tag}
	}
	return out, nil
}

func (s *Server) deleteContext(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Key string `json:"key"`
	}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	if err := s.rt.Delete(ctx, args.Key); err != nil {
		return nil, notFound(args.Key, err)
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Context '%s' deleted successfully", args.Key),
	}, nil
}

type rankArgs struct {
	Limit     *int     `json:"limit"`
	Threshold *float64 `json:"threshold"`
}

func (s *Server) rankParams(a rankArgs) (int, float64) {
	limit, threshold := s.limit, s.threshold
	if a.Limit != nil && *a.Limit > 0 {
		limit = *a.Limit
	}
	if a.Threshold != nil {
		threshold = *a.Threshold
	}
	return limit, threshold
}

func hits(recs []*store.Record) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		score, _ := runtime.Score(rec)
		out = append(out, map[string]any{
			"key":              rec.Key,
			"content":          rec.Content,
			"summary":          rec.Summary,
			"tags":             rec.Tags,
			"priority":         runtime.Priority(rec),
			"similarity_score": round3(score),
			"updated_at":       stamp(rec.UpdatedAt),
		})
	}
	return out
}

func (s *Server) searchContexts(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Query string `json:"query"`
		rankArgs
	}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	limit, threshold := s.rankParams(args.rankArgs)

	recs, err := s.rt.Search(ctx, args.Query, limit, threshold)
	if err != nil {
		return nil, err
	}
	contexts := hits(recs)
	return map[string]any{
		"success":          true,
		"query":            args.Query,
		"count":            len(contexts),
		"contexts":         contexts,
		"semantic_enabled": s.rt.SemanticEnabled(),
		"search_params":    map[string]any{"limit": limit, "threshold": threshold},
	}, nil
}

func (s *Server) relatedContexts(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Key string `json:"key"`
		rankArgs
	}
	if err := decode(raw, &args); err != nil {
		return nil, err
	}
	limit, threshold := s.rankParams(args.rankArgs)

	recs, err := s.rt.Related(ctx, args.Key, limit, threshold)
	if err != nil {
		return nil, notFound(args.Key, err)
	}
	contexts := hits(recs)
	return map[string]any{
		"success":  true,
		"key":      args.Key,
		"count":    len(contexts),
		"contexts": contexts,
	}, nil
}

func (s *Server) contextSummary(ctx context.Context, _ json.RawMessage) (any, error) {
	text, err := s.rt.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "summary": text}, nil
}
