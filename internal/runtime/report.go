package runtime

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/felixgeelhaar/brainrot/internal/store"
)

const untagged = "untagged"

// groupByTag buckets records under each of their tags, preserving list
// order inside a bucket. Records without tags land under "untagged".
func groupByTag(recs []*store.Record) (map[string][]*store.Record, []string) {
	groups := make(map[string][]*store.Record)
	for _, rec := range recs {
		tags := rec.Tags
		if len(tags) == 0 {
			tags = []string{untagged}
		}
		for _, tag := range tags {
			groups[tag] = append(groups[tag], rec)
		}
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	slices.Sort(names)
	return groups, names
}

// Summary renders every stored key grouped by tag, at most five per tag.
func (r *Runtime) Summary(ctx context.Context) (string, error) {
	recs, err := r.store.ListContexts(ctx, store.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to list contexts: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Stored Contexts Summary\n\n")
	fmt.Fprintf(&b, "Total contexts: %d\n", len(recs))

	groups, names := groupByTag(recs)
	for _, tag := range names {
		items := groups[tag]
		fmt.Fprintf(&b, "\n## %s (%d items)\n", strings.ToUpper(tag), len(items))
		for _, rec := range items[:min(5, len(items))] {
			fmt.Fprintf(&b, "  - %s\n", rec.Key)
		}
		if len(items) > 5 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(items)-5)
		}
	}
	return b.String(), nil
}

func bullet(b *strings.Builder, rec *store.Record) {
	fmt.Fprintf(b, "- **%s**: %s\n", rec.Key, rec.Summary)
}

// AnalyzeProject reviews the most recent contexts: high priority items
// first, then each tag with up to three entries.
func (r *Runtime) AnalyzeProject(ctx context.Context) (string, error) {
	recs, err := r.store.ListContexts(ctx, store.ListOptions{Limit: 50})
	if err != nil {
		return "", fmt.Errorf("failed to list contexts: %w", err)
	}
	if len(recs) == 0 {
		return "No contexts found. Use push_context to store project information.", nil
	}

	var b strings.Builder
	b.WriteString("# Project Context Analysis\n\n")
	fmt.Fprintf(&b, "**Total Contexts:** %d\n\n", len(recs))

	var high []*store.Record
	for _, rec := range recs {
		if Priority(rec) == "high" {
			high = append(high, rec)
		}
	}
	if len(high) > 0 {
		b.WriteString("## High Priority Items\n")
		for _, rec := range high {
			bullet(&b, rec)
			fmt.Fprintf(&b, "  Tags: %s\n", strings.Join(rec.Tags, ", "))
		}
		b.WriteString("\n")
	}

	groups, names := groupByTag(recs)
	for _, tag := range names {
		if tag == untagged {
			continue
		}
		items := groups[tag]
		fmt.Fprintf(&b, "## %s (%d items)\n", strings.ToUpper(tag), len(items))
		for _, rec := range items[:min(3, len(items))] {
			bullet(&b, rec)
		}
		if len(items) > 3 {
			fmt.Fprintf(&b, "  ... and %d more\n", len(items)-3)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// SuggestNextActions orders open work: high priority TODOs, technical debt,
// then the remaining TODOs.
func (r *Runtime) SuggestNextActions(ctx context.Context) (string, error) {
	todos, err := r.store.ListContexts(ctx, store.ListOptions{Tag: "todo", Limit: 20})
	if err != nil {
		return "", fmt.Errorf("failed to list todos: %w", err)
	}
	debts, err := r.store.ListContexts(ctx, store.ListOptions{Tag: "tech-debt", Limit: 20})
	if err != nil {
		return "", fmt.Errorf("failed to list tech debt: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Suggested Next Actions\n\n")
	wrote := false

	var high, rest []*store.Record
	for _, rec := range todos {
		if Priority(rec) == "high" {
			high = append(high, rec)
		} else {
			rest = append(rest, rec)
		}
	}
	if len(high) > 0 {
		b.WriteString("## Immediate Actions (High Priority TODOs)\n")
		for _, rec := range high {
			fmt.Fprintf(&b, "1. **%s**: %s\n", rec.Key, rec.Summary)
		}
		b.WriteString("\n")
		wrote = true
	}
	if len(debts) > 0 {
		b.WriteString("## Technical Debt to Address\n")
		for _, rec := range debts[:min(3, len(debts))] {
			bullet(&b, rec)
		}
		b.WriteString("\n")
		wrote = true
	}
	if len(rest) > 0 {
		b.WriteString("## Other TODOs\n")
		for _, rec := range rest[:min(5, len(rest))] {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", rec.Key, Priority(rec), rec.Summary)
		}
		b.WriteString("\n")
		wrote = true
	}
	if !wrote {
		b.WriteString("No TODOs or technical debt found.\n")
		b.WriteString("Consider using push_context to track tasks and improvements.\n")
	}
	return b.String(), nil
}

// ContextForFeature gathers contexts relevant to implementing feature.
// Semantic search is used when available, keyword matching on key and
// summary otherwise. Architecture and security decisions are always listed.
func (r *Runtime) ContextForFeature(ctx context.Context, feature string) (string, error) {
	recs, err := r.store.ListContexts(ctx, store.ListOptions{Limit: 100})
	if err != nil {
		return "", fmt.Errorf("failed to list contexts: %w", err)
	}
	if len(recs) == 0 {
		return "No stored contexts found. Consider storing architectural decisions and patterns first.", nil
	}

	relevant, err := r.relevantTo(ctx, feature, recs)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Context for Feature: %s\n\n", feature)
	if len(relevant) > 0 {
		b.WriteString("## Directly Relevant Contexts\n")
		for _, rec := range relevant {
			bullet(&b, rec)
			fmt.Fprintf(&b, "  Tags: %s\n", strings.Join(rec.Tags, ", "))
		}
		b.WriteString("\n")
	}

	sections := []struct{ tag, title string }{
		{"architecture", "Architecture Decisions to Consider"},
		{"security", "Security Considerations"},
	}
	found := len(relevant) > 0
	for _, sec := range sections {
		var items []*store.Record
		for _, rec := range recs {
			if rec.HasTag(sec.tag) {
				items = append(items, rec)
			}
		}
		if len(items) == 0 {
			continue
		}
		found = true
		fmt.Fprintf(&b, "## %s\n", sec.title)
		for _, rec := range items[:min(3, len(items))] {
			bullet(&b, rec)
		}
		b.WriteString("\n")
	}
	if !found {
		b.WriteString("No directly relevant contexts found.\n")
		b.WriteString("Consider reviewing all stored contexts or adding feature-specific context.\n")
	}
	return b.String(), nil
}

func (r *Runtime) relevantTo(ctx context.Context, feature string, recs []*store.Record) ([]*store.Record, error) {
	if strings.TrimSpace(feature) == "" {
		return nil, nil
	}
	if r.SemanticEnabled() {
		hits, err := r.search.Search(ctx, feature, 5, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to search contexts: %w", err)
		}
		return hits, nil
	}

	words := strings.Fields(strings.ToLower(feature))
	var out []*store.Record
	for _, rec := range recs {
		text := strings.ToLower(rec.Summary + " " + rec.Key)
		if slices.ContainsFunc(words, func(w string) bool { return strings.Contains(text, w) }) {
			out = append(out, rec)
		}
	}
	return out, nil
}
