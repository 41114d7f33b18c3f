// Package seed loads batches of contexts from YAML or JSON files, checks
// them against the push policy and imports them.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/brainrot/internal/guard"
	"github.com/felixgeelhaar/brainrot/internal/runtime"
	"github.com/felixgeelhaar/brainrot/internal/store"
	"github.com/felixgeelhaar/brainrot/internal/ui"
)

// Source is recorded in the metadata of imported contexts.
const Source = "seed"

// Entry is one context in a seed file.
type Entry struct {
	Key      string         `json:"key" yaml:"key"`
	Content  string         `json:"content" yaml:"content"`
	Summary  string         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Tags     []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Priority string         `json:"priority,omitempty" yaml:"priority,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

type File struct {
	Contexts []Entry `json:"contexts" yaml:"contexts"`
}

// ValidationResult represents the outcome of a linting pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Load reads a seed file (JSON or YAML).
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON seed: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML seed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed format: %s (use .json or .yaml)", ext)
	}
	return &f, nil
}

// Validate checks every entry against g. Entries that would be rejected on
// push are errors; entries that are merely thin are warnings.
func Validate(f *File, g *guard.Guard) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}
	fail := func(format string, args ...any) {
		res.Valid = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
	}

	if len(f.Contexts) == 0 {
		fail("Seed file contains no contexts")
		return res
	}

	seen := make(map[string]int, len(f.Contexts))
	for i, e := range f.Contexts {
		label := fmt.Sprintf("contexts[%d]", i)
		if e.Key != "" {
			label = fmt.Sprintf("%s (%s)", label, e.Key)
		}

		if prev, dup := seen[e.Key]; dup && e.Key != "" {
			fail("%s: duplicate key, first used by contexts[%d]", label, prev)
		}
		seen[e.Key] = i

		priority := e.Priority
		if priority == "" {
			priority = runtime.DefaultPriority
		}
		if err := g.CheckPush(e.Key, e.Content, store.NormalizeTags(e.Tags), priority); err != nil {
			fail("%s: %v", label, err)
		}

		if len(e.Tags) == 0 {
			res.Warnings = append(res.Warnings, label+": no tags; it will only appear under UNTAGGED")
		}
		if n := len(strings.TrimSpace(e.Content)); n > 0 && n < 20 {
			res.Warnings = append(res.Warnings, label+": content is very short; consider adding more detail")
		}
	}
	return res
}

// Pusher stores a single context.
type Pusher interface {
	Push(ctx context.Context, req runtime.PushRequest) (*store.Record, error)
}

type Report struct {
	Imported int
	Failed   map[string]error
}

// Import pushes every entry in order. Individual failures are collected;
// cancellation stops the import.
func Import(ctx context.Context, p Pusher, f *File, progress ui.UI) (*Report, error) {
	if progress == nil {
		progress = ui.SilentUI{}
	}
	report := &Report{Failed: make(map[string]error)}
	total := len(f.Contexts)
	progress.UpdateStatus(fmt.Sprintf("Importing %d contexts", total))

	for i, e := range f.Contexts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		_, err := p.Push(ctx, runtime.PushRequest{
			Key:      e.Key,
			Content:  e.Content,
			Summary:  e.Summary,
			Tags:     e.Tags,
			Priority: e.Priority,
			Source:   Source,
			Metadata: e.Metadata,
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return report, err
		}
		if err != nil {
			report.Failed[e.Key] = err
			progress.Log(fmt.Sprintf("failed %s: %v", e.Key, err))
		} else {
			report.Imported++
		}
		progress.UpdateProgress(i+1, total)
	}
	return report, nil
}
