package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrNotFound is returned when no record matches a key or id.
	ErrNotFound = errors.New("context not found")
	// ErrUnavailable wraps failures of the underlying database.
	ErrUnavailable = errors.New("record store unavailable")
)

// Record is a stored context.
type Record struct {
	ID        int64          `json:"id"`
	Key       string         `json:"key"`
	Content   string         `json:"content"`
	Summary   string         `json:"summary"`
	Tags      []string       `json:"tags"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HasTag reports whether tag is among the record's tags.
func (r *Record) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// ListOptions filters ListContexts.
type ListOptions struct {
	// Tag keeps records carrying this exact (normalized) tag.
	Tag string
	// TagPattern keeps records with at least one tag matching this glob,
	// e.g. "tech-*".
	TagPattern string
	// Limit caps the number of records; <= 0 means no cap.
	Limit int
}

// TagReport summarizes a CleanupTags run.
type TagReport struct {
	Total        int
	Fixed        int
	AlreadyClean int
	Changes      []TagChange
	UniqueTags   []string
}

// TagChange records the tags of one context before and after cleanup.
type TagChange struct {
	Key    string
	Before []string
	After  []string
}

// Storage defines the interface for persistence
type Storage interface {
	// Context Management
	PushContext(ctx context.Context, rec *Record) (*Record, error)
	GetByID(ctx context.Context, id int64) (*Record, error)
	GetByKey(ctx context.Context, key string) (*Record, error)
	ListContexts(ctx context.Context, opts ListOptions) ([]*Record, error)
	DeleteContext(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
	CleanupTags(ctx context.Context) (*TagReport, error)

	// Configuration Management
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)

	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrUnavailable, op, err)
}
