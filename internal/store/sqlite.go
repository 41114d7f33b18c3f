package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/felixgeelhaar/brainrot/internal/engine"
	"github.com/felixgeelhaar/brainrot/internal/events"
)

// SQLiteStore persists contexts and configuration in SQLite. Committed
// pushes and deletes are announced on the event bus.
type SQLiteStore struct {
	db     *sql.DB
	bus    *events.Bus
	closer bool
}

// Open opens the database at path (or engine.MemoryDSN) and prepares the
// schema. The store owns the connection and closes it on Close.
func Open(path string, bus *events.Bus) (*SQLiteStore, error) {
	db, err := engine.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := New(db, bus)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.closer = true
	return s, nil
}

// New prepares the schema on an existing connection. bus may be nil.
func New(db *sql.DB, bus *events.Bus) (*SQLiteStore, error) {
	store := &SQLiteStore{
		db:  db,
		bus: bus,
	}

	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS contexts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_contexts_updated_at ON contexts(updated_at);`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// DB exposes the connection so derived tables (vectors) can share it.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Bus returns the event bus records are announced on.
func (s *SQLiteStore) Bus() *events.Bus {
	return s.bus
}

func (s *SQLiteStore) Close() error {
	if !s.closer {
		return nil
	}
	return s.db.Close()
}

// Configuration Implementation

func (s *SQLiteStore) SetConfig(ctx context.Context, key, value string) error {
	query := `INSERT INTO configuration (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return unavailable("set config "+key, err)
	}
	return nil
}

// GetConfig returns "" for unknown keys.
func (s *SQLiteStore) GetConfig(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM configuration WHERE key = ?`
	var value sql.NullString
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", unavailable("get config "+key, err)
	}
	return value.String, nil
}

// Context Implementation

// PushContext creates the record for rec.Key or overwrites its content,
// summary, tags and metadata. ID and CreatedAt of an existing record are
// kept. Tags are normalized. The stored record is returned.
func (s *SQLiteStore) PushContext(ctx context.Context, rec *Record) (*Record, error) {
	if rec == nil || rec.Key == "" {
		return nil, errors.New("context key is required")
	}

	tags := NormalizeTags(rec.Tags)
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	query := `INSERT INTO contexts (key, content, summary, tags, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			summary = excluded.summary,
			tags = excluded.tags,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
		RETURNING id`

	var id int64
	row := s.db.QueryRowContext(ctx, query, rec.Key, rec.Content, rec.Summary, string(tagsJSON), string(metaJSON), now, now)
	if err := row.Scan(&id); err != nil {
		return nil, unavailable(fmt.Sprintf("push context %q", rec.Key), err)
	}

	out, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.bus.PublishRecord(events.EventRecordChanged, out.ID, out.Key, map[string]any{
		"content": out.Content,
		"summary": out.Summary,
		"created": out.CreatedAt.Equal(out.UpdatedAt),
	})
	return out, nil
}

const selectColumns = `SELECT id, key, content, summary, tags, metadata, created_at, updated_at FROM contexts`

func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("context %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable(fmt.Sprintf("get context %d", id), err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetByKey(ctx context.Context, key string) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("context %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable(fmt.Sprintf("get context %q", key), err)
	}
	return rec, nil
}

// ListContexts returns records most recently updated first.
func (s *SQLiteStore) ListContexts(ctx context.Context, opts ListOptions) ([]*Record, error) {
	if opts.TagPattern != "" && !doublestar.ValidatePattern(opts.TagPattern) {
		return nil, fmt.Errorf("invalid tag pattern %q", opts.TagPattern)
	}

	query := selectColumns
	var args []any
	if tag := CleanTag(opts.Tag); tag != "" {
		query += ` WHERE EXISTS (SELECT 1 FROM json_each(contexts.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}
	query += ` ORDER BY updated_at DESC, id DESC`
	// The glob filter runs in Go, so the limit can only be pushed down
	// without one.
	if opts.Limit > 0 && opts.TagPattern == "" {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list contexts", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("scan context", err)
		}
		if opts.TagPattern != "" && !matchesAny(opts.TagPattern, rec.Tags) {
			continue
		}
		records = append(records, rec)
		if opts.Limit > 0 && len(records) == opts.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list contexts", err)
	}
	return records, nil
}

func matchesAny(pattern string, tags []string) bool {
	for _, t := range tags {
		if ok, _ := doublestar.Match(pattern, t); ok {
			return true
		}
	}
	return false
}

// DeleteContext removes the record for key, returning ErrNotFound if there is
// none.
func (s *SQLiteStore) DeleteContext(ctx context.Context, key string) error {
	var id int64
	err := s.db.QueryRowContext(ctx, `DELETE FROM contexts WHERE key = ? RETURNING id`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("context %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return unavailable(fmt.Sprintf("delete context %q", key), err)
	}

	s.bus.PublishRecord(events.EventRecordDeleted, id, key, nil)
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contexts`).Scan(&n); err != nil {
		return 0, unavailable("count contexts", err)
	}
	return n, nil
}

// CleanupTags rewrites tags that were stored with JSON debris or mixed case.
// Only tags change, so no record_changed events are published.
func (s *SQLiteStore) CleanupTags(ctx context.Context) (*TagReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin tag cleanup", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, key, tags FROM contexts ORDER BY id`)
	if err != nil {
		return nil, unavailable("read tags", err)
	}

	type fix struct {
		id   int64
		tags []string
	}
	report := &TagReport{}
	var fixes []fix
	unique := map[string]struct{}{}
	for rows.Next() {
		var (
			id       int64
			key      string
			tagsJSON string
		)
		if err := rows.Scan(&id, &key, &tagsJSON); err != nil {
			rows.Close()
			return nil, unavailable("scan tags", err)
		}
		report.Total++

		var tags []string
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			// Unparseable tag column: treat as one raw tag.
			tags = []string{tagsJSON}
		}
		clean := NormalizeTags(tags)
		for _, t := range clean {
			unique[t] = struct{}{}
		}
		if slices.Equal(tags, clean) {
			report.AlreadyClean++
			continue
		}
		report.Fixed++
		report.Changes = append(report.Changes, TagChange{Key: key, Before: tags, After: clean})
		fixes = append(fixes, fix{id: id, tags: clean})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, unavailable("read tags", err)
	}
	rows.Close()

	for _, f := range fixes {
		b, err := json.Marshal(f.tags)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE contexts SET tags = ? WHERE id = ?`, string(b), f.id); err != nil {
			return nil, unavailable("update tags", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit tag cleanup", err)
	}

	for t := range unique {
		report.UniqueTags = append(report.UniqueTags, t)
	}
	slices.Sort(report.UniqueTags)
	return report, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec      Record
		tagsJSON string
		metaJSON string
	)
	if err := row.Scan(&rec.ID, &rec.Key, &rec.Content, &rec.Summary, &tagsJSON, &metaJSON, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	return &rec, nil
}

var _ Storage = (*SQLiteStore)(nil)
