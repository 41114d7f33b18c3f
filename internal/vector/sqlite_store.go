package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/brainrot/internal/engine"
)

// DefaultTable holds vectors when no table is configured.
const DefaultTable = "context_embeddings"

// SQLiteStore keeps vectors in a SQLite table keyed by record id. Distances
// are computed inside SQLite by the functions registered in package engine;
// the top-k selection happens in Go while rows stream in.
type SQLiteStore struct {
	db     *sql.DB
	dims   int
	metric Metric
	table  string
	parent string
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithMetric selects the distance metric. Defaults to Cosine.
func WithMetric(m Metric) Option {
	return func(s *SQLiteStore) { s.metric = m }
}

// WithTable overrides the table name.
func WithTable(name string) Option {
	return func(s *SQLiteStore) { s.table = name }
}

// WithParent declares table(column) as the owner of record ids. Rows are then
// created with a foreign key and removed by ON DELETE CASCADE when the parent
// row goes away.
func WithParent(table, column string) Option {
	return func(s *SQLiteStore) { s.parent = fmt.Sprintf("%s(%s)", table, column) }
}

// NewSQLiteStore creates the vector table if needed. db should come from
// engine.Open so the distance functions and foreign keys are in place.
func NewSQLiteStore(db *sql.DB, dims int, opts ...Option) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("vector: db is nil")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("vector: invalid dimensions %d", dims)
	}
	s := &SQLiteStore{db: db, dims: dims, metric: Cosine, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	if err := engine.RegisterFunctions(); err != nil {
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	ref := ""
	if s.parent != "" {
		ref = " REFERENCES " + s.parent + " ON DELETE CASCADE"
	}
	query := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		record_id INTEGER PRIMARY KEY` + ref + `,
		dimensions INTEGER NOT NULL,
		vector BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to init vector schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Dimensions() int { return s.dims }
func (s *SQLiteStore) Metric() Metric  { return s.metric }

func (s *SQLiteStore) Upsert(ctx context.Context, recordID int64, vec []float32) error {
	if err := checkDims(s.dims, vec); err != nil {
		return err
	}
	query := `INSERT INTO ` + s.table + ` (record_id, dimensions, vector, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(record_id) DO UPDATE SET
			dimensions = excluded.dimensions,
			vector = excluded.vector,
			updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, recordID, len(vec), engine.EncodeEmbedding(vec), time.Now().UTC()); err != nil {
		return unavailable(fmt.Sprintf("upsert vector %d", recordID), err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, recordID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE record_id = ?`, recordID); err != nil {
		return unavailable(fmt.Sprintf("delete vector %d", recordID), err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, recordID int64) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT vector FROM `+s.table+` WHERE record_id = ?`, recordID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(fmt.Sprintf("get vector %d", recordID), err)
	}
	vec, err := engine.DecodeEmbedding(blob)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode vector %d: %w", recordID, err)
	}
	return vec, true, nil
}

func (s *SQLiteStore) Query(ctx context.Context, q []float32, k int, threshold float64) ([]Match, error) {
	if err := checkDims(s.dims, q); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	query := `SELECT record_id, dimensions,
		CASE WHEN dimensions = ? THEN ` + s.metric.sqlFunc() + `(vector, ?) END
		FROM ` + s.table
	rows, err := s.db.QueryContext(ctx, query, s.dims, engine.EncodeEmbedding(q))
	if err != nil {
		return nil, unavailable("query vectors", err)
	}
	defer rows.Close()

	top := newTopK(k)
	for rows.Next() {
		var (
			id   int64
			dims int
			dist sql.NullFloat64
		)
		if err := rows.Scan(&id, &dims, &dist); err != nil {
			return nil, unavailable("scan vector row", err)
		}
		if dims != s.dims || !dist.Valid {
			return nil, fmt.Errorf("stale vector for record %d: %w", id, &ErrDimensionMismatch{Expected: s.dims, Actual: dims})
		}
		if score := Score(dist.Float64); score >= threshold {
			top.Offer(Match{RecordID: id, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query vectors", err)
	}
	return top.Sorted(), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table).Scan(&n); err != nil {
		return 0, unavailable("count vectors", err)
	}
	return n, nil
}

// Stale lists record ids whose stored vector length no longer matches the
// configured dimensionality, e.g. after switching embedding models.
func (s *SQLiteStore) Stale(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record_id FROM `+s.table+` WHERE dimensions != ? ORDER BY record_id`, s.dims)
	if err != nil {
		return nil, unavailable("list stale vectors", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan stale vector", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list stale vectors", err)
	}
	return ids, nil
}

var _ Store = (*SQLiteStore)(nil)
