// Package engine opens the SQLite databases used by brainrot through the
// pure-Go modernc.org/sqlite driver and registers the vector distance
// functions the vector store queries with.
package engine

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Open opens (creating if needed) the SQLite database at path with foreign
// keys enforced, WAL journaling and a busy timeout. Distance functions are
// registered before the first connection is made.
func Open(path string) (*sql.DB, error) {
	if err := RegisterFunctions(); err != nil {
		return nil, err
	}

	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if path == MemoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	// Sortable text timestamps instead of time.Time.String().
	q.Set("_time_format", "sqlite")
	if path != MemoryDSN {
		q.Add("_pragma", "journal_mode(WAL)")
		return "file:" + path + "?" + q.Encode()
	}
	return path + "?" + q.Encode()
}
