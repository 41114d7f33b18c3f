// Package vector is the similarity index behind brainrot's semantic search.
//
// A Store keeps exactly one embedding per record id and answers top-k
// queries under a score threshold. Two implementations share the same
// contract:
//   - SQLiteStore: the authoritative, durable store living next to the
//     contexts table, with cascade delete from its parent records
//   - MemoryStore: a process-local store for tests and ephemeral use
//
// Scores are derived from distances with Score (see distance.go), so a
// threshold means the same thing regardless of the backing store.
package vector
