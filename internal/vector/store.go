package vector

import "context"

// Store persists one embedding per record id and answers nearest-neighbour
// queries.
type Store interface {
	// Upsert replaces any existing vector for recordID. A vector of the wrong
	// length fails with *ErrDimensionMismatch and leaves the stored vector
	// untouched.
	Upsert(ctx context.Context, recordID int64, vec []float32) error

	// Delete removes the vector for recordID. Deleting an absent vector is
	// not an error.
	Delete(ctx context.Context, recordID int64) error

	// Get returns a copy of the stored vector and whether one exists.
	Get(ctx context.Context, recordID int64) ([]float32, bool, error)

	// Query returns up to k matches scoring at least threshold, best first,
	// ties broken by ascending record id.
	Query(ctx context.Context, q []float32, k int, threshold float64) ([]Match, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Dimensions returns the configured vector length.
	Dimensions() int

	// Metric returns the distance the store ranks by.
	Metric() Metric
}

func checkDims(expected int, vec []float32) error {
	if len(vec) != expected {
		return &ErrDimensionMismatch{Expected: expected, Actual: len(vec)}
	}
	return nil
}
