package vector

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable wraps any failure of the underlying persistence. A
// query failing this way must not be read as "no matches".
var ErrStoreUnavailable = errors.New("vector store unavailable")

// ErrDimensionMismatch indicates a vector whose length disagrees with the
// store's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// IsDimensionMismatch reports whether err carries an *ErrDimensionMismatch.
func IsDimensionMismatch(err error) bool {
	var dm *ErrDimensionMismatch
	return errors.As(err, &dm)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStoreUnavailable, op, err)
}
