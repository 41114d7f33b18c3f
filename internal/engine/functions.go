package engine

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"
)

// SQL function names. Both take (embedding BLOB, query BLOB) and return the
// raw distance as REAL, or NULL when either side is NULL.
const (
	FuncCosineDistance = "vec_cosine_distance"
	FuncL2Distance     = "vec_l2_distance"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterFunctions registers the distance functions with the driver. Only
// connections opened after the first call see them, so Open calls it first.
func RegisterFunctions() error {
	registerOnce.Do(func() {
		if err := sqlite.RegisterDeterministicScalarFunction(FuncCosineDistance, 2, cosineDistanceImpl); err != nil {
			registerErr = fmt.Errorf("failed to register %s: %w", FuncCosineDistance, err)
			return
		}
		if err := sqlite.RegisterDeterministicScalarFunction(FuncL2Distance, 2, l2DistanceImpl); err != nil {
			registerErr = fmt.Errorf("failed to register %s: %w", FuncL2Distance, err)
		}
	})
	return registerErr
}

func cosineDistanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := pair(FuncCosineDistance, args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	return CosineDistance(a, b), nil
}

func l2DistanceImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, b, err := pair(FuncL2Distance, args)
	if err != nil || a == nil || b == nil {
		return nil, err
	}
	return L2Distance(a, b), nil
}

func pair(name string, args []driver.Value) ([]float32, []float32, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
	}
	a, err := asEmbedding(args[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := asEmbedding(args[1])
	if err != nil {
		return nil, nil, err
	}
	if a != nil && b != nil && len(a) != len(b) {
		return nil, nil, &DimensionError{Expected: len(b), Actual: len(a)}
	}
	return a, b, nil
}

// DimensionError is returned by the SQL functions when a stored embedding and
// the query embedding disagree in length.
type DimensionError struct {
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("stored embedding has %d dimensions, query has %d", e.Actual, e.Expected)
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return DecodeEmbedding(v)
	default:
		return nil, fmt.Errorf("unsupported argument type %T for embedding; want BLOB", arg)
	}
}

// EncodeEmbedding encodes vec as little-endian IEEE 754 float32 values with
// no length prefix.
func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// CosineDistance returns 1 - cos(a, b). Zero-magnitude inputs are treated
// as orthogonal (distance 1). a and b must have equal length.
func CosineDistance(a, b []float32) float64 {
	var dot, na2, nb2 float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	return 1 - math.Max(-1, math.Min(1, cos))
}

// L2Distance returns the Euclidean distance. a and b must have equal length.
func L2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
