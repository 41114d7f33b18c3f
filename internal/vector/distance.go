package vector

import (
	"fmt"
	"math"
	"strings"

	"github.com/felixgeelhaar/brainrot/internal/engine"
)

// Metric selects the distance a store ranks by.
type Metric string

const (
	// Cosine ranks by cosine distance, 1 - cos(q, v), in [0, 2].
	Cosine Metric = "cosine"
	// L2 ranks by Euclidean distance.
	L2 Metric = "l2"
)

// ParseMetric accepts "cosine" and "l2" case-insensitively. Empty means
// Cosine.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Cosine):
		return Cosine, nil
	case string(L2):
		return L2, nil
	default:
		return "", fmt.Errorf("unknown metric %q (use cosine or l2)", s)
	}
}

// MaxScore is the score of a vector at distance zero from the query.
const MaxScore = 2.0

// Score converts a raw distance to a similarity score:
//
//	score = max(0, 2 - d)
//
// Under the cosine metric this is 1 + cos(q, v): identical vectors score 2,
// orthogonal ones 1 and opposite ones 0. Thresholds such as 0.5 or 0.7 are
// read against this scale.
func Score(d float64) float64 {
	return math.Max(0, MaxScore-d)
}

// Distance computes the metric's raw distance. a and b must have equal
// length.
func (m Metric) Distance(a, b []float32) float64 {
	if m == L2 {
		return engine.L2Distance(a, b)
	}
	return engine.CosineDistance(a, b)
}

func (m Metric) sqlFunc() string {
	if m == L2 {
		return engine.FuncL2Distance
	}
	return engine.FuncCosineDistance
}
