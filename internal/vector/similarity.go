// Package vector scores and ranks embedding vectors and stores them in memory for persistence.
package vector

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrZeroMagnitude means one of the vectors has no direction. It indicates an upstream
	// embedding failure and is never ranked.
	ErrZeroMagnitude = errors.New("vector has zero magnitude")

	// ErrDimensionMismatch means the vectors have different lengths.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNonFinite means a vector holds NaN or Inf, or its norm overflowed.
	ErrNonFinite = errors.New("vector is not finite")
)

// Cosine returns dot(a,b) / (|a|*|b|), clamped to [-1, 1].
// Both magnitudes are computed first and each vector is scaled by its own norm before the
// dot product, so large components cannot overflow the product.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	na, err := norm(a)
	if err != nil {
		return 0, err
	}
	nb, err := norm(b)
	if err != nil {
		return 0, err
	}

	var dot float64
	for i := range a {
		dot += (float64(a[i]) / na) * (float64(b[i]) / nb)
	}
	return clamp(dot), nil
}

// Check reports whether v can belong to a generation of dims-dimensional
// vectors: it must have exactly dims components, a finite norm and a direction.
func Check(v []float32, dims int) error {
	if len(v) != dims {
		return fmt.Errorf("%w: got %d, generation uses %d", ErrDimensionMismatch, len(v), dims)
	}
	_, err := norm(v)
	return err
}

func norm(x []float32) (float64, error) {
	n := L2Norm(x)
	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return 0, ErrNonFinite
	case n == 0:
		return 0, ErrZeroMagnitude
	}
	return n, nil
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector, accumulated in float64.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
