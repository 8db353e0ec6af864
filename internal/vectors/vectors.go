// Package vectors provides the small amount of numeric machinery the
// matching service is built on: mean-combining a batch of embeddings into a
// single profile vector, and cosine similarity between two vectors.
//
// Vectors are []float32 (the wire and storage representation); arithmetic
// accumulates in float64 to limit rounding drift on high-dimensional
// embeddings.
package vectors

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoVectors is returned by Combine when the input is empty.
	ErrNoVectors = errors.New("no vectors to combine")

	// ErrDimensionMismatch is returned when two vectors that must share a
	// dimensionality do not.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrZeroMagnitude is returned by Cosine when either vector has zero
	// magnitude and the similarity is therefore undefined.
	ErrZeroMagnitude = errors.New("zero magnitude vector")
)

// Combine returns the element-wise arithmetic mean of the given vectors.
// All vectors must be non-empty and share the same dimensionality.
func Combine(vecs [][]float32) ([]float32, error) {
	if len(vecs) == 0 {
		return nil, ErrNoVectors
	}
	dim := len(vecs[0])
	if dim == 0 {
		return nil, fmt.Errorf("vector 0 is empty: %w", ErrNoVectors)
	}

	sums := make([]float64, dim)
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
		for j, f := range v {
			sums[j] += float64(f)
		}
	}

	out := make([]float32, dim)
	n := float64(len(vecs))
	for j, s := range sums {
		out[j] = float32(s / n)
	}
	return out, nil
}

// Cosine returns dot(a,b) / (|a| * |b|), in [-1, 1] for well-formed inputs.
// A zero-magnitude input is rejected rather than producing NaN.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimensions %d and %d: %w", len(a), len(b), ErrDimensionMismatch)
	}

	var dot, aSq, bSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aSq += float64(a[i]) * float64(a[i])
		bSq += float64(b[i]) * float64(b[i])
	}
	if aSq == 0 || bSq == 0 {
		return 0, ErrZeroMagnitude
	}
	return float32(dot / (math.Sqrt(aSq) * math.Sqrt(bSq))), nil
}

// Norm returns the L2 norm of a vector.
func Norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}
