package domain

import "math"

// NormalizeVector returns v scaled to unit length. A zero vector is
// returned unchanged so the operation is total. Vectors that are already
// unit-norm round-trip within floating tolerance.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// DotProduct computes the inner product of two vectors. For unit-norm
// vectors this equals their cosine similarity. Mismatched lengths score
// zero rather than panicking; callers validate dimensions on write.
func DotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
