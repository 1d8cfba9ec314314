// Package vector provides similarity helpers for dense float32 vectors.
package vector

import "math"

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
// Products are accumulated in float64.
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

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of x and the original norm.
// When the norm is zero the copy is all zeros and ok is false.
func Normalize(x []float32) (unit []float32, norm float64, ok bool) {
	unit = make([]float32, len(x))
	norm = L2Norm(x)
	if norm == 0 {
		return unit, 0, false
	}
	for i, v := range x {
		unit[i] = float32(float64(v) / norm)
	}
	return unit, norm, true
}

// Mean returns the elementwise mean of vecs (sum then divide by count).
// All vectors must share the length of the first; nil is returned for an empty input.
func Mean(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	sum := make([]float64, dim)
	for _, v := range vecs {
		for j := 0; j < dim && j < len(v); j++ {
			sum[j] += float64(v[j])
		}
	}
	out := make([]float32, dim)
	n := float64(len(vecs))
	for j := range sum {
		out[j] = float32(sum[j] / n)
	}
	return out
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 if either is zero
// or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return InnerProduct(a, b) / (na * nb)
}
