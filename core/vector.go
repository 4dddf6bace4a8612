package core

import "math"

// Dot computes the dot product of two vectors over their common prefix.
func Dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length are compared as if the shorter one were zero padded. A zero
// vector yields 0.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na < 1e-8 || nb < 1e-8 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Normalize returns a unit-length copy of v. A zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Fit pads with zeros or truncates v to exactly dims entries.
func Fit(v []float32, dims int) []float32 {
	out := make([]float32, dims)
	copy(out, v)
	return out
}

// Clamp01 limits x to [0, 1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
