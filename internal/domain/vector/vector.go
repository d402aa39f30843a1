// Package vector holds the float32 vector math used for centroid routing.
package vector

import "math"

// Dot returns the inner product of a and b. Lengths must match.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Normalize returns v scaled to unit length. A zero vector is returned as a copy.
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

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Accumulator sums vectors of a fixed dimension in float64.
type Accumulator struct {
	sum   []float64
	count int
}

// NewAccumulator creates an accumulator for vectors of length dim.
func NewAccumulator(dim int) *Accumulator {
	return &Accumulator{sum: make([]float64, dim)}
}

// Add adds v. Vectors of the wrong length are ignored and reported false.
func (a *Accumulator) Add(v []float32) bool {
	if len(v) != len(a.sum) {
		return false
	}
	for i, x := range v {
		a.sum[i] += float64(x)
	}
	a.count++
	return true
}

// Count returns the number of vectors added.
func (a *Accumulator) Count() int { return a.count }

// UnitMean returns the mean of the added vectors renormalized to unit length.
func (a *Accumulator) UnitMean() []float32 {
	mean := make([]float32, len(a.sum))
	if a.count == 0 {
		return mean
	}
	for i, s := range a.sum {
		mean[i] = float32(s / float64(a.count))
	}
	return Normalize(mean)
}

// Clamp01 limits x to [0,1].
func Clamp01(x float64) float64 {
	switch {
	case x < 0 || math.IsNaN(x):
		return 0
	case x > 1:
		return 1
	}
	return x
}
