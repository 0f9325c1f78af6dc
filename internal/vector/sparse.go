// Package vector implements the sparse term-weight vectors shared by the
// scorer, the entity aggregator and the similarity engine.
package vector

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Sparse is a vector over term ids. IDs are strictly ascending and Vals is
// aligned with IDs.
type Sparse struct {
	IDs  []uint32  `json:"ids"`
	Vals []float64 `json:"vals"`
}

// Len returns the number of non-zero entries.
func (s Sparse) Len() int { return len(s.IDs) }

// Norm returns the L2 norm.
func (s Sparse) Norm() float64 {
	if len(s.Vals) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(s.Vals, s.Vals))
}

// Normalized returns a unit-length copy of s, or the zero vector if s has no
// magnitude.
func (s Sparse) Normalized() Sparse {
	n := s.Norm()
	if n == 0 {
		return Sparse{}
	}
	out := Sparse{
		IDs:  slices.Clone(s.IDs),
		Vals: slices.Clone(s.Vals),
	}
	floats.Scale(1/n, out.Vals)
	return out
}

// Get returns the weight stored for id, or 0.
func (s Sparse) Get(id uint32) float64 {
	if i, ok := slices.BinarySearch(s.IDs, id); ok {
		return s.Vals[i]
	}
	return 0
}

// Dot computes the inner product by walking both vectors in ascending id
// order. The summation order depends only on the shared ids, so Dot(a, b)
// and Dot(b, a) are bitwise equal.
func Dot(a, b Sparse) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.IDs) && j < len(b.IDs) {
		switch {
		case a.IDs[i] == b.IDs[j]:
			sum += a.Vals[i] * b.Vals[j]
			i++
			j++
		case a.IDs[i] < b.IDs[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Cosine returns the cosine similarity of a and b; 0 when either is zero.
func Cosine(a, b Sparse) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Scatter writes the entries of s into dst, a dense row indexed by term id.
// Positions not in s are left untouched.
func (s Sparse) Scatter(dst []float64) {
	for i, id := range s.IDs {
		dst[id] = s.Vals[i]
	}
}
