package vector

import (
	"slices"
)

// Accumulator sums sparse vectors. It is not safe for concurrent use.
type Accumulator struct {
	sums  map[uint32]float64
	count int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{sums: make(map[uint32]float64)}
}

// Add adds scale*v.
func (a *Accumulator) Add(v Sparse, scale float64) {
	for i, id := range v.IDs {
		a.sums[id] += scale * v.Vals[i]
	}
	a.count++
}

// Count returns how many vectors were added.
func (a *Accumulator) Count() int { return a.count }

// Sum returns the accumulated vector with ids ascending.
func (a *Accumulator) Sum() Sparse {
	return a.scaled(1)
}

// Mean returns the sum divided by the number of added vectors, or the zero
// vector if nothing was added.
func (a *Accumulator) Mean() Sparse {
	if a.count == 0 {
		return Sparse{}
	}
	return a.scaled(1 / float64(a.count))
}

func (a *Accumulator) scaled(f float64) Sparse {
	ids := make([]uint32, 0, len(a.sums))
	for id, v := range a.sums {
		if v != 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	out := Sparse{IDs: ids, Vals: make([]float64, len(ids))}
	for i, id := range ids {
		out.Vals[i] = a.sums[id] * f
	}
	return out
}
