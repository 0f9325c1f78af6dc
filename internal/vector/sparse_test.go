package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDotIsSymmetric(t *testing.T) {
	a := Sparse{IDs: []uint32{1, 4, 9, 12}, Vals: []float64{0.1, 0.7, 0.3, 1.9}}
	b := Sparse{IDs: []uint32{0, 4, 9, 20}, Vals: []float64{5, 0.11, 0.13, 1}}

	assert.Equal(t, Dot(a, b), Dot(b, a))
	assert.InDelta(t, 0.7*0.11+0.3*0.13, Dot(a, b), 1e-15)
}

func TestCosineZeroVector(t *testing.T) {
	a := Sparse{IDs: []uint32{1}, Vals: []float64{2}}
	assert.Equal(t, 0.0, Cosine(a, Sparse{}))
	assert.Equal(t, 0.0, Cosine(Sparse{}, Sparse{}))
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-12)
}

func TestNormalized(t *testing.T) {
	a := Sparse{IDs: []uint32{0, 3}, Vals: []float64{3, 4}}
	n := a.Normalized()
	assert.InDelta(t, 1.0, n.Norm(), 1e-12)
	assert.InDelta(t, 0.6, n.Get(0), 1e-12)
	assert.Equal(t, 0.0, n.Get(1))
	assert.Equal(t, []float64{3, 4}, a.Vals, "input must not be modified")

	assert.Equal(t, 0, Sparse{}.Normalized().Len())
}

func TestScatter(t *testing.T) {
	a := Sparse{IDs: []uint32{1, 3}, Vals: []float64{0.5, 2}}
	row := make([]float64, 5)
	a.Scatter(row)
	assert.Equal(t, []float64{0, 0.5, 0, 2, 0}, row)
}

func TestAccumulatorMean(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(Sparse{IDs: []uint32{0, 2}, Vals: []float64{1, 1}}, 1)
	acc.Add(Sparse{IDs: []uint32{2, 5}, Vals: []float64{3, 4}}, 1)

	mean := acc.Mean()
	require.Equal(t, []uint32{0, 2, 5}, mean.IDs)
	assert.InDeltaSlice(t, []float64{0.5, 2, 2}, mean.Vals, 1e-12)
	assert.Equal(t, 2, acc.Count())

	sum := acc.Sum()
	assert.InDeltaSlice(t, []float64{1, 4, 4}, sum.Vals, 1e-12)
}

func TestAccumulatorEmpty(t *testing.T) {
	mean := NewAccumulator().Mean()
	assert.Equal(t, 0, mean.Len())
	assert.False(t, math.IsNaN(mean.Norm()))
}
