package similarity

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/vector"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
)

func pool(t testing.TB) *workpool.Pool {
	t.Helper()
	p, err := workpool.New(3)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func sv(pairs ...float64) vector.Sparse {
	var v vector.Sparse
	for i := 0; i < len(pairs); i += 2 {
		v.IDs = append(v.IDs, uint32(pairs[i]))
		v.Vals = append(v.Vals, pairs[i+1])
	}
	return v
}

func fromDense(d []float64) vector.Sparse {
	var out vector.Sparse
	for id, v := range d {
		if v != 0 {
			out.IDs = append(out.IDs, uint32(id))
			out.Vals = append(out.Vals, v)
		}
	}
	return out
}

func randomVectors(n, vocab int, seed uint64) ([]string, []vector.Sparse) {
	rng := rand.New(rand.NewPCG(seed, seed))
	ids := make([]string, n)
	vecs := make([]vector.Sparse, n)
	for i := range n {
		ids[i] = fmt.Sprintf("speaker-%03d", (i*37)%n)
		dense := make([]float64, vocab)
		for range 8 {
			dense[rng.IntN(vocab)] = rng.Float64()
		}
		vecs[i] = fromDense(dense).Normalized()
	}
	return ids, vecs
}

func TestComputeBasic(t *testing.T) {
	ids := []string{"carol", "alice", "bob", "zed"}
	vecs := []vector.Sparse{
		sv(0, 1),
		sv(0, 1, 1, 1),
		sv(1, 1),
		{},
	}
	pairs, err := Compute(ids, vecs, Options{}, pool(t))
	require.NoError(t, err)

	require.Len(t, pairs, 2)
	assert.Equal(t, "alice", pairs[0].A)
	assert.Equal(t, "bob", pairs[0].B)
	assert.InDelta(t, 1/math.Sqrt2, pairs[0].Score, 1e-12)
	assert.Equal(t, "alice", pairs[1].A)
	assert.Equal(t, "carol", pairs[1].B)
	for _, p := range pairs {
		assert.Less(t, p.A, p.B)
		assert.NotEqual(t, "zed", p.A)
		assert.NotEqual(t, "zed", p.B)
	}
}

func TestComputeIsSymmetricAndReproducible(t *testing.T) {
	ids, vecs := randomVectors(120, 60, 1)
	a, err := Compute(ids, vecs, Options{}, pool(t))
	require.NoError(t, err)
	b, err := Compute(ids, vecs, Options{}, pool(t))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	byID := make(map[string]vector.Sparse)
	for i, id := range ids {
		byID[id] = vecs[i]
	}
	for _, p := range a {
		assert.Less(t, p.A, p.B)
		assert.Equal(t, vector.Cosine(byID[p.A], byID[p.B]), vector.Cosine(byID[p.B], byID[p.A]))
		assert.InDelta(t, vector.Cosine(byID[p.A], byID[p.B]), p.Score, 1e-12)
	}
}

func TestComputeMatchesBruteForce(t *testing.T) {
	ids, vecs := randomVectors(40, 30, 2)
	pairs, err := Compute(ids, vecs, Options{}, pool(t))
	require.NoError(t, err)

	want := 0
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if vector.Cosine(vecs[i], vecs[j]) > 0 {
				want++
			}
		}
	}
	assert.Len(t, pairs, want)
}

func TestComputeMinScore(t *testing.T) {
	ids, vecs := randomVectors(60, 40, 3)
	pairs, err := Compute(ids, vecs, Options{MinScore: 0.3}, pool(t))
	require.NoError(t, err)
	for _, p := range pairs {
		assert.GreaterOrEqual(t, p.Score, 0.3)
	}
}

func TestComputeTopKUnion(t *testing.T) {
	ids, vecs := randomVectors(80, 25, 4)
	all, err := Compute(ids, vecs, Options{}, pool(t))
	require.NoError(t, err)
	pruned, err := Compute(ids, vecs, Options{TopK: 3}, pool(t))
	require.NoError(t, err)

	full := NewGraph(all)
	kept := make(map[[2]string]bool)
	for _, p := range pruned {
		kept[[2]string{p.A, p.B}] = true
	}
	for _, p := range all {
		inTop := func(of, other string) bool {
			for _, n := range full.Neighbors(of, 3) {
				if n.Speaker == other {
					return true
				}
			}
			return false
		}
		want := inTop(p.A, p.B) || inTop(p.B, p.A)
		assert.Equal(t, want, kept[[2]string{p.A, p.B}], "%s|%s", p.A, p.B)
	}
	for _, id := range ids {
		assert.GreaterOrEqual(t, len(NewGraph(pruned).Neighbors(id, 0)), min(3, len(full.Neighbors(id, 0))))
	}
}

func TestComputeRejectsDuplicates(t *testing.T) {
	_, err := Compute([]string{"a", "a"}, []vector.Sparse{{}, {}}, Options{}, pool(t))
	require.Error(t, err)
}

func TestNeighbors(t *testing.T) {
	pairs := []Pair{
		{A: "alice", B: "bob", Score: 0.5},
		{A: "alice", B: "carol", Score: 0.9},
		{A: "alice", B: "dave", Score: 0.5},
		{A: "bob", B: "carol", Score: 0.1},
	}
	got := Neighbors(pairs, "alice", 2)
	assert.Equal(t, []Neighbor{{"carol", 0.9}, {"bob", 0.5}}, got)

	got = Neighbors(pairs, "carol", 0)
	assert.Equal(t, []Neighbor{{"alice", 0.9}, {"bob", 0.1}}, got)

	assert.Empty(t, Neighbors(pairs, "nobody", 5))
}

func TestZeroVectorNeverOutranks(t *testing.T) {
	ids := []string{"a", "b", "zero"}
	vecs := []vector.Sparse{sv(0, 1, 1, 0.1), sv(1, 1), {}}
	pairs, err := Compute(ids, vecs, Options{}, pool(t))
	require.NoError(t, err)
	got := NewGraph(pairs).Neighbors("a", 0)
	require.NotEmpty(t, got)
	for _, n := range got {
		assert.NotEqual(t, "zero", n.Speaker)
	}
	assert.Empty(t, NewGraph(pairs).Neighbors("zero", 0))
}

func BenchmarkCompute(b *testing.B) {
	ids, vecs := randomVectors(1500, 3000, 5)
	p := pool(b)
	for b.Loop() {
		if _, err := Compute(ids, vecs, Options{TopK: 10}, p); err != nil {
			b.Fatal(err)
		}
	}
}
