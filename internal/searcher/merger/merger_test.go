package merger

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

type scored struct {
	id    int
	score float64
}

func better(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}

func TestTopKMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	items := make([]scored, 500)
	for i := range items {
		items[i] = scored{id: i, score: float64(rng.IntN(50))}
	}
	full := slices.Clone(items)
	slices.SortFunc(full, func(a, b scored) int {
		switch {
		case better(a, b):
			return -1
		case better(b, a):
			return 1
		}
		return 0
	})

	for _, k := range []int{1, 7, 100, 500, 1000} {
		got := TopK(items, k, better)
		want := full[:min(k, len(full))]
		assert.Equal(t, want, got, "k=%d", k)
	}
}

func TestTopKBreaksTiesByID(t *testing.T) {
	items := []scored{{3, 1}, {1, 1}, {2, 5}, {0, 1}}
	assert.Equal(t, []scored{{2, 5}, {0, 1}}, TopK(items, 2, better))
}

func TestSelectorUnbounded(t *testing.T) {
	s := NewSelector(0, better)
	for _, x := range []scored{{1, 0.2}, {2, 0.9}, {3, 0.5}} {
		s.Push(x)
	}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []scored{{2, 0.9}, {3, 0.5}, {1, 0.2}}, s.Result())
	assert.Equal(t, 0, s.Len())
}
