package similarity

import (
	"cmp"
	"slices"
)

// Neighbor is one ranked similar speaker.
type Neighbor struct {
	Speaker string  `json:"speaker"`
	Score   float64 `json:"score"`
}

// Graph answers neighbour queries over a stored pair set.
type Graph struct {
	adj   map[string][]Neighbor
	pairs int
}

// NewGraph indexes pairs by speaker. Each adjacency list is sorted by score
// descending, then speaker ascending.
func NewGraph(pairs []Pair) *Graph {
	adj := make(map[string][]Neighbor)
	for _, p := range pairs {
		adj[p.A] = append(adj[p.A], Neighbor{Speaker: p.B, Score: p.Score})
		adj[p.B] = append(adj[p.B], Neighbor{Speaker: p.A, Score: p.Score})
	}
	for _, list := range adj {
		slices.SortFunc(list, func(a, b Neighbor) int {
			if a.Score != b.Score {
				return cmp.Compare(b.Score, a.Score)
			}
			return cmp.Compare(a.Speaker, b.Speaker)
		})
	}
	return &Graph{adj: adj, pairs: len(pairs)}
}

// Neighbors returns the k most similar speakers of speaker; k <= 0 returns
// all of them. An unknown speaker has no neighbours.
func (g *Graph) Neighbors(speaker string, k int) []Neighbor {
	list := g.adj[speaker]
	if k > 0 && len(list) > k {
		list = list[:k]
	}
	return slices.Clone(list)
}

// Pairs returns the number of stored pairs.
func (g *Graph) Pairs() int { return g.pairs }

// Neighbors is a convenience for one-off queries over a pair slice.
func Neighbors(pairs []Pair, speaker string, k int) []Neighbor {
	return NewGraph(pairs).Neighbors(speaker, k)
}
