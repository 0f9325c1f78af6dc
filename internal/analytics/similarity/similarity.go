// Package similarity computes cosine similarity between every pair of
// speakers and prunes the result to the pairs worth storing.
//
// Candidates are found by accumulating shared-term products through an
// inverted list, so speakers with no term in common are never compared.
// Every surviving pair is then re-scored with a merge walk over both vectors
// in ascending term order, which makes sim(A, B) and sim(B, A) bitwise
// identical.
package similarity

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/vector"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
)

// Pair is an unordered speaker pair stored once with A < B.
type Pair struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// Options prunes the stored relation. A pair is kept if its score is at
// least MinScore and, when TopK > 0, it is among the TopK best neighbours of
// either of its speakers. Pairs scoring 0 are never stored.
type Options struct {
	MinScore float64
	TopK     int
}

type candidate struct {
	j     int32
	id    string
	score float64
}

func betterCandidate(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id < b.id
}

// Compute scores all pairs of the given entities. ids and vecs are aligned;
// ids must be unique. Rows are processed in parallel on pool and the result
// is sorted by (A, B).
func Compute(ids []string, vecs []vector.Sparse, opts Options, pool *workpool.Pool) ([]Pair, error) {
	if len(ids) != len(vecs) {
		return nil, fmt.Errorf("similarity: %d ids for %d vectors", len(ids), len(vecs))
	}
	n := len(ids)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return cmp.Compare(ids[a], ids[b]) })
	sortedIDs := make([]string, n)
	sortedVecs := make([]vector.Sparse, n)
	norms := make([]float64, n)
	for i, o := range order {
		if i > 0 && ids[o] == sortedIDs[i-1] {
			return nil, fmt.Errorf("similarity: duplicate entity %q", ids[o])
		}
		sortedIDs[i] = ids[o]
		sortedVecs[i] = vecs[o]
		norms[i] = vecs[o].Norm()
	}

	lists := invert(sortedVecs)
	rows := make([][]candidate, n)
	err := pool.Run(n, func(i int) {
		rows[i] = scoreRow(i, sortedIDs, sortedVecs, norms, lists, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("scoring similarity rows: %w", err)
	}

	seen := make(map[[2]int32]struct{})
	var pairs []Pair
	for i, row := range rows {
		for _, c := range row {
			a, b := int32(i), c.j
			if b < a {
				a, b = b, a
			}
			key := [2]int32{a, b}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			pairs = append(pairs, Pair{A: sortedIDs[a], B: sortedIDs[b], Score: c.score})
		}
	}
	slices.SortFunc(pairs, func(x, y Pair) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
	return pairs, nil
}

type entry struct {
	entity int32
	val    float64
}

// invert builds term id -> (entity, weight) lists.
func invert(vecs []vector.Sparse) map[uint32][]entry {
	lists := make(map[uint32][]entry)
	for i, v := range vecs {
		for k, id := range v.IDs {
			if v.Vals[k] == 0 {
				continue
			}
			lists[id] = append(lists[id], entry{entity: int32(i), val: v.Vals[k]})
		}
	}
	return lists
}

// scoreRow returns the neighbours of entity i that survive pruning.
func scoreRow(i int, ids []string, vecs []vector.Sparse, norms []float64, lists map[uint32][]entry, opts Options) []candidate {
	if norms[i] == 0 {
		return nil
	}
	touched := make(map[int32]struct{})
	v := vecs[i]
	for k, id := range v.IDs {
		if v.Vals[k] == 0 {
			continue
		}
		for _, e := range lists[id] {
			if int(e.entity) != i {
				touched[e.entity] = struct{}{}
			}
		}
	}

	sel := merger.NewSelector(opts.TopK, betterCandidate)
	for j := range touched {
		s := score(i, int(j), vecs, norms)
		if s <= 0 || s < opts.MinScore {
			continue
		}
		sel.Push(candidate{j: j, id: ids[j], score: s})
	}
	return sel.Result()
}

// score is the cosine of entities i and j, computed in canonical order.
func score(i, j int, vecs []vector.Sparse, norms []float64) float64 {
	if j < i {
		i, j = j, i
	}
	if norms[i] == 0 || norms[j] == 0 {
		return 0
	}
	s := vector.Dot(vecs[i], vecs[j]) / (norms[i] * norms[j])
	return min(s, 1)
}
