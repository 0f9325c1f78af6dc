package ranker

import (
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/merger"
)

// TermScore is one ranked keyword.
type TermScore struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// betterTerm orders by score descending, then term ascending.
func betterTerm(a, b TermScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Term < b.Term
}

// Keywords sums tf_weight*idf per term over the documents at the given
// ordinals, with document frequency taken from the full corpus, and returns
// the topN terms. topN <= 0 returns every term present in the subset.
func (s *Scorer) Keywords(ords []int, topN int) []TermScore {
	sums := make(map[uint32]float64)
	for _, ord := range ords {
		for _, tf := range s.idx.Forward(ord) {
			sums[tf.Term] += TFWeight(tf.Freq) * s.idf[tf.Term]
		}
	}
	sel := merger.NewSelector(topN, betterTerm)
	for id, score := range sums {
		sel.Push(TermScore{Term: s.idx.Term(id), Score: score})
	}
	return sel.Result()
}
