// Package ranker implements TF-IDF weighting over a frozen index: cosine
// ranking of free-text queries and keyword extraction for document subsets.
//
//	tf_weight = 1 + ln(raw_tf)
//	idf       = ln(1 + N/df)
//
// A query score is the sum of tf_weight*idf over the query terms a document
// contains, divided by the L2 norm of the document's full TF-IDF vector.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/vector"
)

type ScoredDoc struct {
	DocID int64   `json:"doc_id"`
	Score float64 `json:"score"`
}

// betterDoc orders by score descending, then document id ascending.
func betterDoc(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// TFWeight is the sublinear term-frequency weight; 0 for an absent term.
func TFWeight(rawTF uint32) float64 {
	if rawTF == 0 {
		return 0
	}
	return 1 + math.Log(float64(rawTF))
}

// IDF is ln(1 + N/df); 0 when df is 0.
func IDF(totalDocs, docFreq int) float64 {
	if docFreq <= 0 {
		return 0
	}
	return math.Log(1 + float64(totalDocs)/float64(docFreq))
}

// Scorer holds per-snapshot IDF values and document norms. It is read-only
// after construction.
type Scorer struct {
	idx   *index.Index
	idf   []float64
	norms []float64
}

// NewScorer precomputes the IDF of every term and the TF-IDF norm of every
// document.
func NewScorer(idx *index.Index) *Scorer {
	n := idx.NumDocs()
	idf := make([]float64, idx.NumTerms())
	for id := range idf {
		idf[id] = IDF(n, idx.DocFreq(uint32(id)))
	}
	s := &Scorer{idx: idx, idf: idf, norms: make([]float64, n)}
	for ord := range n {
		var sq float64
		for _, tf := range idx.Forward(ord) {
			w := TFWeight(tf.Freq) * idf[tf.Term]
			sq += w * w
		}
		s.norms[ord] = math.Sqrt(sq)
	}
	return s
}

// Index returns the index the scorer was built from.
func (s *Scorer) Index() *index.Index { return s.idx }

// TermIDF returns the IDF of a term id.
func (s *Scorer) TermIDF(id uint32) float64 { return s.idf[id] }

// Norm returns the L2 norm of the document's TF-IDF vector.
func (s *Scorer) Norm(ord int) float64 { return s.norms[ord] }

// DocVector returns the TF-IDF vector of the document at ordinal ord.
func (s *Scorer) DocVector(ord int) vector.Sparse {
	fw := s.idx.Forward(ord)
	v := vector.Sparse{
		IDs:  make([]uint32, len(fw)),
		Vals: make([]float64, len(fw)),
	}
	for i, tf := range fw {
		v.IDs[i] = tf.Term
		v.Vals[i] = TFWeight(tf.Freq) * s.idf[tf.Term]
	}
	return v
}

// Rank scores every document containing at least one query term over the
// full corpus, then keeps those accept admits (nil admits all). Unknown terms
// contribute nothing; a repeated term contributes once per occurrence.
// Documents scoring 0 are dropped. limit <= 0 returns every hit.
func (s *Scorer) Rank(terms []string, accept func(ord int) bool, limit int) []ScoredDoc {
	scores := make(map[int32]float64)
	for _, term := range terms {
		id, ok := s.idx.TermID(term)
		if !ok {
			continue
		}
		idf := s.idf[id]
		for _, p := range s.idx.Postings(id) {
			scores[p.Doc] += TFWeight(p.Freq) * idf
		}
	}

	sel := merger.NewSelector(limit, betterDoc)
	for ord, raw := range scores {
		norm := s.norms[ord]
		if norm == 0 || raw == 0 {
			continue
		}
		if accept != nil && !accept(int(ord)) {
			continue
		}
		sel.Push(ScoredDoc{
			DocID: s.idx.Doc(int(ord)).ID,
			Score: raw / norm,
		})
	}
	return sel.Result()
}
