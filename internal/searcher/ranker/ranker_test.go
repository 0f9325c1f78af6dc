package ranker

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
)

func threeDocs(t testing.TB) *index.Index {
	t.Helper()
	x, err := index.Build([]index.Document{
		{ID: 0, Tokens: strings.Fields("a b a")},
		{ID: 1, Tokens: strings.Fields("b c")},
		{ID: 2, Tokens: strings.Fields("a c c")},
	})
	require.NoError(t, err)
	return x
}

func TestIDFAndTFWeight(t *testing.T) {
	x := threeDocs(t)
	s := NewScorer(x)

	for id := range x.NumTerms() {
		assert.InDelta(t, math.Log(2.5), s.TermIDF(uint32(id)), 1e-12)
		assert.Greater(t, s.TermIDF(uint32(id)), 0.0)
	}
	assert.InDelta(t, 1+math.Log(2), TFWeight(2), 1e-12)
	assert.Equal(t, 1.0, TFWeight(1))
	assert.Equal(t, 0.0, TFWeight(0))
	assert.Equal(t, 0.0, IDF(3, 0))
}

func TestRankSingleTerm(t *testing.T) {
	s := NewScorer(threeDocs(t))

	got := s.Rank([]string{"a"}, nil, 0)
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].DocID)
	assert.Equal(t, int64(2), got[1].DocID)

	l := 1 + math.Log(2)
	assert.InDelta(t, l/math.Sqrt(l*l+1), got[0].Score, 1e-12)
	assert.InDelta(t, 1/math.Sqrt(l*l+1), got[1].Score, 1e-12)
}

func TestRankRepeatedTermCountsPerOccurrence(t *testing.T) {
	s := NewScorer(threeDocs(t))
	once := s.Rank([]string{"a"}, nil, 0)
	twice := s.Rank([]string{"a", "a"}, nil, 0)
	require.Len(t, twice, len(once))
	for i := range once {
		assert.InDelta(t, 2*once[i].Score, twice[i].Score, 1e-12)
	}
}

func TestRankUnknownTermsAndFilters(t *testing.T) {
	s := NewScorer(threeDocs(t))
	assert.Empty(t, s.Rank([]string{"zzz"}, nil, 0))
	assert.Empty(t, s.Rank(nil, nil, 0))

	onlyOdd := func(ord int) bool { return ord%2 == 1 }
	got := s.Rank([]string{"b", "c"}, onlyOdd, 0)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].DocID)

	limited := s.Rank([]string{"c"}, nil, 1)
	require.Len(t, limited, 1)
}

func TestRankEmptyDocumentNeverScores(t *testing.T) {
	x, err := index.Build([]index.Document{
		{ID: 1, Tokens: []string{"x"}},
		{ID: 2},
	})
	require.NoError(t, err)
	s := NewScorer(x)
	assert.Equal(t, 0.0, s.Norm(1))
	got := s.Rank([]string{"x"}, nil, 0)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].DocID)
}

func TestRankTiesBreakByDocID(t *testing.T) {
	x, err := index.Build([]index.Document{
		{ID: 9, Tokens: []string{"same"}},
		{ID: 4, Tokens: []string{"same"}},
		{ID: 6, Tokens: []string{"other"}},
	})
	require.NoError(t, err)
	got := NewScorer(x).Rank([]string{"same"}, nil, 0)
	require.Len(t, got, 2)
	assert.Equal(t, []int64{4, 9}, []int64{got[0].DocID, got[1].DocID})
}

func TestDocVectorNormMatches(t *testing.T) {
	s := NewScorer(threeDocs(t))
	for ord := range 3 {
		assert.InDelta(t, s.Norm(ord), s.DocVector(ord).Norm(), 1e-12)
	}
}

func TestKeywords(t *testing.T) {
	s := NewScorer(threeDocs(t))
	l := math.Log(2.5)

	got := s.Keywords([]int{0}, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Term)
	assert.InDelta(t, (1+math.Log(2))*l, got[0].Score, 1e-12)
	assert.Equal(t, "b", got[1].Term)

	all := s.Keywords([]int{0, 1, 2}, 2)
	require.Len(t, all, 2)
	// a and c both total (2+ln2)*idf; the tie goes to the smaller term.
	assert.Equal(t, "a", all[0].Term)
	assert.Equal(t, "c", all[1].Term)
	assert.InDelta(t, all[0].Score, all[1].Score, 1e-12)

	assert.Empty(t, s.Keywords(nil, 5))
}

func BenchmarkRank(b *testing.B) {
	rng := rand.New(rand.NewPCG(11, 13))
	docs := make([]index.Document, 5000)
	for i := range docs {
		toks := make([]string, 120)
		for j := range toks {
			toks[j] = fmt.Sprintf("t%d", rng.IntN(8000))
		}
		docs[i] = index.Document{ID: int64(i), Tokens: toks}
	}
	x, err := index.Build(docs)
	if err != nil {
		b.Fatal(err)
	}
	s := NewScorer(x)
	query := []string{"t1", "t42", "t999", "t4000"}
	for b.Loop() {
		s.Rank(query, nil, 10)
	}
}
