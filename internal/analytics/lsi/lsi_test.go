package lsi

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

func randomScorer(t *testing.T, docs, vocab int) *ranker.Scorer {
	t.Helper()
	rng := rand.New(rand.NewPCG(5, 8))
	in := make([]index.Document, docs)
	for i := range in {
		toks := make([]string, 30)
		for j := range toks {
			toks[j] = fmt.Sprintf("w%d", rng.IntN(vocab))
		}
		in[i] = index.Document{ID: int64(i), Tokens: toks}
	}
	x, err := index.Build(in)
	require.NoError(t, err)
	return ranker.NewScorer(x)
}

func testPool(t *testing.T) *workpool.Pool {
	t.Helper()
	p, err := workpool.New(2)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func rowDistance(a mat.Matrix, i, j int) float64 {
	_, c := a.Dims()
	d := make([]float64, c)
	for k := range c {
		d[k] = a.At(i, k) - a.At(j, k)
	}
	return floats.Norm(d, 2)
}

func TestFullRankProjectionPreservesDistances(t *testing.T) {
	scorer := randomScorer(t, 12, 20)
	a, err := Matrix(scorer, testPool(t))
	require.NoError(t, err)

	p, err := Project(a, 1000)
	require.NoError(t, err)
	n, k := p.Dims()
	assert.Equal(t, 12, n)
	assert.Equal(t, 12, k, "k is clamped to min(docs, terms)")

	for i := range n {
		for j := i + 1; j < n; j++ {
			assert.InDelta(t, rowDistance(a, i, j), rowDistance(p.Rows, i, j), 1e-9)
		}
	}
}

func TestProjectIsDeterministic(t *testing.T) {
	scorer := randomScorer(t, 30, 50)
	a, err := Matrix(scorer, testPool(t))
	require.NoError(t, err)

	p1, err := Project(a, 5)
	require.NoError(t, err)
	p2, err := Project(a, 5)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p1.Rows, p2.Rows))
	assert.Len(t, p1.Singular, 5)
	assert.True(t, p1.Singular[0] >= p1.Singular[4])
}

func TestProjectRejectsEmptyInput(t *testing.T) {
	x, err := index.Build([]index.Document{{ID: 1}})
	require.NoError(t, err)
	_, err = Matrix(ranker.NewScorer(x), testPool(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrComputation))
}

func TestClampDimensions(t *testing.T) {
	assert.Equal(t, 100, ClampDimensions(0, 500, 800))
	assert.Equal(t, 3, ClampDimensions(100, 3, 800))
	assert.Equal(t, 7, ClampDimensions(7, 50, 50))
}

func TestCodecRoundTrip(t *testing.T) {
	scorer := randomScorer(t, 8, 15)
	a, err := Matrix(scorer, testPool(t))
	require.NoError(t, err)
	p, err := Project(a, 4)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, p))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, mat.Equal(p.Rows, got.Rows))
	assert.Equal(t, p.Singular, got.Singular)

	_, err = Decode(bytes.NewReader([]byte("garbage-garbage")))
	require.Error(t, err)
}
