// Package lsi projects the document-term TF-IDF matrix into a K-dimensional
// latent semantic space with a truncated singular value decomposition.
//
// Each document's coordinates are its row of U_k scaled by the top K
// singular values. Singular vectors are only defined up to sign, so callers
// must rely on distances between projected documents, never on the sign of
// a coordinate.
package lsi

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// DefaultDimensions is used when the configured dimension count is not
// positive.
const DefaultDimensions = 100

// Projection is the latent representation of every document, row i being
// the document at ordinal i.
type Projection struct {
	Rows     *mat.Dense
	Singular []float64
}

// Dims returns the number of documents and dimensions.
func (p *Projection) Dims() (docs, k int) {
	return p.Rows.Dims()
}

// Row returns a copy of the coordinates of document ord.
func (p *Projection) Row(ord int) []float64 {
	_, k := p.Rows.Dims()
	out := make([]float64, k)
	copy(out, p.Rows.RawRowView(ord))
	return out
}

// Matrix assembles the dense document x term TF-IDF matrix. Rows are filled
// in parallel on pool.
func Matrix(scorer *ranker.Scorer, pool *workpool.Pool) (*mat.Dense, error) {
	idx := scorer.Index()
	n, m := idx.NumDocs(), idx.NumTerms()
	if n == 0 || m == 0 {
		return nil, apperrors.Computationf("cannot build a %dx%d document-term matrix", n, m)
	}
	a := mat.NewDense(n, m, nil)
	err := pool.Run(n, func(ord int) {
		scorer.DocVector(ord).Scatter(a.RawRowView(ord))
	})
	if err != nil {
		return nil, fmt.Errorf("filling document-term matrix: %w", err)
	}
	return a, nil
}

// ClampDimensions bounds k to the rank limit of an n x m matrix.
func ClampDimensions(k, n, m int) int {
	if k <= 0 {
		k = DefaultDimensions
	}
	return min(k, n, m)
}

// Project factorises a and keeps the top k singular triplets. k is clamped
// to min(rows, cols).
func Project(a mat.Matrix, k int) (*Projection, error) {
	n, m := a.Dims()
	if n == 0 || m == 0 {
		return nil, apperrors.Computationf("cannot factorise a %dx%d matrix", n, m)
	}
	k = ClampDimensions(k, n, m)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, apperrors.Computationf("singular value decomposition of %dx%d matrix did not converge", n, m)
	}
	values := svd.Values(nil)
	var u mat.Dense
	svd.UTo(&u)

	rows := mat.NewDense(n, k, nil)
	for i := range n {
		src := u.RawRowView(i)
		dst := rows.RawRowView(i)
		for j := range k {
			dst[j] = src[j] * values[j]
		}
	}
	return &Projection{Rows: rows, Singular: values[:k]}, nil
}
