package cluster

import (
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Point is one document in the 2-D display embedding.
type Point struct {
	DocID   int64   `json:"doc_id"`
	Cluster int     `json:"cluster"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Embed projects the rows of points onto their first two principal
// components and returns at most maxPerCluster points per cluster, sampled
// with a generator seeded from (seed, cluster). maxPerCluster <= 0 keeps
// every point. docIDs and assign are aligned with the rows.
func Embed(points *mat.Dense, assign []int, docIDs []int64, maxPerCluster int, seed uint64) ([]Point, error) {
	n, _ := points.Dims()
	if n != len(assign) || n != len(docIDs) {
		return nil, apperrors.Consistencyf("embedding %d rows with %d assignments and %d ids", n, len(assign), len(docIDs))
	}
	xy, err := pca2(points)
	if err != nil {
		return nil, err
	}

	byCluster := make(map[int][]int)
	var clusters []int
	for i, c := range assign {
		if _, ok := byCluster[c]; !ok {
			clusters = append(clusters, c)
		}
		byCluster[c] = append(byCluster[c], i)
	}
	slices.Sort(clusters)

	var out []Point
	for _, c := range clusters {
		rows := byCluster[c]
		if maxPerCluster > 0 && len(rows) > maxPerCluster {
			rows = sample(rows, maxPerCluster, rand.New(rand.NewPCG(seed, uint64(c))))
		}
		for _, i := range rows {
			out = append(out, Point{DocID: docIDs[i], Cluster: c, X: xy[i][0], Y: xy[i][1]})
		}
	}
	return out, nil
}

// pca2 returns the coordinates of every row on the first two principal
// axes. With a single dimension the second coordinate is 0.
func pca2(points *mat.Dense) ([][2]float64, error) {
	n, d := points.Dims()
	out := make([][2]float64, n)
	if n < 2 {
		return out, nil
	}
	var pc stat.PC
	if ok := pc.PrincipalComponents(points, nil); !ok {
		return nil, apperrors.Computationf("principal component analysis of %dx%d projection failed", n, d)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, axes := vecs.Dims()
	axes = min(axes, 2)

	means := make([]float64, d)
	for j := range d {
		means[j] = stat.Mean(mat.Col(nil, j, points), nil)
	}
	for i := range n {
		row := points.RawRowView(i)
		for a := range axes {
			var s float64
			for j := range d {
				s += (row[j] - means[j]) * vecs.At(j, a)
			}
			out[i][a] = s
		}
	}
	return out, nil
}

// sample picks k of rows without replacement and returns them in their
// original order.
func sample(rows []int, k int, rng *rand.Rand) []int {
	picked := slices.Clone(rows)
	for i := range k {
		j := i + rng.IntN(len(picked)-i)
		picked[i], picked[j] = picked[j], picked[i]
	}
	picked = picked[:k]
	slices.Sort(picked)
	return picked
}
