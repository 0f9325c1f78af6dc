// Package cluster partitions projected documents into themes with k-means
// and computes the per-theme analytics served on demand.
package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Config controls a k-means run. Zero values take the defaults below.
type Config struct {
	Clusters      int
	Restarts      int
	MaxIterations int
	// Tolerance is relative to the mean per-dimension variance of the
	// points; a run stops once centroids move less than that in total.
	Tolerance float64
	Seed      uint64
}

const (
	DefaultClusters      = 100
	DefaultRestarts      = 10
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
	DefaultSeed          = 42
)

func (c Config) withDefaults() Config {
	if c.Clusters <= 0 {
		c.Clusters = DefaultClusters
	}
	if c.Restarts <= 0 {
		c.Restarts = DefaultRestarts
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	return c
}

// Result is the winning run. Assign[i] is the cluster of point i; every
// cluster in [0, K) has at least one point.
type Result struct {
	K          int         `json:"k"`
	Assign     []int       `json:"assign"`
	Centroids  [][]float64 `json:"-"`
	Inertia    float64     `json:"inertia"`
	Iterations int         `json:"iterations"`
	Restart    int         `json:"restart"`
}

// Members returns the point indices of each cluster, ascending.
func (r *Result) Members() [][]int {
	out := make([][]int, r.K)
	for i, c := range r.Assign {
		out[c] = append(out[c], i)
	}
	return out
}

// KMeans clusters the rows of points. Clusters is clamped to the number of
// rows. Each restart is seeded k-means++ from PCG(Seed, restart) and runs
// Lloyd iterations; restarts run in parallel and the lowest inertia wins,
// ties going to the lower restart index.
func KMeans(ctx context.Context, points *mat.Dense, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	n, _ := points.Dims()
	if n == 0 {
		return nil, apperrors.Computationf("no points to cluster")
	}
	k := min(cfg.Clusters, n)
	tol := cfg.Tolerance * meanVariance(points)

	results := make([]*Result, cfg.Restarts)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for r := range cfg.Restarts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(r)))
			res := lloyd(points, k, cfg.MaxIterations, tol, rng)
			res.Restart = r
			results[r] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("k-means restarts: %w", err)
	}

	best := results[0]
	for _, res := range results[1:] {
		if res.Inertia < best.Inertia {
			best = res
		}
	}
	if math.IsNaN(best.Inertia) || math.IsInf(best.Inertia, 0) {
		return nil, apperrors.Computationf("k-means produced non-finite inertia")
	}
	return best, nil
}

func lloyd(points *mat.Dense, k, maxIter int, tol float64, rng *rand.Rand) *Result {
	n, d := points.Dims()
	centroids := seedPlusPlus(points, k, rng)
	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	sizes := make([]int, k)

	iter := 0
	for iter < maxIter {
		iter++
		changed := assignNearest(points, centroids, assign)
		fixEmpty(points, centroids, assign, sizes)
		shift := updateCentroids(points, assign, centroids, d)
		if !changed || shift <= tol {
			break
		}
	}

	var inertia float64
	for i := range n {
		inertia += sqDist(points.RawRowView(i), centroids[assign[i]])
	}
	return &Result{
		K:          k,
		Assign:     assign,
		Centroids:  centroids,
		Inertia:    inertia,
		Iterations: iter,
	}
}

// seedPlusPlus picks k initial centroids: the first uniformly, each next one
// with probability proportional to its squared distance to the nearest
// centroid chosen so far.
func seedPlusPlus(points *mat.Dense, k int, rng *rand.Rand) [][]float64 {
	n, _ := points.Dims()
	centroids := make([][]float64, 0, k)
	first := rng.IntN(n)
	centroids = append(centroids, cloneRow(points, first))

	dist := make([]float64, n)
	for i := range n {
		dist[i] = sqDist(points.RawRowView(i), centroids[0])
	}
	for len(centroids) < k {
		var total float64
		for _, v := range dist {
			total += v
		}
		next := 0
		if total == 0 {
			next = rng.IntN(n)
		} else {
			target := rng.Float64() * total
			var acc float64
			next = n - 1
			for i, v := range dist {
				acc += v
				if acc > target {
					next = i
					break
				}
			}
		}
		c := cloneRow(points, next)
		centroids = append(centroids, c)
		for i := range n {
			if dd := sqDist(points.RawRowView(i), c); dd < dist[i] {
				dist[i] = dd
			}
		}
	}
	return centroids
}

// assignNearest moves every point to its nearest centroid, ties going to
// the lowest cluster id, and reports whether any assignment changed.
func assignNearest(points *mat.Dense, centroids [][]float64, assign []int) bool {
	changed := false
	for i := range assign {
		row := points.RawRowView(i)
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if dd := sqDist(row, centroid); dd < bestDist {
				best, bestDist = c, dd
			}
		}
		if assign[i] != best {
			assign[i] = best
			changed = true
		}
	}
	return changed
}

// fixEmpty gives every empty cluster the point farthest from its own
// centroid, taken from a cluster that can spare it.
func fixEmpty(points *mat.Dense, centroids [][]float64, assign []int, sizes []int) {
	clear(sizes)
	for _, c := range assign {
		sizes[c]++
	}
	for c := range sizes {
		if sizes[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, owner := range assign {
			if sizes[owner] < 2 {
				continue
			}
			if dd := sqDist(points.RawRowView(i), centroids[owner]); dd > farDist {
				far, farDist = i, dd
			}
		}
		if far < 0 {
			return
		}
		sizes[assign[far]]--
		assign[far] = c
		sizes[c]++
		copy(centroids[c], points.RawRowView(far))
	}
}

// updateCentroids recomputes every centroid as the mean of its points and
// returns the total squared centroid movement.
func updateCentroids(points *mat.Dense, assign []int, centroids [][]float64, d int) float64 {
	k := len(centroids)
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, d)
	}
	counts := make([]int, k)
	for i, c := range assign {
		row := points.RawRowView(i)
		for j, v := range row {
			sums[c][j] += v
		}
		counts[c]++
	}
	var shift float64
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		inv := 1 / float64(counts[c])
		for j := range sums[c] {
			sums[c][j] *= inv
		}
		shift += sqDist(centroids[c], sums[c])
		centroids[c] = sums[c]
	}
	return shift
}

func meanVariance(points *mat.Dense) float64 {
	n, d := points.Dims()
	if n == 0 || d == 0 {
		return 0
	}
	var total float64
	for j := range d {
		var mean float64
		for i := range n {
			mean += points.At(i, j)
		}
		mean /= float64(n)
		for i := range n {
			dv := points.At(i, j) - mean
			total += dv * dv
		}
	}
	return total / float64(n*d)
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func cloneRow(points *mat.Dense, i int) []float64 {
	row := points.RawRowView(i)
	out := make([]float64, len(row))
	copy(out, row)
	return out
}
