// Package drift measures how an entity's vocabulary moves from one year to
// the next.
package drift

import (
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/vector"
)

// Point is the drift of one year against the previous year the entity
// spoke in.
type Point struct {
	Year     int     `json:"year"`
	PrevYear int     `json:"prev_year"`
	Drift    float64 `json:"drift"`
}

// Compute returns 1 - cosine(v[i-1], v[i]) for each consecutive pair of
// years. years must be ascending and aligned with vecs. Fewer than two years
// yields an empty series.
func Compute(years []int, vecs []vector.Sparse) []Point {
	if len(years) < 2 || len(years) != len(vecs) {
		return []Point{}
	}
	out := make([]Point, 0, len(years)-1)
	for i := 1; i < len(years); i++ {
		out = append(out, Point{
			Year:     years[i],
			PrevYear: years[i-1],
			Drift:    1 - vector.Cosine(vecs[i-1], vecs[i]),
		})
	}
	return out
}
