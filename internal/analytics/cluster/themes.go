package cluster

import (
	"cmp"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/vector"
)

// ThemeOptions sizes the on-demand analytics.
type ThemeOptions struct {
	TopTerms int
	Samples  int
}

// Count is a metadata value and how many theme documents carry it.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Theme describes one cluster.
type Theme struct {
	ID             int                `json:"id"`
	Size           int                `json:"size"`
	TopTerms       []ranker.TermScore `json:"top_terms"`
	Representative int64              `json:"representative_doc"`
	Cohesion       float64            `json:"cohesion"`
	Parties        []Count            `json:"parties"`
	Speakers       []Count            `json:"speakers"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	MeanLength     float64            `json:"mean_length"`
	// Samples are the member documents closest to the theme's mean vector,
	// closest first.
	Samples []int64 `json:"samples"`
}

// EmptyTheme is the placeholder served for a theme id the snapshot does not
// have. Representative is -1 since 0 is a valid document id.
func EmptyTheme(id int) Theme {
	return Theme{
		ID:             id,
		TopTerms:       []ranker.TermScore{},
		Representative: -1,
		Parties:        []Count{},
		Speakers:       []Count{},
		Samples:        []int64{},
	}
}

type docCosine struct {
	id  int64
	cos float64
}

func closer(a, b docCosine) bool {
	if a.cos != b.cos {
		return a.cos > b.cos
	}
	return a.id < b.id
}

// Describe computes the analytics of the theme whose member ordinals are
// ords. Top terms come from the mean raw TF-IDF vector; the representative
// document has the highest cosine to that mean and cohesion is the mean of
// those cosines.
func Describe(scorer *ranker.Scorer, id int, ords []int, opts ThemeOptions) Theme {
	idx := scorer.Index()
	theme := Theme{ID: id, Size: len(ords)}
	if len(ords) == 0 {
		theme.TopTerms = []ranker.TermScore{}
		theme.Samples = []int64{}
		return theme
	}

	vecs := make([]vector.Sparse, len(ords))
	acc := vector.NewAccumulator()
	for i, ord := range ords {
		vecs[i] = scorer.DocVector(ord)
		acc.Add(vecs[i], 1)
	}
	mean := acc.Mean()

	terms := make([]ranker.TermScore, len(mean.IDs))
	for i, tid := range mean.IDs {
		terms[i] = ranker.TermScore{Term: idx.Term(tid), Score: mean.Vals[i]}
	}
	theme.TopTerms = merger.TopK(terms, opts.TopTerms, func(a, b ranker.TermScore) bool {
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Term < b.Term
	})

	cosines := make([]docCosine, len(ords))
	var cosSum float64
	parties := make(map[string]int)
	speakers := make(map[string]int)
	var lengthSum int
	for i, ord := range ords {
		d := idx.Doc(ord)
		c := vector.Cosine(vecs[i], mean)
		cosines[i] = docCosine{id: d.ID, cos: c}
		cosSum += c
		parties[d.Party]++
		speakers[d.Speaker]++
		lengthSum += d.Length
		if theme.From.IsZero() || d.Date.Before(theme.From) {
			theme.From = d.Date
		}
		if d.Date.After(theme.To) {
			theme.To = d.Date
		}
	}
	theme.Cohesion = cosSum / float64(len(ords))
	theme.MeanLength = float64(lengthSum) / float64(len(ords))
	theme.Parties = sortedCounts(parties)
	theme.Speakers = sortedCounts(speakers)

	ranked := merger.TopK(cosines, max(opts.Samples, 1), closer)
	theme.Representative = ranked[0].id
	theme.Samples = []int64{}
	for _, dc := range ranked[:min(len(ranked), max(opts.Samples, 0))] {
		theme.Samples = append(theme.Samples, dc.id)
	}
	return theme
}

// Summarize describes every theme.
func Summarize(scorer *ranker.Scorer, members [][]int, opts ThemeOptions) []Theme {
	out := make([]Theme, len(members))
	for c, ords := range members {
		out[c] = Describe(scorer, c, ords, opts)
	}
	return out
}

// sortedCounts orders by count descending, then name ascending.
func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, c := range m {
		out = append(out, Count{Name: name, Count: c})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
