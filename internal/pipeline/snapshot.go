// Package pipeline runs the rebuild stages over a corpus and holds their
// output as an immutable, generation-numbered Snapshot. Consumers read the
// active snapshot through a Registry; a rebuild builds a complete new
// snapshot, verifies it and only then swaps it in.
package pipeline

import (
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/cluster"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/drift"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/entity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/lsi"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/similarity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Params are the settings a snapshot was built with. Dimensions and
// Clusters hold the effective values after clamping to the corpus.
type Params struct {
	Dimensions    int                   `json:"dimensions"`
	Clusters      int                   `json:"clusters"`
	Restarts      int                   `json:"restarts"`
	MaxIterations int                   `json:"max_iterations"`
	Tolerance     float64               `json:"tolerance"`
	Seed          uint64                `json:"seed"`
	MinScore      float64               `json:"min_score"`
	TopK          int                   `json:"top_k"`
	Keywords      config.KeywordsConfig `json:"keywords"`
	Themes        config.ThemesConfig   `json:"themes"`
}

// ParamsFrom takes the requested build settings from cfg.
func ParamsFrom(cfg *config.Config) Params {
	return Params{
		Dimensions:    cfg.Pipeline.Dimensions,
		Clusters:      cfg.Pipeline.Clusters,
		Restarts:      cfg.Pipeline.Restarts,
		MaxIterations: cfg.Pipeline.MaxIterations,
		Tolerance:     cfg.Pipeline.Tolerance,
		Seed:          cfg.Pipeline.Seed,
		MinScore:      cfg.Similarity.MinScore,
		TopK:          cfg.Similarity.TopK,
		Keywords:      cfg.Keywords,
		Themes:        cfg.Themes,
	}
}

func (p Params) keywordSize(kind entity.Kind) int {
	switch kind {
	case entity.KindSpeaker:
		return p.Keywords.PerSpeaker
	case entity.KindParty:
		return p.Keywords.PerParty
	case entity.KindYear:
		return p.Keywords.PerYear
	}
	return p.Keywords.PerEntityYear
}

// Snapshot is the complete output of one rebuild. It is never modified
// after publication; the lazily computed theme analytics are memoised.
type Snapshot struct {
	Generation uint64
	BuiltAt    time.Time
	Params     Params
	Corpus     corpus.Stats
	// Stages maps stage name to duration in milliseconds.
	Stages map[string]int64

	Index      *index.Index
	Scorer     *ranker.Scorer
	Projection *lsi.Projection
	Clusters   *cluster.Result
	Entities   map[entity.Kind]*entity.Set
	// DocKeywords is indexed by document ordinal.
	DocKeywords [][]ranker.TermScore
	// EntityKeywords is aligned with Entities[kind].Keys.
	EntityKeywords map[entity.Kind][][]ranker.TermScore
	Pairs          []similarity.Pair
	Graph          *similarity.Graph

	themesOnce sync.Once
	themes     []cluster.Theme

	embedOnce sync.Once
	embedding []cluster.Point
	embedErr  error
}

// Info is the summary served for a snapshot.
type Info struct {
	Generation uint64           `json:"generation"`
	BuiltAt    time.Time        `json:"built_at"`
	Documents  int              `json:"documents"`
	Terms      int              `json:"terms"`
	Dimensions int              `json:"dimensions"`
	Clusters   int              `json:"clusters"`
	Speakers   int              `json:"speakers"`
	Parties    int              `json:"parties"`
	Pairs      int              `json:"pairs"`
	Corpus     corpus.Stats     `json:"corpus"`
	Stages     map[string]int64 `json:"stages_ms"`
}

// Info summarises the snapshot.
func (s *Snapshot) Info() Info {
	return Info{
		Generation: s.Generation,
		BuiltAt:    s.BuiltAt,
		Documents:  s.Index.NumDocs(),
		Terms:      s.Index.NumTerms(),
		Dimensions: s.Params.Dimensions,
		Clusters:   s.Params.Clusters,
		Speakers:   s.Entities[entity.KindSpeaker].Len(),
		Parties:    s.Entities[entity.KindParty].Len(),
		Pairs:      len(s.Pairs),
		Corpus:     s.Corpus,
		Stages:     s.Stages,
	}
}

// DocumentKeywords returns the keyword summary of a document.
func (s *Snapshot) DocumentKeywords(docID int64) ([]ranker.TermScore, bool) {
	ord, ok := s.Index.Ordinal(docID)
	if !ok {
		return nil, false
	}
	return s.DocKeywords[ord], true
}

// Keywords returns the keyword summary of an entity.
func (s *Snapshot) Keywords(key entity.Key) ([]ranker.TermScore, bool) {
	set, ok := s.Entities[key.Kind]
	if !ok {
		return nil, false
	}
	i, ok := set.Position(key)
	if !ok {
		return nil, false
	}
	return s.EntityKeywords[key.Kind][i], true
}

// Neighbors returns the k speakers most similar to speaker.
func (s *Snapshot) Neighbors(speaker string, k int) []similarity.Neighbor {
	return s.Graph.Neighbors(speaker, k)
}

// Drift returns the year-over-year drift of a speaker or party. An unknown
// id yields an empty series.
func (s *Snapshot) Drift(kind entity.Kind, id string) ([]drift.Point, error) {
	var perYear entity.Kind
	switch kind {
	case entity.KindSpeaker:
		perYear = entity.KindSpeakerYear
	case entity.KindParty:
		perYear = entity.KindPartyYear
	default:
		return nil, apperrors.InvalidInputf("drift is defined for speakers and parties, not %q", kind)
	}
	years, vecs := s.Entities[perYear].YearSeries(id)
	return drift.Compute(years, vecs), nil
}

// ClusterOf returns the theme of a document.
func (s *Snapshot) ClusterOf(docID int64) (int, bool) {
	ord, ok := s.Index.Ordinal(docID)
	if !ok {
		return 0, false
	}
	return s.Clusters.Assign[ord], true
}

// Themes describes every cluster, ordered by id.
func (s *Snapshot) Themes() []cluster.Theme {
	s.themesOnce.Do(func() {
		s.themes = cluster.Summarize(s.Scorer, s.Clusters.Members(), cluster.ThemeOptions{
			TopTerms: s.Params.Themes.TopTerms,
			Samples:  s.Params.Themes.Samples,
		})
	})
	return s.themes
}

// Theme returns one cluster's description.
func (s *Snapshot) Theme(id int) (cluster.Theme, bool) {
	themes := s.Themes()
	if id < 0 || id >= len(themes) {
		return cluster.Theme{}, false
	}
	return themes[id], true
}

// Embedding returns the 2-D display points of the projected documents.
func (s *Snapshot) Embedding() ([]cluster.Point, error) {
	s.embedOnce.Do(func() {
		ids := make([]int64, s.Index.NumDocs())
		for ord, d := range s.Index.Docs() {
			ids[ord] = d.ID
		}
		s.embedding, s.embedErr = cluster.Embed(s.Projection.Rows, s.Clusters.Assign, ids,
			s.Params.Themes.MaxPointsPerCluster, s.Params.Seed)
	})
	return s.embedding, s.embedErr
}

// Artifacts converts the snapshot into the rows persisted by the artifact
// store. dir is the snapshot directory recorded with the generation.
func (s *Snapshot) Artifacts(dir string) *store.Artifacts {
	a := &store.Artifacts{
		Generation: store.Generation{
			Generation: s.Generation,
			BuiltAt:    s.BuiltAt,
			Documents:  s.Index.NumDocs(),
			Terms:      s.Index.NumTerms(),
			Dimensions: s.Params.Dimensions,
			Clusters:   s.Params.Clusters,
			Pairs:      len(s.Pairs),
			Skipped:    s.Corpus.SkippedTotal(),
			Dir:        dir,
		},
		Pairs: s.Pairs,
	}
	for ord, d := range s.Index.Docs() {
		a.DocumentKeywords = append(a.DocumentKeywords, store.DocumentKeywords{DocID: d.ID, Terms: s.DocKeywords[ord]})
		a.Clusters = append(a.Clusters, store.DocumentCluster{DocID: d.ID, Cluster: s.Clusters.Assign[ord]})
	}
	for _, kind := range entity.Kinds {
		set := s.Entities[kind]
		for i, k := range set.Keys {
			a.EntityKeywords = append(a.EntityKeywords, store.EntityKeywords{Key: k, Terms: s.EntityKeywords[kind][i]})
		}
	}
	return a
}
