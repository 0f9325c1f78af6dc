// Package entity groups documents by speaker, party and year and builds one
// term-weight vector per group: the mean of the group's L2-normalised TF-IDF
// document vectors.
package entity

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/vector"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
)

// Kind selects the metadata a document is grouped by.
type Kind string

const (
	KindSpeaker     Kind = "speaker"
	KindParty       Kind = "party"
	KindYear        Kind = "year"
	KindSpeakerYear Kind = "speaker_year"
	KindPartyYear   Kind = "party_year"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindSpeaker, KindParty, KindYear, KindSpeakerYear, KindPartyYear}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if slices.Contains(Kinds, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// HasYear reports whether keys of this kind carry a year.
func (k Kind) HasYear() bool {
	return k == KindYear || k == KindSpeakerYear || k == KindPartyYear
}

// Base strips the year from a per-year kind.
func (k Kind) Base() Kind {
	switch k {
	case KindSpeakerYear:
		return KindSpeaker
	case KindPartyYear:
		return KindParty
	}
	return k
}

// Key identifies one entity. ID is empty for KindYear; Year is 0 for kinds
// without a year.
type Key struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id,omitempty"`
	Year int    `json:"year,omitempty"`
}

func (k Key) String() string {
	switch {
	case k.Kind == KindYear:
		return strconv.Itoa(k.Year)
	case k.Kind.HasYear():
		return k.ID + "@" + strconv.Itoa(k.Year)
	}
	return k.ID
}

func compareKeys(a, b Key) int {
	if c := cmp.Compare(a.ID, b.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.Year, b.Year)
}

// KeyOf returns the key a document belongs to under kind.
func KeyOf(kind Kind, d index.DocMeta) Key {
	switch kind {
	case KindSpeaker:
		return Key{Kind: kind, ID: d.Speaker}
	case KindParty:
		return Key{Kind: kind, ID: d.Party}
	case KindYear:
		return Key{Kind: kind, Year: d.Year()}
	case KindSpeakerYear:
		return Key{Kind: kind, ID: d.Speaker, Year: d.Year()}
	case KindPartyYear:
		return Key{Kind: kind, ID: d.Party, Year: d.Year()}
	}
	return Key{Kind: kind}
}

// Group partitions document ordinals by kind. Keys are sorted by id then
// year; each group's ordinals are ascending.
func Group(idx *index.Index, kind Kind) ([]Key, [][]int) {
	pos := make(map[Key]int)
	var keys []Key
	var groups [][]int
	for ord, d := range idx.Docs() {
		k := KeyOf(kind, d)
		i, ok := pos[k]
		if !ok {
			i = len(keys)
			pos[k] = i
			keys = append(keys, k)
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], ord)
	}
	order := make([]int, len(keys))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return compareKeys(keys[a], keys[b]) })
	sortedKeys := make([]Key, len(keys))
	sortedGroups := make([][]int, len(keys))
	for i, o := range order {
		sortedKeys[i] = keys[o]
		sortedGroups[i] = groups[o]
	}
	return sortedKeys, sortedGroups
}

// Set holds the vectors of every entity of one kind, sorted by key.
type Set struct {
	Kind    Kind
	Keys    []Key
	Vectors []vector.Sparse
	// Docs is the number of documents grouped under each key, including
	// zero-norm documents left out of the mean.
	Docs []int
	pos  map[Key]int
}

// Len returns the number of entities.
func (s *Set) Len() int { return len(s.Keys) }

// Get returns the vector of k.
func (s *Set) Get(k Key) (vector.Sparse, bool) {
	i, ok := s.pos[k]
	if !ok {
		return vector.Sparse{}, false
	}
	return s.Vectors[i], true
}

// Position returns the index of k in Keys.
func (s *Set) Position(k Key) (int, bool) {
	i, ok := s.pos[k]
	return i, ok
}

// Map returns the set as a key -> vector map.
func (s *Set) Map() map[Key]vector.Sparse {
	out := make(map[Key]vector.Sparse, len(s.Keys))
	for i, k := range s.Keys {
		out[k] = s.Vectors[i]
	}
	return out
}

// Aggregate builds the entity vectors of kind. Each entity's vector is the
// mean of its documents' L2-normalised TF-IDF vectors; documents whose vector
// is zero are skipped and not counted. An entity with only such documents
// gets the zero vector. Entities are processed in parallel on pool.
func Aggregate(scorer *ranker.Scorer, kind Kind, pool *workpool.Pool) (*Set, error) {
	keys, groups := Group(scorer.Index(), kind)
	vecs := make([]vector.Sparse, len(keys))
	err := pool.Run(len(keys), func(i int) {
		acc := vector.NewAccumulator()
		for _, ord := range groups[i] {
			if scorer.Norm(ord) == 0 {
				continue
			}
			acc.Add(scorer.DocVector(ord).Normalized(), 1)
		}
		vecs[i] = acc.Mean()
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating %s vectors: %w", kind, err)
	}
	docs := make([]int, len(keys))
	pos := make(map[Key]int, len(keys))
	for i, k := range keys {
		docs[i] = len(groups[i])
		pos[k] = i
	}
	return &Set{Kind: kind, Keys: keys, Vectors: vecs, Docs: docs, pos: pos}, nil
}

// YearSeries returns the per-year vectors of one speaker or party, ordered
// by year. s must be of a per-year kind.
func (s *Set) YearSeries(id string) ([]int, []vector.Sparse) {
	var years []int
	var vecs []vector.Sparse
	for i, k := range s.Keys {
		if k.ID == id {
			years = append(years, k.Year)
			vecs = append(vecs, s.Vectors[i])
		}
	}
	return years, vecs
}
