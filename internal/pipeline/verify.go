package pipeline

import (
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/entity"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Verify checks that every artifact of s refers only to documents and
// entities the snapshot knows about. A snapshot failing Verify is never
// published.
func Verify(s *Snapshot) error {
	if s.Index == nil || s.Scorer == nil {
		return apperrors.Consistencyf("snapshot %d has no index", s.Generation)
	}
	n := s.Index.NumDocs()

	if s.Projection != nil {
		rows, _ := s.Projection.Dims()
		if rows != n {
			return apperrors.Consistencyf("projection has %d rows for %d documents", rows, n)
		}
	}

	if s.Clusters != nil {
		if len(s.Clusters.Assign) != n {
			return apperrors.Consistencyf("cluster assignment covers %d of %d documents", len(s.Clusters.Assign), n)
		}
		sizes := make([]int, s.Clusters.K)
		for ord, c := range s.Clusters.Assign {
			if c < 0 || c >= s.Clusters.K {
				return apperrors.Consistencyf("document %d assigned to cluster %d of %d", s.Index.Doc(ord).ID, c, s.Clusters.K)
			}
			sizes[c]++
		}
		for c, size := range sizes {
			if size == 0 {
				return apperrors.Consistencyf("cluster %d is empty", c)
			}
		}
	}

	if s.DocKeywords != nil && len(s.DocKeywords) != n {
		return apperrors.Consistencyf("keyword summaries cover %d of %d documents", len(s.DocKeywords), n)
	}
	for _, kind := range entity.Kinds {
		set, ok := s.Entities[kind]
		if !ok {
			return apperrors.Consistencyf("no %s vectors", kind)
		}
		total := 0
		for _, d := range set.Docs {
			total += d
		}
		if total != n {
			return apperrors.Consistencyf("%s groups cover %d of %d documents", kind, total, n)
		}
		if kw, ok := s.EntityKeywords[kind]; ok && len(kw) != set.Len() {
			return apperrors.Consistencyf("%d %s keyword summaries for %d entities", len(kw), kind, set.Len())
		}
	}

	speakers := s.Entities[entity.KindSpeaker]
	for _, p := range s.Pairs {
		if p.A >= p.B {
			return apperrors.Consistencyf("pair (%s, %s) is not canonical", p.A, p.B)
		}
		if p.Score < 0 || p.Score > 1 {
			return apperrors.Consistencyf("pair (%s, %s) scores %g", p.A, p.B, p.Score)
		}
		for _, id := range []string{p.A, p.B} {
			if _, ok := speakers.Position(entity.Key{Kind: entity.KindSpeaker, ID: id}); !ok {
				return apperrors.Consistencyf("pair references unknown speaker %q", id)
			}
		}
	}
	return nil
}
