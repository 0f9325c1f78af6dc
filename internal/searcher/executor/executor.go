// Package executor runs query plans against the active snapshot.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
)

// Hit is one ranked document with its metadata.
type Hit struct {
	DocID   int64     `json:"doc_id"`
	Score   float64   `json:"score"`
	Speaker string    `json:"speaker"`
	Party   string    `json:"party"`
	Date    time.Time `json:"date"`
	Cluster int       `json:"cluster"`
}

type SearchResult struct {
	Query      string         `json:"query"`
	Generation uint64         `json:"generation"`
	TotalHits  int            `json:"total_hits"`
	Results    []Hit          `json:"results"`
	TermStats  map[string]int `json:"term_stats"`
}

// Snapshots yields the snapshot to query; *pipeline.Registry satisfies it.
type Snapshots interface {
	Current() (*pipeline.Snapshot, error)
}

type Executor struct {
	snapshots Snapshots
	logger    *slog.Logger
}

func New(snapshots Snapshots) *Executor {
	return &Executor{
		snapshots: snapshots,
		logger:    slog.Default().With("component", "query-executor"),
	}
}

// Execute ranks the documents matching plan. Scores are computed against the
// full corpus; AND, NOT and the metadata filter only decide which scored
// documents are returned.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	snap, err := e.snapshots.Current()
	if err != nil {
		return nil, err
	}
	result := Run(snap, plan, limit)
	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"generation", snap.Generation,
		"candidates", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

// Run executes plan against snap.
func Run(snap *pipeline.Snapshot, plan *parser.QueryPlan, limit int) *SearchResult {
	result := &SearchResult{
		Query:      plan.RawQuery,
		Generation: snap.Generation,
		Results:    []Hit{},
		TermStats:  map[string]int{},
	}
	if len(plan.Terms) == 0 {
		return result
	}
	idx := snap.Index

	postingsPerTerm := make(map[string]index.PostingList)
	for _, term := range plan.Terms {
		postings := idx.Search(term)
		result.TermStats[term] = len(postings)
		if len(postings) > 0 {
			postingsPerTerm[term] = postings
		}
	}

	var candidates map[int32]struct{}
	switch plan.Type {
	case parser.QueryAND:
		if len(postingsPerTerm) < len(result.TermStats) {
			candidates = map[int32]struct{}{}
		} else {
			candidates = intersectPostings(postingsPerTerm)
		}
	default:
		candidates = unionPostings(postingsPerTerm)
	}
	for _, term := range plan.ExcludeTerms {
		for _, p := range idx.Search(term) {
			delete(candidates, p.Doc)
		}
	}
	if !plan.Filter.IsZero() {
		for ord := range candidates {
			if !plan.Filter.Match(idx.Doc(int(ord))) {
				delete(candidates, ord)
			}
		}
	}
	result.TotalHits = len(candidates)

	accept := func(ord int) bool {
		_, ok := candidates[int32(ord)]
		return ok
	}
	for _, sd := range snap.Scorer.Rank(plan.Terms, accept, limit) {
		result.Results = append(result.Results, hit(snap, sd))
	}
	return result
}

func hit(snap *pipeline.Snapshot, sd ranker.ScoredDoc) Hit {
	h := Hit{DocID: sd.DocID, Score: sd.Score}
	if ord, ok := snap.Index.Ordinal(sd.DocID); ok {
		d := snap.Index.Doc(ord)
		h.Speaker, h.Party, h.Date = d.Speaker, d.Party, d.Date
	}
	h.Cluster, _ = snap.ClusterOf(sd.DocID)
	return h
}

func intersectPostings(postingsPerTerm map[string]index.PostingList) map[int32]struct{} {
	if len(postingsPerTerm) == 0 {
		return make(map[int32]struct{})
	}
	var shortestTerm string
	shortestLen := int(^uint(0) >> 1)
	for term, postings := range postingsPerTerm {
		if len(postings) < shortestLen {
			shortestLen = len(postings)
			shortestTerm = term
		}
	}
	candidates := make(map[int32]struct{})
	for _, p := range postingsPerTerm[shortestTerm] {
		candidates[p.Doc] = struct{}{}
	}
	for term, postings := range postingsPerTerm {
		if term == shortestTerm {
			continue
		}
		docSet := make(map[int32]struct{}, len(postings))
		for _, p := range postings {
			docSet[p.Doc] = struct{}{}
		}
		for doc := range candidates {
			if _, exists := docSet[doc]; !exists {
				delete(candidates, doc)
			}
		}
	}
	return candidates
}

func unionPostings(postingsPerTerm map[string]index.PostingList) map[int32]struct{} {
	result := make(map[int32]struct{})
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			result[p.Doc] = struct{}{}
		}
	}
	return result
}
