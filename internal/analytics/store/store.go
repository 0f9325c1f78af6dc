// Package store persists the artifacts of a snapshot generation in
// PostgreSQL. Every save replaces the previous generation's rows inside one
// transaction, so readers see either the old artifacts or the new ones.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/entity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/similarity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/postgres"
)

// Generation is one row of snapshot_generations.
type Generation struct {
	Generation uint64    `json:"generation"`
	BuiltAt    time.Time `json:"built_at"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	Dimensions int       `json:"dimensions"`
	Clusters   int       `json:"clusters"`
	Pairs      int       `json:"pairs"`
	Skipped    int       `json:"skipped"`
	Dir        string    `json:"snapshot_dir"`
}

// DocumentKeywords is the keyword summary of one document.
type DocumentKeywords struct {
	DocID int64
	Terms []ranker.TermScore
}

// EntityKeywords is the keyword summary of one speaker, party or year.
type EntityKeywords struct {
	Key   entity.Key
	Terms []ranker.TermScore
}

// DocumentCluster is the theme assignment of one document.
type DocumentCluster struct {
	DocID   int64
	Cluster int
}

// Artifacts is everything saved for one generation.
type Artifacts struct {
	Generation       Generation
	DocumentKeywords []DocumentKeywords
	EntityKeywords   []EntityKeywords
	Pairs            []similarity.Pair
	Clusters         []DocumentCluster
}

// Store reads and writes artifacts through a postgres.Client.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates an artifact store.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "artifact-store"),
	}
}

type copyTable struct {
	name    string
	columns []string
	rows    [][]any
}

func tables(a *Artifacts) []copyTable {
	return []copyTable{
		{"document_keywords", []string{"doc_id", "rank", "term", "score"}, documentKeywordRows(a.DocumentKeywords)},
		{"entity_keywords", []string{"kind", "entity_id", "year", "rank", "term", "score"}, entityKeywordRows(a.EntityKeywords)},
		{"speaker_similarity_pairs", []string{"speaker_a", "speaker_b", "score"}, pairRows(a.Pairs)},
		{"document_clusters", []string{"doc_id", "cluster_id"}, clusterRows(a.Clusters)},
	}
}

// Save replaces the stored artifacts with a and records its generation.
func (s *Store) Save(ctx context.Context, a *Artifacts) error {
	start := time.Now()
	tabs := tables(a)
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tabs {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.name); err != nil {
				return fmt.Errorf("clearing %s: %w", t.name, err)
			}
			if err := copyRows(ctx, tx, t); err != nil {
				return err
			}
		}
		g := a.Generation
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_generations
				(generation, built_at, documents, terms, dimensions, clusters, pairs, skipped, snapshot_dir)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (generation) DO UPDATE SET
				built_at = EXCLUDED.built_at, documents = EXCLUDED.documents,
				terms = EXCLUDED.terms, dimensions = EXCLUDED.dimensions,
				clusters = EXCLUDED.clusters, pairs = EXCLUDED.pairs,
				skipped = EXCLUDED.skipped, snapshot_dir = EXCLUDED.snapshot_dir`,
			int64(g.Generation), g.BuiltAt.UTC(), g.Documents, g.Terms, g.Dimensions,
			g.Clusters, g.Pairs, g.Skipped, g.Dir,
		)
		if err != nil {
			return fmt.Errorf("recording generation %d: %w", g.Generation, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving generation %d: %w", a.Generation.Generation, err)
	}

	s.logger.Info("artifacts saved",
		"generation", a.Generation.Generation,
		"document_keywords", len(tabs[0].rows),
		"entity_keywords", len(tabs[1].rows),
		"pairs", len(tabs[2].rows),
		"clusters", len(tabs[3].rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func copyRows(ctx context.Context, tx *sql.Tx, t copyTable) error {
	if len(t.rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(t.name, t.columns...))
	if err != nil {
		return fmt.Errorf("preparing copy into %s: %w", t.name, err)
	}
	defer stmt.Close()
	for _, row := range t.rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("copying into %s: %w", t.name, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flushing copy into %s: %w", t.name, err)
	}
	return nil
}

// LatestGeneration returns the newest recorded generation, or nil, nil when
// nothing has been saved yet.
func (s *Store) LatestGeneration(ctx context.Context) (*Generation, error) {
	gens, err := s.ListGenerations(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(gens) == 0 {
		return nil, nil
	}
	return &gens[0], nil
}

// ListGenerations returns the last limit generations, newest first.
func (s *Store) ListGenerations(ctx context.Context, limit int) ([]Generation, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT generation, built_at, documents, terms, dimensions, clusters, pairs, skipped, snapshot_dir
		 FROM snapshot_generations ORDER BY generation DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing generations: %w", err)
	}
	defer rows.Close()

	var gens []Generation
	for rows.Next() {
		var g Generation
		var gen int64
		if err := rows.Scan(&gen, &g.BuiltAt, &g.Documents, &g.Terms, &g.Dimensions,
			&g.Clusters, &g.Pairs, &g.Skipped, &g.Dir); err != nil {
			return nil, fmt.Errorf("scanning generation row: %w", err)
		}
		g.Generation = uint64(gen)
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// EntityKeywords reads the stored summary of one entity. An unknown entity
// yields an empty slice.
func (s *Store) EntityKeywords(ctx context.Context, key entity.Key) ([]ranker.TermScore, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT term, score FROM entity_keywords
		 WHERE kind = $1 AND entity_id = $2 AND year = $3 ORDER BY rank`,
		string(key.Kind), key.ID, key.Year,
	)
	if err != nil {
		return nil, fmt.Errorf("querying keywords of %s: %w", key, err)
	}
	defer rows.Close()

	out := []ranker.TermScore{}
	for rows.Next() {
		var ts ranker.TermScore
		if err := rows.Scan(&ts.Term, &ts.Score); err != nil {
			return nil, fmt.Errorf("scanning keyword row: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// ClusterOf returns the stored theme of a document.
func (s *Store) ClusterOf(ctx context.Context, docID int64) (int, bool, error) {
	var c int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT cluster_id FROM document_clusters WHERE doc_id = $1`, docID,
	).Scan(&c)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying cluster of document %d: %w", docID, err)
	}
	return c, true, nil
}

func documentKeywordRows(docs []DocumentKeywords) [][]any {
	var rows [][]any
	for _, d := range docs {
		for rank, ts := range d.Terms {
			rows = append(rows, []any{d.DocID, rank + 1, ts.Term, ts.Score})
		}
	}
	return rows
}

func entityKeywordRows(ents []EntityKeywords) [][]any {
	var rows [][]any
	for _, e := range ents {
		for rank, ts := range e.Terms {
			rows = append(rows, []any{string(e.Key.Kind), e.Key.ID, e.Key.Year, rank + 1, ts.Term, ts.Score})
		}
	}
	return rows
}

func pairRows(pairs []similarity.Pair) [][]any {
	rows := make([][]any, 0, len(pairs))
	for _, p := range pairs {
		a, b := p.A, p.B
		if b < a {
			a, b = b, a
		}
		rows = append(rows, []any{a, b, p.Score})
	}
	return rows
}

func clusterRows(cs []DocumentCluster) [][]any {
	rows := make([][]any, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, []any{c.DocID, c.Cluster})
	}
	return rows
}
