package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/cluster"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/entity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/lsi"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/similarity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
	applog "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/tracing"
)

// Stage names, used for spans and the stage metrics.
const (
	StageCorpus     = "corpus"
	StageIndex      = "index"
	StageEntities   = "entities"
	StageKeywords   = "keywords"
	StageProjection = "projection"
	StageClustering = "clustering"
	StageSimilarity = "similarity"
	StageVerify     = "verify"
)

// Builder runs rebuilds. Metrics may be nil.
type Builder struct {
	params  Params
	pool    *workpool.Pool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewBuilder creates a Builder for the given settings.
func NewBuilder(params Params, pool *workpool.Pool, m *metrics.Metrics) *Builder {
	return &Builder{
		params:  params,
		pool:    pool,
		metrics: m,
		logger:  slog.Default().With("component", "pipeline"),
	}
}

// Build reads the corpus from src and rebuilds generation gen from it.
func (b *Builder) Build(ctx context.Context, gen uint64, src corpus.Source) (*Snapshot, error) {
	ctx, root := tracing.StartSpan(ctx, "rebuild", fmt.Sprintf("gen-%06d", gen))
	var (
		docs  []index.Document
		stats corpus.Stats
	)
	err := b.stage(ctx, StageCorpus, func(ctx context.Context) error {
		var err error
		docs, stats, err = corpus.Load(ctx, src, b.logger)
		return err
	})
	if err != nil {
		root.End()
		b.countRebuild("failed")
		return nil, err
	}
	if b.metrics != nil {
		for reason, n := range stats.Skipped {
			b.metrics.RecordsSkippedTotal.WithLabelValues(reason).Add(float64(n))
		}
	}
	return b.rebuild(ctx, root, gen, docs, stats)
}

// Rebuild runs every stage over docs and returns a verified snapshot. On
// error no snapshot is returned and the caller keeps serving the previous
// one.
func (b *Builder) Rebuild(ctx context.Context, gen uint64, docs []index.Document, stats corpus.Stats) (*Snapshot, error) {
	ctx, root := tracing.StartSpan(ctx, "rebuild", fmt.Sprintf("gen-%06d", gen))
	return b.rebuild(ctx, root, gen, docs, stats)
}

func (b *Builder) rebuild(ctx context.Context, root *tracing.Span, gen uint64, docs []index.Document, stats corpus.Stats) (*Snapshot, error) {
	logger := applog.WithGeneration("pipeline", gen)
	s := &Snapshot{Generation: gen, Params: b.params, Corpus: stats}

	stages := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{StageIndex, func(context.Context) error {
			idx, err := index.Build(docs)
			if err != nil {
				return err
			}
			s.Index = idx
			s.Scorer = ranker.NewScorer(idx)
			return nil
		}},
		{StageEntities, func(context.Context) error {
			var err error
			s.Entities, err = aggregateEntities(s.Scorer, b.pool)
			return err
		}},
		{StageKeywords, func(context.Context) error {
			var err error
			s.DocKeywords, s.EntityKeywords, err = extractKeywords(s.Scorer, s.Params, b.pool)
			return err
		}},
		{StageProjection, func(context.Context) error {
			a, err := lsi.Matrix(s.Scorer, b.pool)
			if err != nil {
				return err
			}
			s.Projection, err = lsi.Project(a, s.Params.Dimensions)
			if err != nil {
				return err
			}
			_, s.Params.Dimensions = s.Projection.Dims()
			return nil
		}},
		{StageClustering, func(ctx context.Context) error {
			res, err := cluster.KMeans(ctx, s.Projection.Rows, cluster.Config{
				Clusters:      s.Params.Clusters,
				Restarts:      s.Params.Restarts,
				MaxIterations: s.Params.MaxIterations,
				Tolerance:     s.Params.Tolerance,
				Seed:          s.Params.Seed,
			})
			if err != nil {
				return err
			}
			s.Clusters = res
			s.Params.Clusters = res.K
			return nil
		}},
		{StageSimilarity, func(context.Context) error {
			var err error
			s.Pairs, err = speakerPairs(s.Entities[entity.KindSpeaker], s.Params, b.pool)
			s.Graph = similarity.NewGraph(s.Pairs)
			return err
		}},
		{StageVerify, func(context.Context) error {
			return Verify(s)
		}},
	}

	for _, st := range stages {
		if err := b.stage(ctx, st.name, st.fn); err != nil {
			root.Fail(err)
			root.End()
			root.Log(logger)
			b.countRebuild("failed")
			logger.Error("rebuild failed", "error", err)
			return nil, err
		}
	}

	root.End()
	s.BuiltAt = time.Now().UTC()
	s.Stages = root.StageDurations()
	root.SetAttr("documents", s.Index.NumDocs())
	root.SetAttr("pairs", len(s.Pairs))
	root.Log(logger)
	b.countRebuild("ok")

	logger.Info("rebuild complete",
		"documents", s.Index.NumDocs(),
		"terms", s.Index.NumTerms(),
		"dimensions", s.Params.Dimensions,
		"clusters", s.Params.Clusters,
		"pairs", len(s.Pairs),
		"duration_ms", root.Duration.Milliseconds(),
	)
	return s, nil
}

func (b *Builder) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	err := fn(ctx)
	span.End()
	if b.metrics != nil {
		b.metrics.StageDuration.WithLabelValues(name).Observe(span.Duration.Seconds())
		if err != nil {
			b.metrics.StageFailuresTotal.WithLabelValues(name).Inc()
		}
	}
	if err != nil {
		span.Fail(err)
		return fmt.Errorf("stage %s: %w", name, err)
	}
	return nil
}

func (b *Builder) countRebuild(status string) {
	if b.metrics != nil {
		b.metrics.RebuildsTotal.WithLabelValues(status).Inc()
	}
}

// Observe publishes the gauges describing s.
func Observe(m *metrics.Metrics, s *Snapshot) {
	if m == nil {
		return
	}
	m.SnapshotGeneration.Set(float64(s.Generation))
	m.SnapshotDocuments.Set(float64(s.Index.NumDocs()))
	m.SnapshotTerms.Set(float64(s.Index.NumTerms()))
	m.SimilarityPairs.Set(float64(len(s.Pairs)))
}

func aggregateEntities(scorer *ranker.Scorer, pool *workpool.Pool) (map[entity.Kind]*entity.Set, error) {
	out := make(map[entity.Kind]*entity.Set, len(entity.Kinds))
	for _, kind := range entity.Kinds {
		set, err := entity.Aggregate(scorer, kind, pool)
		if err != nil {
			return nil, err
		}
		out[kind] = set
	}
	return out, nil
}

func extractKeywords(scorer *ranker.Scorer, p Params, pool *workpool.Pool) ([][]ranker.TermScore, map[entity.Kind][][]ranker.TermScore, error) {
	idx := scorer.Index()
	docs := make([][]ranker.TermScore, idx.NumDocs())
	err := pool.Run(idx.NumDocs(), func(ord int) {
		docs[ord] = scorer.Keywords([]int{ord}, p.Keywords.PerDocument)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("extracting document keywords: %w", err)
	}

	ents := make(map[entity.Kind][][]ranker.TermScore, len(entity.Kinds))
	for _, kind := range entity.Kinds {
		_, groups := entity.Group(idx, kind)
		out := make([][]ranker.TermScore, len(groups))
		n := p.keywordSize(kind)
		err := pool.Run(len(groups), func(i int) {
			out[i] = scorer.Keywords(groups[i], n)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("extracting %s keywords: %w", kind, err)
		}
		ents[kind] = out
	}
	return docs, ents, nil
}

func speakerPairs(speakers *entity.Set, p Params, pool *workpool.Pool) ([]similarity.Pair, error) {
	ids := make([]string, speakers.Len())
	for i, k := range speakers.Keys {
		ids[i] = k.ID
	}
	return similarity.Compute(ids, speakers.Vectors, similarity.Options{MinScore: p.MinScore, TopK: p.TopK}, pool)
}
