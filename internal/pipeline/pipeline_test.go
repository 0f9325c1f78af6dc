package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/entity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/metrics"
)

// Documents 1-5 talk about the economy, 6-10 about health.
const speeches = `{"doc_id":1,"speaker":"alice","party":"blue","date":"2019-03-01","text":"budget tax deficit budget"}
{"doc_id":2,"speaker":"alice","party":"blue","date":"2020-03-01","text":"tax deficit growth"}
{"doc_id":3,"speaker":"bob","party":"blue","date":"2019-05-01","text":"budget growth tax"}
{"doc_id":4,"speaker":"bob","party":"blue","date":"2020-05-01","text":"deficit budget growth growth"}
{"doc_id":5,"speaker":"carol","party":"red","date":"2019-06-01","text":"tax budget deficit"}
{"doc_id":6,"speaker":"carol","party":"red","date":"2020-06-01","text":"hospital nurses health"}
{"doc_id":7,"speaker":"dave","party":"red","date":"2019-07-01","text":"health hospital doctors"}
{"doc_id":8,"speaker":"dave","party":"red","date":"2020-07-01","text":"nurses doctors hospital"}
{"doc_id":9,"speaker":"erin","party":"green","date":"2019-08-01","text":"health doctors nurses health"}
{"doc_id":10,"speaker":"erin","party":"green","date":"2020-08-01","text":"hospital health nurses"}
this line is not json
`

func testParams() Params {
	cfg := config.Default()
	p := ParamsFrom(cfg)
	p.Dimensions = 2
	p.Clusters = 2
	p.Restarts = 4
	p.Keywords.PerDocument = 2
	p.Themes.Samples = 3
	return p
}

func testPool(t *testing.T) *workpool.Pool {
	t.Helper()
	pool, err := workpool.New(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return pool
}

func build(t *testing.T, b *Builder, gen uint64) *Snapshot {
	t.Helper()
	s, err := b.Build(context.Background(), gen, corpus.ReaderSource{R: strings.NewReader(speeches)})
	require.NoError(t, err)
	return s
}

func TestBuildProducesVerifiedSnapshot(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := build(t, NewBuilder(testParams(), testPool(t), m), 1)

	require.NoError(t, Verify(s))
	info := s.Info()
	assert.Equal(t, uint64(1), info.Generation)
	assert.Equal(t, 10, info.Documents)
	assert.Equal(t, 2, info.Dimensions)
	assert.Equal(t, 2, info.Clusters)
	assert.Equal(t, 5, info.Speakers)
	assert.Equal(t, 3, info.Parties)
	assert.Equal(t, 1, info.Corpus.Skipped["malformed"])
	for _, stage := range []string{StageCorpus, StageIndex, StageEntities, StageKeywords, StageProjection, StageClustering, StageSimilarity, StageVerify} {
		assert.Contains(t, info.Stages, stage)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RebuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsSkippedTotal.WithLabelValues("malformed")))
	Observe(m, s)
	assert.Equal(t, 10.0, testutil.ToFloat64(m.SnapshotDocuments))
}

func TestBuildSeparatesTopics(t *testing.T) {
	s := build(t, NewBuilder(testParams(), testPool(t), nil), 1)

	economy, _ := s.ClusterOf(1)
	health, _ := s.ClusterOf(7)
	assert.NotEqual(t, economy, health)
	for id := int64(1); id <= 10; id++ {
		c, ok := s.ClusterOf(id)
		require.True(t, ok)
		if id <= 5 {
			assert.Equal(t, economy, c, "doc %d", id)
		} else {
			assert.Equal(t, health, c, "doc %d", id)
		}
	}

	themes := s.Themes()
	require.Len(t, themes, 2)
	assert.Equal(t, 5, themes[economy].Size)
	assert.Len(t, themes[economy].Samples, 3)

	points, err := s.Embedding()
	require.NoError(t, err)
	assert.Len(t, points, 10)
}

func TestBuildIsIdempotent(t *testing.T) {
	pool := testPool(t)
	a := build(t, NewBuilder(testParams(), pool, nil), 1)
	b := build(t, NewBuilder(testParams(), pool, nil), 1)

	var segA, segB bytes.Buffer
	require.NoError(t, segment.Encode(&segA, a.Index))
	require.NoError(t, segment.Encode(&segB, b.Index))
	assert.Equal(t, segA.Bytes(), segB.Bytes())
	assert.Equal(t, a.Clusters.Assign, b.Clusters.Assign)
	assert.Equal(t, a.Pairs, b.Pairs)
	assert.Equal(t, a.DocKeywords, b.DocKeywords)
}

func TestSnapshotQueries(t *testing.T) {
	s := build(t, NewBuilder(testParams(), testPool(t), nil), 1)

	kw, ok := s.DocumentKeywords(4)
	require.True(t, ok)
	require.Len(t, kw, 2)
	assert.Equal(t, "growth", kw[0].Term)
	_, ok = s.DocumentKeywords(404)
	assert.False(t, ok)

	kw, ok = s.Keywords(entity.Key{Kind: entity.KindSpeaker, ID: "erin"})
	require.True(t, ok)
	assert.Equal(t, "health", kw[0].Term)
	_, ok = s.Keywords(entity.Key{Kind: entity.KindSpeaker, ID: "nobody"})
	assert.False(t, ok)

	neighbours := s.Neighbors("alice", 1)
	require.Len(t, neighbours, 1)
	assert.Equal(t, "bob", neighbours[0].Speaker)

	series, err := s.Drift(entity.KindSpeaker, "carol")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 2020, series[0].Year)
	assert.InDelta(t, 1.0, series[0].Drift, 1e-12, "carol changed topic entirely")

	_, err = s.Drift(entity.KindYear, "2019")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestVerifyRejectsInconsistentSnapshot(t *testing.T) {
	s := build(t, NewBuilder(testParams(), testPool(t), nil), 1)

	s.Clusters.Assign[0] = 99
	assert.ErrorIs(t, Verify(s), apperrors.ErrConsistency)
	s.Clusters.Assign[0] = 0

	s.Pairs = append(s.Pairs, s.Pairs[0])
	s.Pairs[len(s.Pairs)-1].A = "zz-unknown"
	assert.ErrorIs(t, Verify(s), apperrors.ErrConsistency)
}

func TestRebuildFailsOnEmptyCorpus(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	_, err := NewBuilder(testParams(), testPool(t), m).Rebuild(context.Background(), 1, nil, corpus.Stats{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrComputation)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFailuresTotal.WithLabelValues(StageProjection)))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Current()
	assert.ErrorIs(t, err, apperrors.ErrNoSnapshot)

	assert.True(t, r.Publish(&Snapshot{Generation: 2}))
	assert.False(t, r.Publish(&Snapshot{Generation: 1}), "older generation")
	assert.False(t, r.Publish(&Snapshot{Generation: 2}), "same generation")
	assert.True(t, r.Publish(&Snapshot{Generation: 3}))

	cur, err := r.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cur.Generation)
	assert.Equal(t, uint64(3), r.Generation())
}

func TestDirStoreRoundTrip(t *testing.T) {
	pool := testPool(t)
	ds := NewDirStore(t.TempDir(), 2)

	_, err := ds.Current()
	assert.True(t, errors.Is(err, apperrors.ErrNoSnapshot))
	gen, err := ds.NextGeneration()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	s := build(t, NewBuilder(testParams(), pool, nil), gen)
	dir, err := ds.Write(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ds.Root(), "gen-000001"), dir)

	loaded, err := ds.LoadCurrent(pool)
	require.NoError(t, err)
	assert.Equal(t, s.Generation, loaded.Generation)
	assert.Equal(t, s.Params, loaded.Params)
	assert.Equal(t, s.Clusters.Assign, loaded.Clusters.Assign)
	assert.Equal(t, s.Pairs, loaded.Pairs)
	assert.Equal(t, s.DocKeywords, loaded.DocKeywords)
	assert.Equal(t, s.Projection.Rows.RawMatrix().Data, loaded.Projection.Rows.RawMatrix().Data)
	assert.Equal(t, s.Themes(), loaded.Themes())
}

func TestDirStorePrunesOldGenerations(t *testing.T) {
	pool := testPool(t)
	ds := NewDirStore(t.TempDir(), 2)
	b := NewBuilder(testParams(), pool, nil)

	for range 3 {
		gen, err := ds.NextGeneration()
		require.NoError(t, err)
		_, err = ds.Write(context.Background(), build(t, b, gen))
		require.NoError(t, err)
	}

	gens, err := ds.Generations()
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, gens)
	cur, err := ds.Current()
	require.NoError(t, err)
	assert.Equal(t, "gen-000003", filepath.Base(cur))
	_, err = os.Stat(filepath.Join(ds.Root(), "gen-000001"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadRejectsCorruptManifest(t *testing.T) {
	pool := testPool(t)
	ds := NewDirStore(t.TempDir(), 0)
	dir, err := ds.Write(context.Background(), build(t, NewBuilder(testParams(), pool, nil), 1))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{"documents": 3}`), 0o644))
	_, err = Load(dir, pool)
	assert.ErrorIs(t, err, apperrors.ErrConsistency)
}
