package entity

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/vector"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
)

func day(year int) time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }

func fixture(t *testing.T) (*ranker.Scorer, *workpool.Pool) {
	t.Helper()
	x, err := index.Build([]index.Document{
		{ID: 1, Tokens: strings.Fields("tax tax budget"), Speaker: "alice", Party: "blue", Date: day(2019)},
		{ID: 2, Tokens: strings.Fields("tax budget budget budget budget"), Speaker: "alice", Party: "blue", Date: day(2020)},
		{ID: 3, Tokens: strings.Fields("health school"), Speaker: "bob", Party: "red", Date: day(2019)},
		{ID: 4, Speaker: "bob", Party: "red", Date: day(2020)},
		{ID: 5, Speaker: "carol", Party: "red", Date: day(2020)},
	})
	require.NoError(t, err)
	pool, err := workpool.New(2)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return ranker.NewScorer(x), pool
}

func TestAggregateIsMeanOfNormalisedVectors(t *testing.T) {
	scorer, pool := fixture(t)
	set, err := Aggregate(scorer, KindSpeaker, pool)
	require.NoError(t, err)

	require.Equal(t, []Key{
		{Kind: KindSpeaker, ID: "alice"},
		{Kind: KindSpeaker, ID: "bob"},
		{Kind: KindSpeaker, ID: "carol"},
	}, set.Keys)
	assert.Equal(t, []int{2, 2, 1}, set.Docs)

	alice, ok := set.Get(Key{Kind: KindSpeaker, ID: "alice"})
	require.True(t, ok)
	want := vector.NewAccumulator()
	want.Add(scorer.DocVector(0).Normalized(), 1)
	want.Add(scorer.DocVector(1).Normalized(), 1)
	assert.Equal(t, want.Mean().IDs, alice.IDs)
	assert.InDeltaSlice(t, want.Mean().Vals, alice.Vals, 1e-12)

	// bob's empty speech is skipped, so his vector is his one real speech.
	bob, _ := set.Get(Key{Kind: KindSpeaker, ID: "bob"})
	assert.InDelta(t, 1.0, bob.Norm(), 1e-12)

	carol, _ := set.Get(Key{Kind: KindSpeaker, ID: "carol"})
	assert.Equal(t, 0, carol.Len())
	assert.False(t, math.IsNaN(carol.Norm()))
}

func TestAggregateAveragesRatherThanSums(t *testing.T) {
	scorer, pool := fixture(t)
	set, err := Aggregate(scorer, KindSpeaker, pool)
	require.NoError(t, err)
	for i, v := range set.Vectors {
		assert.LessOrEqual(t, v.Norm(), 1.0+1e-12, set.Keys[i].String())
	}
}

func TestGroupPerYearKinds(t *testing.T) {
	scorer, _ := fixture(t)
	keys, groups := Group(scorer.Index(), KindPartyYear)
	require.Equal(t, []Key{
		{Kind: KindPartyYear, ID: "blue", Year: 2019},
		{Kind: KindPartyYear, ID: "blue", Year: 2020},
		{Kind: KindPartyYear, ID: "red", Year: 2019},
		{Kind: KindPartyYear, ID: "red", Year: 2020},
	}, keys)
	assert.Equal(t, [][]int{{0}, {1}, {2}, {3, 4}}, groups)

	keys, _ = Group(scorer.Index(), KindYear)
	assert.Equal(t, "2019", keys[0].String())
	assert.Equal(t, "red@2020", Key{Kind: KindPartyYear, ID: "red", Year: 2020}.String())
}

func TestYearSeries(t *testing.T) {
	scorer, pool := fixture(t)
	set, err := Aggregate(scorer, KindSpeakerYear, pool)
	require.NoError(t, err)

	years, vecs := set.YearSeries("alice")
	assert.Equal(t, []int{2019, 2020}, years)
	assert.Len(t, vecs, 2)

	years, _ = set.YearSeries("nobody")
	assert.Empty(t, years)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("party_year")
	require.NoError(t, err)
	assert.Equal(t, KindPartyYear, k)
	assert.True(t, k.HasYear())
	assert.Equal(t, KindParty, k.Base())

	_, err = ParseKind("committee")
	require.Error(t, err)
}
