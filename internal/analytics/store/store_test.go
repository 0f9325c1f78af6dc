package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/entity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/similarity"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/searcher/ranker"
)

func TestDocumentKeywordRowsRankFromOne(t *testing.T) {
	rows := documentKeywordRows([]DocumentKeywords{
		{DocID: 7, Terms: []ranker.TermScore{{Term: "budget", Score: 2}, {Term: "tax", Score: 1}}},
		{DocID: 9},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, []any{int64(7), 1, "budget", 2.0}, rows[0])
	assert.Equal(t, []any{int64(7), 2, "tax", 1.0}, rows[1])
}

func TestEntityKeywordRowsCarryYear(t *testing.T) {
	rows := entityKeywordRows([]EntityKeywords{
		{Key: entity.Key{Kind: entity.KindSpeaker, ID: "alice"}, Terms: []ranker.TermScore{{Term: "health", Score: 1}}},
		{Key: entity.Key{Kind: entity.KindYear, Year: 2004}, Terms: []ranker.TermScore{{Term: "war", Score: 3}}},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"speaker", "alice", 0, 1, "health", 1.0}, rows[0])
	assert.Equal(t, []any{"year", "", 2004, 1, "war", 3.0}, rows[1])
}

func TestPairRowsAreCanonical(t *testing.T) {
	rows := pairRows([]similarity.Pair{{A: "bob", B: "alice", Score: 0.5}})
	assert.Equal(t, [][]any{{"alice", "bob", 0.5}}, rows)
}

func TestTablesCoverEveryArtifact(t *testing.T) {
	a := &Artifacts{
		Clusters: []DocumentCluster{{DocID: 1, Cluster: 0}, {DocID: 2, Cluster: 1}},
	}
	tabs := tables(a)
	names := make([]string, len(tabs))
	for i, tab := range tabs {
		names[i] = tab.name
		for _, row := range tab.rows {
			assert.Len(t, row, len(tab.columns))
		}
	}
	assert.Equal(t, []string{"document_keywords", "entity_keywords", "speaker_similarity_pairs", "document_clusters"}, names)
	assert.Len(t, tabs[3].rows, 2)
}
