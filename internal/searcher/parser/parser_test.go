package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/indexer/index"
)

func TestParseDefaultsToOR(t *testing.T) {
	plan := Parse("Budget tax budget")
	assert.Equal(t, QueryOR, plan.Type)
	assert.Equal(t, []string{"budget", "tax", "budget"}, plan.Terms)
	assert.Empty(t, plan.ExcludeTerms)
}

func TestParseOperators(t *testing.T) {
	plan := Parse("health and hospital NOT private")
	assert.Equal(t, QueryAND, plan.Type)
	assert.Equal(t, []string{"health", "hospital"}, plan.Terms)
	assert.Equal(t, []string{"private"}, plan.ExcludeTerms)
}

func TestParseEmpty(t *testing.T) {
	plan := Parse("   ")
	assert.Empty(t, plan.Terms)
	plan = Parse("!!! ???")
	assert.Empty(t, plan.Terms)
}

func TestKeyIsCanonical(t *testing.T) {
	assert.Equal(t, Parse("tax budget").Key(), Parse("Budget TAX").Key())
	assert.NotEqual(t, Parse("tax budget").Key(), Parse("tax AND budget").Key())

	f := Filter{Party: "blue"}
	assert.NotEqual(t, Parse("tax").Key(), Parse("tax").WithFilter(f).Key())
}

func TestFilterMatch(t *testing.T) {
	d := index.DocMeta{
		Speaker: "alice",
		Party:   "blue",
		Date:    time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, Filter{}.Match(d))
	assert.True(t, Filter{Party: "blue", Speaker: "alice"}.Match(d))
	assert.False(t, Filter{Party: "red"}.Match(d))
	assert.True(t, Filter{From: d.Date, To: d.Date}.Match(d))
	assert.False(t, Filter{From: d.Date.AddDate(0, 0, 1)}.Match(d))
	assert.False(t, Filter{To: d.Date.AddDate(0, 0, -1)}.Match(d))
}

func TestFilterToIncludesWholeDay(t *testing.T) {
	to := time.Date(2019, 5, 3, 0, 0, 0, 0, time.UTC)
	f := Filter{To: to}

	assert.True(t, f.Match(index.DocMeta{Date: time.Date(2019, 5, 3, 10, 0, 0, 0, time.UTC)}))
	assert.True(t, f.Match(index.DocMeta{Date: time.Date(2019, 5, 3, 23, 59, 59, 0, time.UTC)}))
	assert.False(t, f.Match(index.DocMeta{Date: time.Date(2019, 5, 4, 0, 0, 0, 0, time.UTC)}))
	assert.True(t, Filter{From: to, To: to}.Match(index.DocMeta{Date: time.Date(2019, 5, 3, 10, 0, 0, 0, time.UTC)}))
}
