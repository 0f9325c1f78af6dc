package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMix(t *testing.T) {
	p := Plan{BaseURL: "http://h", Queries: []string{"tax relief"}}
	for i := range 8 {
		endpoint, target := p.request(i)
		assert.Equal(t, "search", endpoint)
		assert.Equal(t, "http://h/api/v1/search?q=tax+relief&limit=10", target)
	}

	p.Speakers = []string{"alice", "bob"}
	counts := map[string]int{}
	for i := range 16 {
		endpoint, _ := p.request(i)
		counts[endpoint]++
	}
	assert.Equal(t, map[string]int{"search": 12, "similar": 2, "keywords": 2}, counts)
	_, target := p.request(7)
	assert.Equal(t, "http://h/api/v1/keywords?kind=speaker&id=alice", target)
}

func TestRecorderSummaries(t *testing.T) {
	r := NewRecorder()
	for _, ms := range []int{10, 20, 30, 40} {
		r.Record("search", time.Duration(ms)*time.Millisecond, http.StatusOK, nil)
	}
	r.Record("similar", 5*time.Millisecond, http.StatusServiceUnavailable, nil)
	r.Record("search", 0, 0, errors.New("connection refused"))

	assert.Equal(t, 6, r.Total())
	s := r.Summaries()
	require.Contains(t, s, "search")
	assert.Equal(t, 4, s["search"].Count)
	assert.Equal(t, 25*time.Millisecond, s["search"].Mean)
	assert.Equal(t, 20*time.Millisecond, s["search"].P50)
	assert.Equal(t, 40*time.Millisecond, s["search"].Max)
	assert.Equal(t, time.Duration(0), s["similar"].StdDev)

	var out bytes.Buffer
	r.Report(&out, time.Second)
	assert.Contains(t, out.String(), "failed    2")
	assert.Contains(t, out.String(), "err  1")
}

func TestRunAgainstServer(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/api/v1/snapshot" {
			w.Write([]byte(`{"generation":4}`))
			return
		}
		assert.True(t, strings.HasPrefix(r.URL.Path, "/api/v1/"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	gen, err := snapshotGeneration(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), gen)

	rec := Run(context.Background(), Plan{
		BaseURL:     srv.URL,
		Concurrency: 2,
		Duration:    50 * time.Millisecond,
		Queries:     defaultQueries,
		Speakers:    []string{"alice"},
	})
	assert.Positive(t, rec.Total())
	assert.Zero(t, rec.failed)
}
