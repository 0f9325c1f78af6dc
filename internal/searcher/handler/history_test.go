package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/store"
)

type fakeLister struct {
	gens  []store.Generation
	err   error
	limit int
}

func (f *fakeLister) ListGenerations(_ context.Context, limit int) ([]store.Generation, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.gens[:min(limit, len(f.gens))], nil
}

func TestHistory(t *testing.T) {
	lister := &fakeLister{gens: []store.Generation{{Generation: 3}, {Generation: 2}, {Generation: 1}}}
	h := History(lister, 2)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/generations?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, lister.limit, "capped at maxResults")

	var body struct {
		Generations []store.Generation `json:"generations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Generations, 2)
	assert.Equal(t, uint64(3), body.Generations[0].Generation)

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/v1/generations?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryStoreFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	History(&fakeLister{err: errors.New("connection refused")}, 10)(rec,
		httptest.NewRequest(http.MethodGet, "/api/v1/generations", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}
