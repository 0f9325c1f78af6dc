package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"not found", fmt.Errorf("speaker: %w", ErrNotFound), http.StatusNotFound},
		{"invalid input", InvalidInputf("limit %d", -1), http.StatusBadRequest},
		{"no snapshot", ErrNoSnapshot, http.StatusServiceUnavailable},
		{"computation", Computationf("svd"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestHelpersWrapSentinels(t *testing.T) {
	assert.True(t, errors.Is(Computationf("k=%d", 3), ErrComputation))
	assert.True(t, errors.Is(Consistencyf("pair %s", "a|b"), ErrConsistency))
	assert.Equal(t, "snapshot inconsistent: pair a|b", Consistencyf("pair %s", "a|b").Error())

	appErr := Newf(ErrNotFound, http.StatusNotFound, "theme %d", 9)
	assert.True(t, errors.Is(appErr, ErrNotFound))
	assert.Equal(t, "not found: theme 9", appErr.Error())
}
