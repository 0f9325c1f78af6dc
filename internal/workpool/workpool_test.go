package workpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

func TestRunVisitsEveryIndexOnce(t *testing.T) {
	p, err := New(3)
	require.NoError(t, err)
	defer p.Release()

	const n = 1000
	seen := make([]int32, n)
	require.NoError(t, p.Run(n, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}))
	for i, c := range seen {
		assert.Equal(t, int32(1), c, "index %d", i)
	}
}

func TestRunEmpty(t *testing.T) {
	p, err := New(0)
	require.NoError(t, err)
	defer p.Release()

	assert.Positive(t, p.Size())
	require.NoError(t, p.Run(0, func(int) { t.Fatal("must not be called") }))
}

func TestRunAfterRelease(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)
	p.Release()
	require.Error(t, p.Run(10, func(int) {}))
}

func TestRunReportsPanic(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)
	defer p.Release()

	out := make([]int, 4)
	err = p.Run(len(out), func(i int) {
		if i == 2 {
			panic("boom")
		}
		out[i] = 1
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrComputation))
	assert.Contains(t, err.Error(), "task 2 panicked: boom")

	// the pool stays usable
	require.NoError(t, p.Run(3, func(int) {}))
}
