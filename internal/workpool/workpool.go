// Package workpool runs indexed batches of CPU-bound work on a bounded ants
// goroutine pool.
package workpool

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Pool is a fixed-size worker pool.
type Pool struct {
	pool *ants.Pool
	size int
}

// New creates a Pool with size workers. A size below 1 uses
// runtime.NumCPU().
func New(size int) (*Pool, error) {
	if size < 1 {
		size = runtime.NumCPU()
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	return &Pool{pool: p, size: size}, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Run calls fn(i) for every i in [0, n) and waits for all calls to return.
// Indices are handed out in contiguous chunks so small tasks do not pay a
// submission each. A panic in fn stops its chunk and is returned as an
// ErrComputation error; the first one wins.
func (p *Pool) Run(n int, fn func(i int)) error {
	if n <= 0 {
		return nil
	}
	chunk := n / (p.size * 4)
	if chunk < 1 {
		chunk = 1
	}
	var (
		wg       sync.WaitGroup
		once     sync.Once
		panicErr error
	)
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			i := start
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() {
						panicErr = fmt.Errorf("%w: task %d panicked: %v", apperrors.ErrComputation, i, r)
					})
				}
			}()
			for ; i < end; i++ {
				fn(i)
			}
		}); err != nil {
			wg.Done()
			wg.Wait()
			return fmt.Errorf("submitting work: %w", err)
		}
	}
	wg.Wait()
	return panicErr
}

// Release stops the pool's workers.
func (p *Pool) Release() {
	p.pool.Release()
}
