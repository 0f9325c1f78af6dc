// Package merger selects the best K items from a stream with a bounded heap,
// so ranking a large candidate set never needs a full sort.
package merger

import (
	"container/heap"
	"slices"
)

// Selector keeps the k best items pushed into it. better(a, b) reports
// whether a ranks ahead of b and must be a strict total order for results
// to be deterministic.
type Selector[T any] struct {
	h *boundedHeap[T]
	k int
}

// NewSelector returns a Selector keeping at most k items. k <= 0 keeps every
// item.
func NewSelector[T any](k int, better func(a, b T) bool) *Selector[T] {
	h := &boundedHeap[T]{better: better}
	heap.Init(h)
	return &Selector[T]{h: h, k: k}
}

// Push offers an item.
func (s *Selector[T]) Push(x T) {
	if s.k > 0 && s.h.Len() == s.k {
		if !s.h.better(x, s.h.items[0]) {
			return
		}
		s.h.items[0] = x
		heap.Fix(s.h, 0)
		return
	}
	heap.Push(s.h, x)
}

// Len returns the number of retained items.
func (s *Selector[T]) Len() int { return s.h.Len() }

// Result returns the retained items best first. The Selector is empty
// afterwards.
func (s *Selector[T]) Result() []T {
	out := make([]T, s.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(s.h).(T)
	}
	return out
}

// TopK returns the k best items of items, best first. k <= 0 sorts all of
// them.
func TopK[T any](items []T, k int, better func(a, b T) bool) []T {
	if k <= 0 || k >= len(items) {
		out := slices.Clone(items)
		slices.SortFunc(out, func(a, b T) int {
			switch {
			case better(a, b):
				return -1
			case better(b, a):
				return 1
			}
			return 0
		})
		return out
	}
	s := NewSelector(k, better)
	for _, x := range items {
		s.Push(x)
	}
	return s.Result()
}

// boundedHeap is a min-heap on rank: the worst retained item is at the root.
type boundedHeap[T any] struct {
	items  []T
	better func(a, b T) bool
}

func (h boundedHeap[T]) Len() int { return len(h.items) }

func (h boundedHeap[T]) Less(i, j int) bool {
	return h.better(h.items[j], h.items[i])
}

func (h boundedHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *boundedHeap[T]) Push(x any) {
	h.items = append(h.items, x.(T))
}

func (h *boundedHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
