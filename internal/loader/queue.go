package loader

import (
	"container/heap"
)

// entry is an element of a max-heap ordered by priority.
type entry[T any] struct {
	value    T
	priority float64
	index    int
}

// maxHeap implements heap.Interface with the largest priority on top.
type maxHeap[T any] []*entry[T]

func (h maxHeap[T]) Len() int { return len(h) }

func (h maxHeap[T]) Less(i, j int) bool { return h[i].priority > h[j].priority }

func (h maxHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *maxHeap[T]) Push(x any) {
	e := x.(*entry[T])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *maxHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// priorityQueue is a typed wrapper around maxHeap.
type priorityQueue[T any] struct {
	h maxHeap[T]
}

func (q *priorityQueue[T]) Len() int { return q.h.Len() }

func (q *priorityQueue[T]) Push(v T, priority float64) *entry[T] {
	e := &entry[T]{value: v, priority: priority}
	heap.Push(&q.h, e)
	return e
}

// Pop removes and returns the value with the largest priority.
func (q *priorityQueue[T]) Pop() (T, float64) {
	e := heap.Pop(&q.h).(*entry[T])
	return e.value, e.priority
}

// Update changes the priority of an entry still in the queue.
func (q *priorityQueue[T]) Update(e *entry[T], priority float64) {
	if e.index < 0 {
		return
	}
	e.priority = priority
	heap.Fix(&q.h, e.index)
}

// Remove takes an entry out of the queue.
func (q *priorityQueue[T]) Remove(e *entry[T]) {
	if e.index < 0 {
		return
	}
	heap.Remove(&q.h, e.index)
}

// Values returns the queued values, largest priority first, leaving the queue untouched.
func (q *priorityQueue[T]) Values() []T {
	cp := make(maxHeap[T], len(q.h))
	for i, e := range q.h {
		cp[i] = &entry[T]{value: e.value, priority: e.priority, index: i}
	}
	out := make([]T, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(*entry[T]).value)
	}
	return out
}

func (q *priorityQueue[T]) Clear() {
	for _, e := range q.h {
		e.index = -1
	}
	q.h = nil
}
