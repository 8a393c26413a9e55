package queue

// SliceQueue implements the Queue interface using a slice.
//
// It is not goroutine-safe; callers serialize access.
type SliceQueue[T any] struct {
	items []T
}

var _ Queue[int] = (*SliceQueue[int])(nil)

// NewSliceQueue creates a new SliceQueue.
func NewSliceQueue[T any](prealloc int) *SliceQueue[T] {
	return &SliceQueue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds an item to the tail of the queue.
func (q *SliceQueue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
func (q *SliceQueue[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *SliceQueue[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	return q.items[0], true
}

// RemoveFunc removes the first item for which match returns true, keeping
// the order of the remaining items. It reports whether an item was removed.
func (q *SliceQueue[T]) RemoveFunc(match func(T) bool) bool {
	for i, item := range q.items {
		if match(item) {
			copy(q.items[i:], q.items[i+1:])
			var zero T
			q.items[len(q.items)-1] = zero
			q.items = q.items[:len(q.items)-1]

			return true
		}
	}

	return false
}

// Items returns a copy of the queued items in FIFO order.
func (q *SliceQueue[T]) Items() []T {
	out := make([]T, len(q.items))
	copy(out, q.items)

	return out
}

// Reset resets the queue to an empty state.
func (q *SliceQueue[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0] // Reslice to 0 length to reuse the underlying array
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *SliceQueue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Length returns the number of items in the queue.
func (q *SliceQueue[T]) Length() int {
	return len(q.items)
}
