package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueueFIFO(t *testing.T, q Queue[int]) {
	t.Helper()

	assert.True(t, q.IsEmpty())
	_, ok := q.Dequeue()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)

	for i := 1; i <= 5; i++ {
		q.Enqueue(i)
	}
	assert.Equal(t, 5, q.Length())

	v, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	for i := 1; i <= 5; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.True(t, q.IsEmpty())

	q.Enqueue(9)
	q.Reset()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 0, q.Length())
}

func TestSliceQueue(t *testing.T) {
	testQueueFIFO(t, NewSliceQueue[int](4))
}

func TestLockFreeQueue(t *testing.T) {
	testQueueFIFO(t, NewLockFreeQueue[int]())
}

func TestSliceQueue_RemoveFunc(t *testing.T) {
	q := NewSliceQueue[string](0)
	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")

	assert.True(t, q.RemoveFunc(func(s string) bool { return s == "b" }))
	assert.False(t, q.RemoveFunc(func(s string) bool { return s == "x" }))
	assert.Equal(t, []string{"a", "c"}, q.Items())

	v, _ := q.Dequeue()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, q.Length())
}

func TestLockFreeQueue_Concurrent(t *testing.T) {
	q := NewLockFreeQueue[int]()

	const producers = 8
	const perProducer = 1000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Length())

	var mu sync.Mutex
	total := 0
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := 0
			for {
				if _, ok := q.Dequeue(); !ok {
					break
				}
				n++
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, total)
	assert.True(t, q.IsEmpty())
}

func TestLockFreeQueue_SingleProducerOrder(t *testing.T) {
	q := NewLockFreeQueue[int]()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 10000; i++ {
			q.Enqueue(i)
		}
	}()

	next := 0
	for next < 10000 {
		if v, ok := q.Dequeue(); ok {
			require.Equal(t, next, v)
			next++
		}
	}
	<-done
}
