package plm

import (
	"context"
	"io"
	"iter"
	"sync/atomic"

	"github.com/arloliu/go-plm/internal/queue"
)

// EventStream is an unbounded, ordered sequence of the unsolicited frames
// received by a [Conn] after the stream was created.
//
// Frames are buffered without limit until pulled with Next, so a slow
// consumer never stalls the read loop. Each stream is meant to be consumed by
// one goroutine; create one stream per consumer with [Conn.Subscribe].
type EventStream struct {
	conn   *Conn
	id     uint64
	frames *queue.LockFreeQueue[Frame]
	signal chan struct{}
	closed atomic.Bool
}

func newEventStream(c *Conn, id uint64) *EventStream {
	return &EventStream{
		conn:   c,
		id:     id,
		frames: queue.NewLockFreeQueue[Frame](),
		signal: make(chan struct{}, 1),
	}
}

// Next returns the next frame, blocking until one arrives or ctx is done.
//
// Once the stream is closed, either by Close or because the connection
// stopped, Next returns the frames still buffered and then io.EOF.
func (s *EventStream) Next(ctx context.Context) (Frame, error) {
	for {
		if f, ok := s.frames.Dequeue(); ok {
			return f, nil
		}

		if s.closed.Load() {
			// a push may have raced with close
			if f, ok := s.frames.Dequeue(); ok {
				return f, nil
			}

			return Frame{}, io.EOF
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-s.signal:
		}
	}
}

// All returns an iterator over the stream's frames. Iteration ends when the
// stream is closed and drained, or when ctx is done.
func (s *EventStream) All(ctx context.Context) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		for {
			f, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(f) {
				return
			}
		}
	}
}

// Len returns the number of buffered frames.
func (s *EventStream) Len() int {
	return s.frames.Length()
}

// Close detaches the stream from its connection. Frames already buffered can
// still be read.
func (s *EventStream) Close() {
	s.conn.unsubscribe(s)
	s.close()
}

func (s *EventStream) push(f Frame) {
	if s.closed.Load() {
		return
	}

	s.frames.Enqueue(f)
	s.notify()
}

func (s *EventStream) close() {
	if s.closed.CompareAndSwap(false, true) {
		s.notify()
	}
}

func (s *EventStream) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}
