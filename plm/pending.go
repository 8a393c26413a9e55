package plm

import (
	"time"

	"github.com/arloliu/go-plm/internal/queue"
	"github.com/puzpuzpuz/xsync/v3"
)

// pendingTable holds the requests waiting for a response, grouped by key.
//
// Each key maps to a FIFO of requests; xsync's per-key Compute keeps the
// queue mutations atomic against the read loop, the sweep and cancellation.
type pendingTable struct {
	m *xsync.MapOf[Key, *queue.SliceQueue[*Request]]
}

func newPendingTable() *pendingTable {
	return &pendingTable{m: xsync.NewMapOf[Key, *queue.SliceQueue[*Request]]()}
}

// add appends req to the waiting list of key.
func (t *pendingTable) add(key Key, req *Request) {
	t.m.Compute(key, func(q *queue.SliceQueue[*Request], loaded bool) (*queue.SliceQueue[*Request], bool) {
		if !loaded {
			q = queue.NewSliceQueue[*Request](1)
		}
		q.Enqueue(req)

		return q, false
	})
}

// pop removes and returns the oldest live request waiting on key, or nil.
// Resolved requests still queued ahead of it are dropped.
//
// When match is not nil, the oldest live request is only taken if match
// accepts it; otherwise it stays queued and pop returns nil.
func (t *pendingTable) pop(key Key, match func(*Request) bool) *Request {
	var req *Request
	t.m.Compute(key, func(q *queue.SliceQueue[*Request], loaded bool) (*queue.SliceQueue[*Request], bool) {
		if !loaded {
			return q, true
		}

		for {
			head, ok := q.Peek()
			if !ok {
				break
			}
			if head.isDone() {
				q.Dequeue()
				continue
			}
			if match == nil || match(head) {
				q.Dequeue()
				req = head
			}

			break
		}

		return q, q.IsEmpty()
	})

	return req
}

// remove deletes req from the waiting list of key. It reports whether req
// was found.
func (t *pendingTable) remove(key Key, req *Request) bool {
	var found bool
	t.m.Compute(key, func(q *queue.SliceQueue[*Request], loaded bool) (*queue.SliceQueue[*Request], bool) {
		if !loaded {
			return q, true
		}
		found = q.RemoveFunc(func(r *Request) bool { return r == req })

		return q, q.IsEmpty()
	})

	return found
}

// collect returns every request for which match returns true. When remove
// is set, the matching requests are also taken out of the table.
//
// Keys are snapshotted first and each queue is visited under Compute, since a
// SliceQueue must never be read outside of the per-key lock.
func (t *pendingTable) collect(match func(*Request) bool, remove bool) []*Request {
	var keys []Key
	t.m.Range(func(key Key, _ *queue.SliceQueue[*Request]) bool {
		keys = append(keys, key)
		return true
	})

	var out []*Request
	for _, key := range keys {
		t.m.Compute(key, func(q *queue.SliceQueue[*Request], loaded bool) (*queue.SliceQueue[*Request], bool) {
			if !loaded {
				return q, true
			}

			for _, req := range q.Items() {
				if !match(req) {
					continue
				}
				out = append(out, req)
				if remove {
					q.RemoveFunc(func(r *Request) bool { return r == req })
				}
			}

			return q, q.IsEmpty()
		})
	}

	return out
}

// expired removes and returns the requests whose deadline is before now,
// along with those already resolved but still queued.
func (t *pendingTable) expired(now time.Time) []*Request {
	return t.collect(func(req *Request) bool {
		return req.isDone() || now.After(req.deadline)
	}, true)
}

// drain removes and returns every request.
func (t *pendingTable) drain() []*Request {
	return t.collect(func(*Request) bool { return true }, true)
}

// size returns the number of queued requests.
func (t *pendingTable) size() int {
	return len(t.collect(func(*Request) bool { return true }, false))
}
