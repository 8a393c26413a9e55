package plm

import (
	"bytes"
	"context"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-plm/internal/pool"
)

// SendOption configures a single request.
type SendOption func(*sendOptions)

type sendOptions struct {
	timeout  time.Duration
	reply    Key
	hasReply bool
}

// WithTimeout overrides the connection's command timeout for one request.
// Non-positive values are ignored.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithReply makes the request wait, after the modem ACKs the command echo,
// for a second frame matching key; that frame becomes the response.
//
// Use [DeviceAckKey] to wait for the addressed device's direct ACK of a
// Send INSTEON command, or [CodeKey] with [CodeAllLinkRecord] to wait for
// the record following Get First/Next ALL-Link Record.
func WithReply(key Key) SendOption {
	return func(o *sendOptions) {
		o.reply = key
		o.hasReply = true
	}
}

// Request is a submitted command, or an expectation registered with
// [Conn.Expect], waiting for its response.
//
// It is resolved exactly once: with the matching frame, or with
// [ErrCommandTimeout], [ErrModemNak], [ErrTransportClosed] or a context error.
type Request struct {
	conn     *Conn
	cmd      *Frame // nil for expectations
	wire     []byte // command body as written
	key      Key
	reply    Key
	hasReply bool
	deadline time.Time

	// echo is the ACK of the command, set by the read loop before the
	// request moves on to waiting for reply.
	echo     *Frame
	resolved atomic.Bool
	done     chan struct{}
	frame    Frame
	err      error
}

func newRequest(c *Conn, cmd *Frame, key Key, opts sendOptions) *Request {
	return &Request{
		conn:     c,
		cmd:      cmd,
		key:      key,
		reply:    opts.reply,
		hasReply: opts.hasReply,
		deadline: time.Now().Add(opts.timeout),
		done:     make(chan struct{}),
	}
}

// Command returns the command frame of the request, or nil for an
// expectation.
func (r *Request) Command() *Frame {
	return r.cmd
}

// Key returns the key of the first response the request waits for.
func (r *Request) Key() Key {
	return r.key
}

// Deadline returns the time after which the request fails with
// ErrCommandTimeout.
func (r *Request) Deadline() time.Time {
	return r.deadline
}

// Done returns a channel closed once the request is resolved.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Echo returns the modem's ACK echo of a request that also waits for a
// reply frame, once it has been received.
func (r *Request) Echo() (Frame, bool) {
	select {
	case <-r.done:
	default:
		return Frame{}, false
	}

	if r.echo == nil {
		return Frame{}, false
	}

	return *r.echo, true
}

// Wait blocks until the request is resolved, its deadline passes or ctx is
// done, and returns the response frame.
//
// On ErrModemNak the returned frame is the NAK itself: a KindNak echo when
// the modem refused the command, or the device's NAK message.
func (r *Request) Wait(ctx context.Context) (Frame, error) {
	timer := pool.GetTimer(time.Until(r.deadline))
	defer pool.PutTimer(timer)

	select {
	case <-r.done:
	case <-ctx.Done():
		r.conn.abort(r, ctx.Err())
	case <-timer.C:
		r.conn.expire(r)
	}

	<-r.done

	return r.frame, r.err
}

// Cancel abandons the request. A response arriving later is discarded.
// Cancel has no effect on a resolved request.
func (r *Request) Cancel() {
	r.conn.abort(r, context.Canceled)
}

// resolve completes the request. Only the first call has any effect; it
// reports whether this call resolved the request.
func (r *Request) resolve(f Frame, err error) bool {
	if !r.resolved.CompareAndSwap(false, true) {
		return false
	}

	r.frame = f
	r.err = err
	close(r.done)
	r.conn.metrics.decInflightCount()

	return true
}

// answeredBy reports whether f can answer the request. A command echo must
// repeat the body that was written, so the echo of an earlier command on the
// same key is not taken for this one.
func (r *Request) answeredBy(f *Frame) bool {
	if r.wire == nil || (f.Kind != KindAck && f.Kind != KindNak) {
		return true
	}

	return bytes.HasPrefix(f.Payload, r.wire)
}

func (r *Request) isDone() bool {
	return r.resolved.Load()
}
