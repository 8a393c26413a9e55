package plm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-plm/internal/pool"
	"github.com/arloliu/go-plm/internal/task"
	"github.com/arloliu/go-plm/internal/util"
	"github.com/arloliu/go-plm/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// Sentinel errors of the PLM protocol engine.
var (
	// ErrEncoding is returned when a command cannot be encoded, typically
	// because its payload does not fit the layout of its command code.
	ErrEncoding = errors.New("plm: encoding error")

	// ErrResync is returned by Decode when the head byte of the buffer cannot
	// start a frame. Conn handles it internally by skipping the byte.
	ErrResync = errors.New("plm: decode resync")

	ErrCommandTimeout  = errors.New("plm: command timeout")
	ErrModemNak        = errors.New("plm: command rejected (NAK)")
	ErrTransportClosed = errors.New("plm: transport closed")
	ErrEngineStopped   = errors.New("plm: engine stopped")

	errReadLoopExited  = errors.New("plm: read loop exited")
	errWriteLoopExited = errors.New("plm: write loop exited")
)

// Conn is the protocol engine bound to one modem transport.
//
// It owns the transport: a single write loop serializes writes, a single read loop decodes
// incoming bytes and routes each frame either to the pending request it
// answers or to the event streams. A Conn is safe for concurrent use.
//
// A Conn is terminal once stopped: when the transport fails or Close is
// called, every pending request fails with ErrTransportClosed, event streams
// are closed, and further submissions fail with ErrEngineStopped.
type Conn struct {
	cfg       *ConnConfig
	logger    logger.Logger
	transport Transport
	taskMgr   *task.Manager

	// writeCh hands frames to the write loop; a send succeeds only while
	// the loop is idle, so it doubles as the write slot.
	writeCh chan *writeOp

	// stateMu orders registration of requests against shutdown, so no
	// request can be added once the pending table has been drained.
	stateMu sync.RWMutex
	stopped bool
	err     error

	pending *pendingTable
	subs    *xsync.MapOf[uint64, *EventStream]
	subSeq  atomic.Uint64

	rbuf      []byte
	closeOnce sync.Once
	done      chan struct{}

	metrics ConnMetrics
}

// NewConn creates a Conn over t and starts its read loop and deadline sweep.
//
// The Conn takes ownership of t and closes it when stopped.
func NewConn(t Transport, opts ...ConnOption) (*Conn, error) {
	if t == nil {
		return nil, errors.New("plm: transport is nil")
	}

	cfg, err := NewConnConfig(opts...)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		cfg:       cfg,
		logger:    cfg.logger,
		transport: t,
		taskMgr:   task.NewManager(context.Background(), cfg.logger),
		pending:   newPendingTable(),
		subs:      xsync.NewMapOf[uint64, *EventStream](),
		writeCh:   make(chan *writeOp),
		rbuf:      make([]byte, 0, cfg.readBufferSize*2),
		done:      make(chan struct{}),
	}

	readBuf := make([]byte, cfg.readBufferSize)
	readLoop := func() bool { return c.readLoopIteration(readBuf) }
	// stop when the read loop ends for any reason, a panic included
	onExit := func() { c.shutdown(errReadLoopExited) }
	if err := c.taskMgr.Start("readLoop", readLoop, onExit); err != nil {
		return nil, err
	}

	if err := c.taskMgr.Start("writeLoop", c.writeLoopIteration, func() { c.shutdown(errWriteLoopExited) }); err != nil {
		c.shutdown(err)
		return nil, err
	}

	if err := c.taskMgr.StartInterval("sweep", c.sweep, cfg.sweepInterval); err != nil {
		c.shutdown(err)
		return nil, err
	}

	c.logger.Info("plm: engine started", "command_timeout", cfg.commandTimeout)

	return c, nil
}

// Config returns the configuration of the connection.
func (c *Conn) Config() *ConnConfig {
	return c.cfg
}

// Metrics returns the connection metrics.
func (c *Conn) Metrics() *ConnMetrics {
	return &c.metrics
}

// Done returns a channel closed once the connection has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns nil while the connection runs, and the error pending requests
// were failed with once it has stopped.
func (c *Conn) Err() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	return c.err
}

// Close stops the connection, fails pending requests with
// ErrTransportClosed, closes the transport and every event stream, and waits
// for the read loop to exit.
func (c *Conn) Close() error {
	c.shutdown(nil)

	waitDone := make(chan struct{})
	go func() {
		c.taskMgr.Wait()
		close(waitDone)
	}()

	timer := pool.GetTimer(c.cfg.closeTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-waitDone:
		return nil
	case <-timer.C:
		c.logger.Warn("plm: close timeout, read loop still running", "timeout", c.cfg.closeTimeout)
		return fmt.Errorf("plm: close timed out after %v", c.cfg.closeTimeout)
	}
}

// Submit writes cmd to the modem and returns the request awaiting its
// response.
//
// The request is registered before the write, so a response cannot overtake
// it. Encoding errors are returned immediately without touching the
// transport; ErrEngineStopped is returned once the connection has stopped.
//
// Waiting for the transport honours ctx and the request deadline: when
// either ends first the request is abandoned and ctx.Err() or
// ErrCommandTimeout is returned.
func (c *Conn) Submit(ctx context.Context, cmd Frame, opts ...SendOption) (*Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cmd.Kind != KindCommand {
		return nil, fmt.Errorf("%w: cannot submit a %s frame", ErrEncoding, cmd.Kind)
	}

	data, err := Encode(cmd)
	if err != nil {
		return nil, err
	}

	o := c.sendOptions(opts)
	req := newRequest(c, &cmd, cmd.EchoKey(), o)
	req.wire = data[2:]
	if err := c.register(req); err != nil {
		return nil, err
	}

	if err := c.write(ctx, data, req.deadline); err != nil {
		if errors.Is(err, ErrCommandTimeout) {
			c.expire(req)
		} else {
			c.abort(req, err)
		}

		return nil, err
	}

	return req, nil
}

// Send submits cmd and waits for its response. It is the single entry point
// for issuing a command; see [Conn.Submit] and [Request.Wait].
func (c *Conn) Send(ctx context.Context, cmd Frame, opts ...SendOption) (Frame, error) {
	req, err := c.Submit(ctx, cmd, opts...)
	if err != nil {
		return Frame{}, err
	}

	return req.Wait(ctx)
}

// Expect registers a request for the next frame matching key without
// writing anything. A non-positive timeout selects the connection's command
// timeout.
func (c *Conn) Expect(key Key, timeout time.Duration) (*Request, error) {
	req := newRequest(c, nil, key, c.sendOptions([]SendOption{WithTimeout(timeout)}))
	if err := c.register(req); err != nil {
		return nil, err
	}

	return req, nil
}

// Subscribe returns a new stream of the unsolicited frames received from now
// on. The stream of a stopped connection is already closed.
func (c *Conn) Subscribe() *EventStream {
	s := newEventStream(c, c.subSeq.Add(1))

	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	if c.stopped {
		s.close()
		return s
	}
	c.subs.Store(s.id, s)

	return s
}

// PendingCount returns the number of requests waiting for a response.
func (c *Conn) PendingCount() int {
	return c.pending.size()
}

func (c *Conn) unsubscribe(s *EventStream) {
	c.subs.Delete(s.id)
}

func (c *Conn) sendOptions(opts []SendOption) sendOptions {
	o := sendOptions{timeout: c.cfg.commandTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func (c *Conn) register(req *Request) error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	if c.stopped {
		return ErrEngineStopped
	}

	c.metrics.incInflightCount()
	c.pending.add(req.key, req)

	return nil
}

// writeOp is one frame handed to the write loop.
type writeOp struct {
	data     []byte
	deadline time.Time
	result   chan error
}

// write hands data to the write loop and waits for the transport to accept
// it. It gives up when ctx is done or deadline passes, whichever comes first;
// an abandoned frame may still be written later, its response is then
// discarded as stale.
func (c *Conn) write(ctx context.Context, data []byte, deadline time.Time) error {
	op := &writeOp{data: data, deadline: deadline, result: make(chan error, 1)}
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		op.deadline = d
	}

	timer := pool.GetTimer(time.Until(deadline))
	defer pool.PutTimer(timer)

	select {
	case c.writeCh <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: transport busy", ErrCommandTimeout)
	case <-c.done:
		return c.Err()
	}

	select {
	case err := <-op.result:
		if errors.Is(err, ErrCommandTimeout) && ctx.Err() != nil {
			return ctx.Err()
		}

		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: write not accepted", ErrCommandTimeout)
	case <-c.done:
		return c.Err()
	}
}

// writeLoopIteration writes one frame handed over by write.
func (c *Conn) writeLoopIteration() bool {
	var op *writeOp
	select {
	case <-c.taskMgr.Context().Done():
		return false
	case op = <-c.writeCh:
	}

	err := c.writeFrame(op)
	op.result <- err

	return err == nil || errors.Is(err, ErrCommandTimeout)
}

func (c *Conn) writeFrame(op *writeOp) error {
	if wd, ok := c.transport.(writeDeadliner); ok {
		if err := wd.SetWriteDeadline(op.deadline); err == nil {
			defer func() { _ = wd.SetWriteDeadline(time.Time{}) }()
		}
	}

	c.logger.Debug("plm: send frame", "bytes", util.HexString(op.data))

	if _, err := c.transport.Write(op.data); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			c.logger.Warn("plm: transport write deadline exceeded", "bytes", util.HexString(op.data))
			return fmt.Errorf("%w: write not accepted: %w", ErrCommandTimeout, err)
		}

		c.logger.Error("plm: transport write failed", "error", err)
		c.shutdown(err)

		return fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	c.metrics.incFrameSendCount()

	return nil
}

// abort resolves req with err and removes it from the pending table.
func (c *Conn) abort(req *Request, err error) {
	if req.resolve(Frame{}, err) {
		c.forget(req)
	}
}

// expire fails req with ErrCommandTimeout.
func (c *Conn) expire(req *Request) {
	if req.resolve(Frame{}, ErrCommandTimeout) {
		c.metrics.incTimeoutCount()
		c.forget(req)

		c.logger.Warn("plm: command timeout", "key", req.key.String(), "deadline", req.deadline)
	}
}

func (c *Conn) forget(req *Request) {
	if !c.pending.remove(req.key, req) && req.hasReply {
		c.pending.remove(req.reply, req)
	}
}

// sweep fails the requests whose deadline passed without anyone waiting on
// them, and drops resolved requests left in the table.
func (c *Conn) sweep() bool {
	for _, req := range c.pending.expired(time.Now()) {
		if req.resolve(Frame{}, ErrCommandTimeout) {
			c.metrics.incTimeoutCount()
			c.logger.Warn("plm: command timeout", "key", req.key.String(), "deadline", req.deadline)
		}
	}

	return true
}

// readLoopIteration performs one transport read and dispatches every frame
// completed by it.
func (c *Conn) readLoopIteration(buf []byte) bool {
	n, err := c.transport.Read(buf)
	if n > 0 {
		c.rbuf = append(c.rbuf, buf[:n]...)
		c.decodeBuffered()
	}

	if err != nil {
		if isClosedError(err) {
			c.logger.Info("plm: transport closed", "error", err)
		} else {
			c.logger.Error("plm: transport read failed", "error", err)
		}
		c.shutdown(err)

		return false
	}

	return true
}

func (c *Conn) decodeBuffered() {
	off := 0
	for off < len(c.rbuf) {
		f, n, err := Decode(c.rbuf[off:])
		if err != nil {
			c.metrics.incResyncByteCount()
			c.logger.Debug("plm: resync", "byte", fmt.Sprintf("0x%02X", c.rbuf[off]))
			off += n

			continue
		}
		if f == nil {
			break
		}

		off += n
		c.handleFrame(f)
	}

	c.rbuf = append(c.rbuf[:0], c.rbuf[off:]...)
}

func (c *Conn) handleFrame(f *Frame) {
	c.metrics.incFrameRecvCount()
	c.logger.Debug("plm: recv frame", "frame", f.String())

	if f.Kind == KindMalformed {
		c.logger.Debug("plm: stray control byte dropped", "byte", util.HexString(f.Payload))
		return
	}

	if key, ok := f.Key(); ok {
		if req := c.pending.pop(key, func(r *Request) bool { return r.answeredBy(f) }); req != nil {
			c.deliver(req, f)
			return
		}

		if f.Kind != KindEvent {
			c.metrics.incStaleFrameCount()
			c.logger.Warn("plm: unmatched response dropped", "key", key.String(), "frame", f.String())

			return
		}
	}

	if f.Kind == KindEvent {
		c.publish(*f)
	}
}

// deliver resolves req with f, or moves req on to its reply stage when f is
// the ACK echo of a request expecting a reply.
func (c *Conn) deliver(req *Request, f *Frame) {
	var resolved bool
	switch {
	case f.Kind == KindNak:
		resolved = req.resolve(*f, fmt.Errorf("%w: modem refused %s", ErrModemNak, f.Code))
		if resolved {
			c.metrics.incNakCount()
		}

	case f.Kind == KindEvent && f.Flags().IsDirectNak():
		resolved = req.resolve(*f, fmt.Errorf("%w: device %s refused, reason 0x%02X", ErrModemNak, f.Address, f.Cmd2()))
		if resolved {
			c.metrics.incNakCount()
		}

	case f.Kind == KindAck && req.hasReply && req.echo == nil:
		if req.isDone() {
			break
		}
		req.echo = f

		c.stateMu.RLock()
		if !c.stopped {
			c.pending.add(req.reply, req)
			c.stateMu.RUnlock()

			return
		}
		c.stateMu.RUnlock()
		resolved = req.resolve(Frame{}, ErrTransportClosed)

	default:
		resolved = req.resolve(*f, nil)
	}

	if !resolved {
		c.metrics.incStaleFrameCount()
		c.logger.Debug("plm: response for abandoned request discarded", "frame", f.String())
	}
}

func (c *Conn) publish(f Frame) {
	c.metrics.incEventCount()
	c.subs.Range(func(_ uint64, s *EventStream) bool {
		s.push(f)
		return true
	})
}

// shutdown moves the connection to its terminal state. cause is the
// transport error, or nil for an explicit Close.
func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		err := ErrTransportClosed
		if cause != nil && !errors.Is(cause, ErrTransportClosed) {
			err = fmt.Errorf("%w: %w", ErrTransportClosed, cause)
		}

		c.stateMu.Lock()
		c.stopped = true
		c.err = err
		c.stateMu.Unlock()

		c.taskMgr.Stop()
		if closeErr := c.transport.Close(); closeErr != nil && !isClosedError(closeErr) {
			c.logger.Debug("plm: transport close error", "error", closeErr)
		}

		for _, req := range c.pending.drain() {
			req.resolve(Frame{}, err)
		}

		c.subs.Range(func(id uint64, s *EventStream) bool {
			s.close()
			c.subs.Delete(id)

			return true
		})

		close(c.done)
		c.logger.Info("plm: engine stopped", "cause", cause)
	})
}
