package plm

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/logger"
)

var (
	addrA     = insteon.MustParseAddress("22.33.44")
	addrB     = insteon.MustParseAddress("aa.bb.cc")
	addrC     = insteon.MustParseAddress("01.02.03")
	modemAddr = insteon.MustParseAddress("11.22.33")
)

// fakeModem is the modem side of a net.Pipe. It decodes the commands written
// by the Conn and answers them through handler.
type fakeModem struct {
	conn   net.Conn
	cmds   chan Frame
	mu     sync.Mutex
	handle func(m *fakeModem, cmd Frame)
}

// newTestConn creates a Conn wired to a fakeModem. handle may be nil, in
// which case commands are only recorded.
func newTestConn(t *testing.T, handle func(m *fakeModem, cmd Frame), opts ...ConnOption) (*Conn, *fakeModem) {
	t.Helper()

	local, remote := net.Pipe()
	fake := &fakeModem{
		conn:   remote,
		cmds:   make(chan Frame, 64),
		handle: handle,
	}

	defaults := []ConnOption{
		WithCommandTimeout(time.Second),
		WithSweepInterval(10 * time.Millisecond),
		WithCloseTimeout(time.Second),
		WithLogger(logger.GetLogger()),
	}

	c, err := NewConn(local, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestConn: %v", err)
	}

	go fake.run()

	t.Cleanup(func() {
		_ = c.Close()
		_ = remote.Close()
	})

	return c, fake
}

func (m *fakeModem) run() {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 64)
	for {
		n, err := m.conn.Read(chunk)
		buf = append(buf, chunk[:n]...)

		for len(buf) > 0 {
			f, used, decErr := DecodeCommand(buf)
			if decErr != nil {
				buf = buf[used:]
				continue
			}
			if f == nil {
				break
			}
			buf = buf[used:]

			m.cmds <- *f
			if m.handle != nil {
				m.handle(m, *f)
			}
		}

		if err != nil {
			return
		}
	}
}

// write sends raw bytes to the Conn. Errors after the pipe is closed are
// ignored so handlers can race with test cleanup.
func (m *fakeModem) write(data ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range data {
		if _, err := m.conn.Write(d); err != nil {
			return
		}
	}
}

// nextCmd returns the next command received by the fake modem.
func (m *fakeModem) nextCmd(t *testing.T) Frame {
	t.Helper()

	select {
	case f := <-m.cmds:
		return f
	case <-time.After(time.Second):
		t.Fatal("fake modem: no command received")
		return Frame{}
	}
}

func (m *fakeModem) close() {
	_ = m.conn.Close()
}

// echo returns the modem's echo of cmd terminated by ACK or NAK.
func echo(t *testing.T, cmd Frame, ack bool) []byte {
	t.Helper()

	kind := KindNak
	if ack {
		kind = KindAck
	}

	data, err := Encode(Frame{Kind: kind, Code: cmd.Code, Payload: cmd.Payload})
	if err != nil {
		t.Fatalf("echo: %v", err)
	}

	return data
}

// stdRecv returns a standard message received (0x50) frame.
func stdRecv(from, to insteon.Address, flags insteon.MessageFlags, cmd1, cmd2 byte) []byte {
	return []byte{
		STX, byte(CodeStandardReceived),
		from[0], from[1], from[2],
		to[0], to[1], to[2],
		byte(flags), cmd1, cmd2,
	}
}

// directAck returns the direct ACK a device sends to the modem.
func directAck(from insteon.Address, cmd1, cmd2 byte) []byte {
	return stdRecv(from, modemAddr, insteon.FlagAck.WithHops(3), cmd1, cmd2)
}

// directNak returns the direct NAK a device sends to the modem.
func directNak(from insteon.Address, cmd1, reason byte) []byte {
	return stdRecv(from, modemAddr, (insteon.FlagBroadcastOrNak | insteon.FlagAck).WithHops(3), cmd1, reason)
}

// broadcast returns a group broadcast from a device, a typical unsolicited event.
func broadcast(from insteon.Address, cmd1 byte) []byte {
	return stdRecv(from, insteon.Address{0x00, 0x00, 0x01}, (insteon.FlagBroadcastOrNak | insteon.FlagGroup).WithHops(3), cmd1, 0x00)
}
