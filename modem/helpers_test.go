package modem

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/plm"
)

var (
	modemAddr  = insteon.MustParseAddress("11.22.33")
	deviceAddr = insteon.MustParseAddress("22.33.44")
)

// simModem simulates a PowerLinc Modem with a few linked devices on the far
// side of a net.Pipe.
type simModem struct {
	conn net.Conn

	mu          sync.Mutex
	cmds        []plm.Frame
	naks        int  // number of commands to refuse before accepting
	deviceNak   bool // devices answer NAK instead of ACK
	silent      bool // devices never answer
	noComplete  bool // never report a completed link
	status      [2]byte
	version     byte
	links       [][]byte
	linkCursor  int
	linkEchoNak bool // Manage ALL-Link Record answers NAK
}

func newTestModem(t *testing.T, sim *simModem, opts ...Option) *Modem {
	t.Helper()

	local, remote := net.Pipe()
	sim.conn = remote

	conn, err := plm.NewConn(local,
		plm.WithCommandTimeout(time.Second),
		plm.WithSweepInterval(10*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("newTestModem: %v", err)
	}

	m, err := New(conn, append([]Option{WithRetryDelay(time.Millisecond)}, opts...)...)
	if err != nil {
		t.Fatalf("newTestModem: %v", err)
	}

	go sim.run()

	t.Cleanup(func() {
		_ = m.Close()
		_ = remote.Close()
	})

	return m
}

func (s *simModem) run() {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 64)
	for {
		n, err := s.conn.Read(chunk)
		buf = append(buf, chunk[:n]...)

		for len(buf) > 0 {
			f, used, decErr := plm.DecodeCommand(buf)
			if decErr != nil {
				buf = buf[used:]
				continue
			}
			if f == nil {
				break
			}
			buf = buf[used:]
			s.handle(*f)
		}

		if err != nil {
			return
		}
	}
}

func (s *simModem) commands() []plm.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]plm.Frame(nil), s.cmds...)
}

func (s *simModem) write(frames ...[]byte) {
	for _, f := range frames {
		if _, err := s.conn.Write(f); err != nil {
			return
		}
	}
}

func (s *simModem) echo(cmd plm.Frame, ack bool, payload []byte) []byte {
	kind := plm.KindNak
	if ack {
		kind = plm.KindAck
	}
	if payload == nil {
		payload = cmd.Payload
	}

	data, _ := plm.Encode(plm.Frame{Kind: kind, Code: cmd.Code, Payload: payload})

	return data
}

func (s *simModem) handle(cmd plm.Frame) {
	s.mu.Lock()
	s.cmds = append(s.cmds, cmd)
	refuse := s.naks > 0
	if refuse {
		s.naks--
	}
	s.mu.Unlock()

	if refuse {
		var payload []byte
		if cmd.Code == plm.CodeGetInfo {
			payload = make([]byte, 6)
		}
		s.write(s.echo(cmd, false, payload))
		return
	}

	switch cmd.Code {
	case plm.CodeGetInfo:
		s.write(s.echo(cmd, true, []byte{modemAddr[0], modemAddr[1], modemAddr[2], 0x03, 0x15, 0x9E}))

	case plm.CodeSendInsteon:
		s.write(s.echo(cmd, true, nil))
		if s.silent {
			return
		}
		to, _ := cmd.To()
		s.write(s.deviceReply(to, cmd.Cmd1(), cmd.Cmd2()))

	case plm.CodeGetFirstAllLink, plm.CodeGetNextAllLink:
		if cmd.Code == plm.CodeGetFirstAllLink {
			s.linkCursor = 0
		}
		if s.linkCursor >= len(s.links) {
			s.write(s.echo(cmd, false, nil))
			return
		}
		rec := s.links[s.linkCursor]
		s.linkCursor++
		s.write(s.echo(cmd, true, nil), append([]byte{plm.STX, byte(plm.CodeAllLinkRecord)}, rec...))

	case plm.CodeStartAllLink:
		s.write(s.echo(cmd, true, nil))
		if s.noComplete {
			return
		}
		mode, group := cmd.Payload[0], cmd.Payload[1]
		s.write([]byte{plm.STX, byte(plm.CodeAllLinkComplete), mode, group,
			deviceAddr[0], deviceAddr[1], deviceAddr[2], 0x02, 0x1A, 0x41})

	case plm.CodeManageAllLinkRecord:
		s.write(s.echo(cmd, !s.linkEchoNak, nil))

	default:
		s.write(s.echo(cmd, true, nil))
	}
}

// deviceReply builds the direct ACK (or NAK) a device sends back.
func (s *simModem) deviceReply(from insteon.Address, cmd1, cmd2 byte) []byte {
	flags := insteon.FlagAck
	switch {
	case s.deviceNak:
		flags |= insteon.FlagBroadcastOrNak
		cmd2 = 0xFF
	case cmd1 == insteon.CmdStatusRequest:
		cmd1, cmd2 = s.status[0], s.status[1]
	case cmd1 == insteon.CmdVersionQuery:
		cmd2 = s.version
	}

	return []byte{plm.STX, byte(plm.CodeStandardReceived),
		from[0], from[1], from[2],
		modemAddr[0], modemAddr[1], modemAddr[2],
		byte(flags.WithHops(3)), cmd1, cmd2}
}
