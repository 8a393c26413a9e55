package modem

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/internal/pool"
	"github.com/arloliu/go-plm/logger"
	"github.com/arloliu/go-plm/plm"
)

// Modem is the command API of a PowerLinc Modem. It is safe for concurrent
// use, although the modem itself processes one command at a time.
type Modem struct {
	conn   *plm.Conn
	opts   options
	logger logger.Logger
}

// New creates a Modem issuing commands over conn.
func New(conn *plm.Conn, opts ...Option) (*Modem, error) {
	if conn == nil {
		return nil, errors.New("modem: connection is nil")
	}

	o := options{
		nakRetries:  DefaultNakRetries,
		retryDelay:  DefaultRetryDelay,
		linkTimeout: DefaultLinkTimeout,
		logger:      conn.Config().GetLogger(),
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	return &Modem{conn: conn, opts: o, logger: o.logger}, nil
}

// Open creates the connection over t and the Modem on top of it.
func Open(t plm.Transport, connOpts []plm.ConnOption, opts ...Option) (*Modem, error) {
	conn, err := plm.NewConn(t, connOpts...)
	if err != nil {
		return nil, err
	}

	m, err := New(conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return m, nil
}

// Conn returns the underlying protocol engine.
func (m *Modem) Conn() *plm.Conn {
	return m.conn
}

// Close closes the underlying connection.
func (m *Modem) Close() error {
	return m.conn.Close()
}

// GetInfo returns the address, device category and firmware of the modem.
func (m *Modem) GetInfo(ctx context.Context) (ModemInfo, error) {
	resp, err := m.sendFrame(ctx, plm.NewGetInfo())
	if err != nil {
		return ModemInfo{}, err
	}

	return modemInfoFromFrame(resp)
}

// SendMessage sends msg and waits for the addressed device to acknowledge
// it. The acknowledgement is returned.
func (m *Modem) SendMessage(ctx context.Context, msg Message, opts ...plm.SendOption) (Message, error) {
	opts = append([]plm.SendOption{plm.WithReply(plm.DeviceAckKey(msg.To))}, opts...)

	m.logger.Debug("modem: send message", "message", msg.String())

	resp, err := m.sendFrame(ctx, msg.Frame(), opts...)
	if err != nil {
		return Message{}, err
	}

	ack, err := MessageFromFrame(resp)
	if err != nil {
		return Message{}, err
	}
	if !ack.IsAckOf(msg) {
		return ack, fmt.Errorf("%w: %s does not acknowledge %s", ErrUnexpectedResponse, ack, msg)
	}

	return ack, nil
}

// TurnOn turns a device on. level is a percentage applied by dimmable
// devices; fast skips the ramp.
func (m *Modem) TurnOn(ctx context.Context, addr insteon.Address, level uint8, fast bool) (Message, error) {
	cmd := insteon.CmdOn
	if fast {
		cmd = insteon.CmdOnFast
	}

	return m.SendMessage(ctx, NewMessage(addr, cmd, insteon.LevelFromPercent(level)))
}

// TurnOff turns a device off; fast skips the ramp.
func (m *Modem) TurnOff(ctx context.Context, addr insteon.Address, fast bool) (Message, error) {
	cmd := insteon.CmdOff
	if fast {
		cmd = insteon.CmdOffFast
	}

	return m.SendMessage(ctx, NewMessage(addr, cmd, 0x00))
}

// Ping checks that a device is reachable.
func (m *Modem) Ping(ctx context.Context, addr insteon.Address) error {
	_, err := m.SendMessage(ctx, NewMessage(addr, insteon.CmdPing, 0x00))
	return err
}

// Beep makes a device beep once.
func (m *Modem) Beep(ctx context.Context, addr insteon.Address) error {
	_, err := m.SendMessage(ctx, NewMessage(addr, insteon.CmdBeep, 0x00))
	return err
}

// Status queries the on-level of a device.
func (m *Modem) Status(ctx context.Context, addr insteon.Address) (DeviceStatus, error) {
	ack, err := m.SendMessage(ctx, NewMessage(addr, insteon.CmdStatusRequest, 0x00))
	if err != nil {
		return DeviceStatus{}, err
	}

	return DeviceStatus{Delta: ack.Cmd1, Level: ack.Cmd2}, nil
}

// Version queries the INSTEON engine version of a device.
func (m *Modem) Version(ctx context.Context, addr insteon.Address) (byte, error) {
	ack, err := m.SendMessage(ctx, NewMessage(addr, insteon.CmdVersionQuery, 0x00))
	if err != nil {
		return 0, err
	}

	return ack.Cmd2, nil
}

// Links reads the modem's ALL-Link database.
//
// The modem answers Get First/Next with a record, or with a NAK once there
// are no more records, so an empty database yields no records and no error.
func (m *Modem) Links(ctx context.Context) ([]LinkRecord, error) {
	reply := plm.WithReply(plm.CodeKey(plm.CodeAllLinkRecord))

	var records []LinkRecord
	cmd := plm.NewGetFirstAllLink()
	for {
		resp, err := m.conn.Send(ctx, cmd, reply)
		if isModemNak(resp, err) {
			return records, nil
		}
		if err != nil {
			return records, err
		}

		rec, err := linkRecordFromFrame(resp)
		if err != nil {
			return records, err
		}
		m.logger.Debug("modem: link record", "address", rec.Address, "group", rec.Group, "mode", rec.Mode())
		records = append(records, rec)

		cmd = plm.NewGetNextAllLink()
	}
}

// LinkDevice links a device to the modem in the given mode and group.
//
// When addr is set, the device is first asked to enter linking mode with an
// extended StartLinking message; otherwise someone must hold the set button
// of the device. LinkDevice waits up to the link timeout for the modem to
// report the completed link, and always leaves linking mode afterwards.
func (m *Modem) LinkDevice(ctx context.Context, addr *insteon.Address, mode LinkMode, group byte) (LinkComplete, error) {
	if _, err := m.sendFrame(ctx, plm.NewCancelAllLink()); err != nil {
		return LinkComplete{}, err
	}

	if addr != nil {
		if _, err := m.SendMessage(ctx, NewExtendedMessage(*addr, insteon.CmdStartLinking, group, nil)); err != nil {
			return LinkComplete{}, err
		}
	}

	complete, err := m.conn.Expect(plm.CodeKey(plm.CodeAllLinkComplete), m.opts.linkTimeout)
	if err != nil {
		return LinkComplete{}, err
	}

	var resp plm.Frame
	if _, err = m.sendFrame(ctx, plm.NewStartAllLink(byte(mode), group)); err != nil {
		complete.Cancel()
	} else {
		m.logger.Info("modem: waiting for link", "mode", mode, "group", group, "timeout", m.opts.linkTimeout)
		resp, err = complete.Wait(ctx)
	}

	// leave linking mode even when ctx is already done
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.conn.Config().CommandTimeout())
	defer cancel()

	if addr != nil {
		if _, cerr := m.SendMessage(cleanupCtx, NewExtendedMessage(*addr, insteon.CmdCancelLinking, group, nil)); cerr != nil {
			m.logger.Debug("modem: device did not leave linking mode", "address", *addr, "error", cerr)
		}
	}
	if _, cerr := m.sendFrame(cleanupCtx, plm.NewCancelAllLink()); cerr != nil {
		m.logger.Warn("modem: cancel linking failed", "error", cerr)
	}

	if err != nil {
		return LinkComplete{}, err
	}

	return linkCompleteFromFrame(resp)
}

// ManageLink edits one record of the modem's link database. The modem
// answers NAK, returned as plm.ErrModemNak, when the record to find, modify
// or delete does not exist.
func (m *Modem) ManageLink(ctx context.Context, action ManageAction, rec LinkRecord) error {
	cmd := plm.NewManageAllLinkRecord(byte(action), byte(rec.Flags), rec.Group, rec.Address, rec.Data)
	_, err := m.conn.Send(ctx, cmd)

	return err
}

// Listen returns a stream of the INSTEON messages received from now on.
// The stream must be closed when no longer needed.
func (m *Modem) Listen() *MessageStream {
	return &MessageStream{events: m.conn.Subscribe()}
}

// sendFrame sends cmd, retrying while the modem refuses it with a NAK echo.
func (m *Modem) sendFrame(ctx context.Context, cmd plm.Frame, opts ...plm.SendOption) (plm.Frame, error) {
	for attempt := 1; ; attempt++ {
		resp, err := m.conn.Send(ctx, cmd, opts...)
		if err == nil || !isModemNak(resp, err) || attempt >= m.opts.nakRetries {
			return resp, err
		}

		m.logger.Warn("modem: command not acknowledged, retrying",
			"code", cmd.Code.String(),
			"attempt", attempt,
			"delay", m.opts.retryDelay)

		if err := pool.Sleep(ctx, m.opts.retryDelay); err != nil {
			return plm.Frame{}, err
		}
	}
}

// isModemNak reports whether err is the modem refusing a command, as opposed
// to a NAK from the addressed device.
func isModemNak(resp plm.Frame, err error) bool {
	return errors.Is(err, plm.ErrModemNak) && resp.Kind == plm.KindNak
}

// MessageStream is a stream of received INSTEON messages.
type MessageStream struct {
	events *plm.EventStream
}

// Next returns the next received message. Frames that are not INSTEON
// messages are skipped. It returns io.EOF once the connection has stopped.
func (s *MessageStream) Next(ctx context.Context) (Message, error) {
	for {
		f, err := s.events.Next(ctx)
		if err != nil {
			return Message{}, err
		}

		if msg, err := MessageFromFrame(f); err == nil {
			return msg, nil
		}
	}
}

// All returns an iterator over the received messages.
func (s *MessageStream) All(ctx context.Context) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		for {
			msg, err := s.Next(ctx)
			if err != nil || !yield(msg) {
				return
			}
		}
	}
}

// Close stops the stream.
func (s *MessageStream) Close() {
	s.events.Close()
}
