package modem

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/plm"
)

// ErrUnexpectedResponse is returned when the modem answers with a frame that
// does not have the expected layout.
var ErrUnexpectedResponse = errors.New("modem: unexpected response")

// Message is an INSTEON message sent to or received from a device.
type Message struct {
	// From is the sender. It is zero for messages built by the host; the
	// modem fills in its own address.
	From insteon.Address
	To   insteon.Address
	// Flags holds the message type, the extended bit and the hop counts.
	Flags insteon.MessageFlags
	Cmd1  byte
	// Cmd2 often carries a level, group number or other detail of Cmd1.
	Cmd2 byte
	// Data holds the user data of an extended message.
	Data [14]byte
}

// NewMessage creates a standard direct message to the device to.
func NewMessage(to insteon.Address, cmd1, cmd2 byte) Message {
	return Message{
		To:    to,
		Flags: insteon.MessageFlags(0).WithHops(insteon.DefaultMaxHops),
		Cmd1:  cmd1,
		Cmd2:  cmd2,
	}
}

// NewExtendedMessage creates an extended direct message to the device to.
// Up to 13 bytes of data are used; the 14th byte is the checksum, computed
// when the message is sent.
func NewExtendedMessage(to insteon.Address, cmd1, cmd2 byte, data []byte) Message {
	msg := NewMessage(to, cmd1, cmd2)
	msg.Flags |= insteon.FlagExtended
	copy(msg.Data[:13], data)

	return msg
}

// MessageFromFrame extracts the message of a standard or extended receive
// frame.
func MessageFromFrame(f plm.Frame) (Message, error) {
	if f.Code != plm.CodeStandardReceived && f.Code != plm.CodeExtendedReceived {
		return Message{}, fmt.Errorf("%w: %s is not an INSTEON message", ErrUnexpectedResponse, f.Code)
	}
	if !f.IsInsteon() {
		return Message{}, fmt.Errorf("%w: short %s frame", ErrUnexpectedResponse, f.Code)
	}

	msg := Message{
		Flags: f.Flags(),
		Cmd1:  f.Cmd1(),
		Cmd2:  f.Cmd2(),
	}
	msg.From, _ = f.From()
	msg.To, _ = f.To()
	copy(msg.Data[:], f.ExtData())

	return msg, nil
}

// IsExtended reports whether the message carries user data.
func (m Message) IsExtended() bool {
	return m.Flags.IsExtended()
}

// HopsLeft returns the number of hops the message may still travel.
func (m Message) HopsLeft() byte {
	return m.Flags.HopsLeft()
}

// MaxHops returns the hop limit the message was sent with.
func (m Message) MaxHops() byte {
	return m.Flags.MaxHops()
}

// IsAckOf reports whether m acknowledges req: it comes from the device req
// was sent to and has the ACK flag set.
func (m Message) IsAckOf(req Message) bool {
	return m.From == req.To && m.Flags.Has(insteon.FlagAck)
}

// Frame returns the Send INSTEON command carrying m.
func (m Message) Frame() plm.Frame {
	if m.IsExtended() {
		return plm.NewSendExtended(m.To, m.Flags, m.Cmd1, m.Cmd2, m.Data[:13])
	}

	return plm.NewSendStandard(m.To, m.Flags, m.Cmd1, m.Cmd2)
}

func (m Message) String() string {
	name := insteon.CommandName(m.Cmd1)
	if name == "" {
		name = fmt.Sprintf("0x%02X", m.Cmd1)
	}

	s := fmt.Sprintf("%s -> %s [%s] %s 0x%02X hops=%d/%d",
		m.From, m.To, m.Flags, name, m.Cmd2, m.HopsLeft(), m.MaxHops())
	if m.IsExtended() {
		s += fmt.Sprintf(" data=% X", m.Data[:])
	}

	return s
}
