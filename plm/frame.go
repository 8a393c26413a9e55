package plm

import (
	"fmt"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/internal/util"
)

// Control bytes of the PLM serial protocol.
const (
	// STX starts every frame.
	STX byte = 0x02
	// ACK terminates the echo of an accepted host command.
	ACK byte = 0x06
	// NAK terminates the echo of a rejected host command.
	NAK byte = 0x15
)

// Code is the one-byte command code following STX.
type Code byte

// Unsolicited frames sent by the modem.
const (
	CodeStandardReceived      Code = 0x50
	CodeExtendedReceived      Code = 0x51
	CodeX10Received           Code = 0x52
	CodeAllLinkComplete       Code = 0x53
	CodeButtonEvent           Code = 0x54
	CodeUserReset             Code = 0x55
	CodeAllLinkCleanupFailure Code = 0x56
	CodeAllLinkRecord         Code = 0x57
	CodeAllLinkCleanupStatus  Code = 0x58
)

// Host commands. The modem echoes each of them followed by ACK or NAK.
const (
	CodeGetInfo             Code = 0x60
	CodeSendAllLink         Code = 0x61
	CodeSendInsteon         Code = 0x62
	CodeSendX10             Code = 0x63
	CodeStartAllLink        Code = 0x64
	CodeCancelAllLink       Code = 0x65
	CodeSetHostCategory     Code = 0x66
	CodeReset               Code = 0x67
	CodeSetAckByte          Code = 0x68
	CodeGetFirstAllLink     Code = 0x69
	CodeGetNextAllLink      Code = 0x6A
	CodeSetConfig           Code = 0x6B
	CodeGetAllLinkForSender Code = 0x6C
	CodeLEDOn               Code = 0x6D
	CodeLEDOff              Code = 0x6E
	CodeManageAllLinkRecord Code = 0x6F
	CodeSetNakByte          Code = 0x70
	CodeSetNakTwoBytes      Code = 0x71
	CodeGetConfig           Code = 0x73
)

// Body sizes of Send INSTEON (0x62) and the INSTEON receive frames.
const (
	sendStandardLen = 6  // to(3) flags cmd1 cmd2
	sendExtendedLen = 20 // to(3) flags cmd1 cmd2 data(14)
	recvStandardLen = 9  // from(3) to(3) flags cmd1 cmd2
	recvExtendedLen = 23 // from(3) to(3) flags cmd1 cmd2 data(14)
	sendFlagsOffset = 3
	recvFlagsOffset = 6
	extendedDataLen = 14
	addrLen         = 3
	noAddress       = -1
	variableLen     = -1 // Send INSTEON: depends on the extended flag
)

// codeInfo describes the layout of one command code.
//
// host is the body length of the command written by the host, echo the body
// length of the modem's echo (or of the unsolicited frame). addr and echoAddr
// are the offsets of the device address inside those bodies, or noAddress.
type codeInfo struct {
	name     string
	host     int
	echo     int
	addr     int
	echoAddr int
}

var codeTable = map[Code]codeInfo{
	CodeStandardReceived:      {"StandardReceived", 0, recvStandardLen, noAddress, 0},
	CodeExtendedReceived:      {"ExtendedReceived", 0, recvExtendedLen, noAddress, 0},
	CodeX10Received:           {"X10Received", 0, 2, noAddress, noAddress},
	CodeAllLinkComplete:       {"AllLinkComplete", 0, 8, noAddress, 2},
	CodeButtonEvent:           {"ButtonEvent", 0, 1, noAddress, noAddress},
	CodeUserReset:             {"UserReset", 0, 0, noAddress, noAddress},
	CodeAllLinkCleanupFailure: {"AllLinkCleanupFailure", 0, 5, noAddress, 2},
	CodeAllLinkRecord:         {"AllLinkRecord", 0, 8, noAddress, 2},
	CodeAllLinkCleanupStatus:  {"AllLinkCleanupStatus", 0, 1, noAddress, noAddress},

	CodeGetInfo:             {"GetInfo", 0, 6, noAddress, 0},
	CodeSendAllLink:         {"SendAllLink", 3, 3, noAddress, noAddress},
	CodeSendInsteon:         {"SendInsteon", variableLen, variableLen, 0, 0},
	CodeSendX10:             {"SendX10", 2, 2, noAddress, noAddress},
	CodeStartAllLink:        {"StartAllLink", 2, 2, noAddress, noAddress},
	CodeCancelAllLink:       {"CancelAllLink", 0, 0, noAddress, noAddress},
	CodeSetHostCategory:     {"SetHostCategory", 3, 3, noAddress, noAddress},
	CodeReset:               {"Reset", 0, 0, noAddress, noAddress},
	CodeSetAckByte:          {"SetAckByte", 1, 1, noAddress, noAddress},
	CodeGetFirstAllLink:     {"GetFirstAllLink", 0, 0, noAddress, noAddress},
	CodeGetNextAllLink:      {"GetNextAllLink", 0, 0, noAddress, noAddress},
	CodeSetConfig:           {"SetConfig", 1, 1, noAddress, noAddress},
	CodeGetAllLinkForSender: {"GetAllLinkForSender", 0, 0, noAddress, noAddress},
	CodeLEDOn:               {"LEDOn", 0, 0, noAddress, noAddress},
	CodeLEDOff:              {"LEDOff", 0, 0, noAddress, noAddress},
	CodeManageAllLinkRecord: {"ManageAllLinkRecord", 9, 9, 3, 3},
	CodeSetNakByte:          {"SetNakByte", 1, 1, noAddress, noAddress},
	CodeSetNakTwoBytes:      {"SetNakTwoBytes", 2, 2, noAddress, noAddress},
	CodeGetConfig:           {"GetConfig", 0, 3, noAddress, noAddress},
}

// IsCommand reports whether c is a host command code.
func (c Code) IsCommand() bool {
	_, ok := codeTable[c]
	return ok && c >= CodeGetInfo
}

// IsEvent reports whether c is an unsolicited modem frame code.
func (c Code) IsEvent() bool {
	_, ok := codeTable[c]
	return ok && c < CodeGetInfo
}

func (c Code) String() string {
	if info, ok := codeTable[c]; ok {
		return fmt.Sprintf("%s(0x%02X)", info.name, byte(c))
	}

	return fmt.Sprintf("Unknown(0x%02X)", byte(c))
}

// Kind classifies a decoded frame.
type Kind uint8

const (
	// KindCommand is a host command, as written to the modem.
	KindCommand Kind = iota
	// KindAck is the modem's echo of an accepted command.
	KindAck
	// KindNak is the modem's echo of a rejected command.
	KindNak
	// KindEvent is an unsolicited frame from the modem.
	KindEvent
	// KindMalformed is a stray ACK or NAK byte received outside any frame.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "Command"
	case KindAck:
		return "Ack"
	case KindNak:
		return "Nak"
	case KindEvent:
		return "Event"
	case KindMalformed:
		return "Malformed"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Frame is one complete PLM frame.
//
// Payload holds the body bytes following the command code, excluding the
// ACK/NAK terminator of an echo. For a KindMalformed frame Payload holds the
// single stray byte and Code is zero.
//
// Address is the device address carried by the frame, if any: the target of
// a Send INSTEON command, the sender of a received INSTEON message, the modem
// itself for Get IM Info, and the linked device for ALL-Link frames.
type Frame struct {
	Kind       Kind
	Code       Code
	Address    insteon.Address
	HasAddress bool
	Payload    []byte
}

// NewCommand creates a host command frame from its code and body.
//
// The body is copied. Its length is validated by [Encode].
func NewCommand(code Code, body ...byte) Frame {
	f := Frame{Kind: KindCommand, Code: code, Payload: util.CloneSlice(body, 0)}
	f.fillAddress()

	return f
}

// NewSendStandard creates a Send INSTEON command carrying a standard message.
// flags should not have FlagExtended set; it is cleared if it does.
func NewSendStandard(to insteon.Address, flags insteon.MessageFlags, cmd1, cmd2 byte) Frame {
	flags &^= insteon.FlagExtended

	return NewCommand(CodeSendInsteon, to[0], to[1], to[2], byte(flags), cmd1, cmd2)
}

// NewSendExtended creates a Send INSTEON command carrying an extended
// message. data is copied into data bytes 1..13 (extra bytes are ignored) and
// data byte 14 is set to the checksum.
func NewSendExtended(to insteon.Address, flags insteon.MessageFlags, cmd1, cmd2 byte, data []byte) Frame {
	flags |= insteon.FlagExtended

	body := make([]byte, sendExtendedLen)
	copy(body, to[:])
	body[sendFlagsOffset] = byte(flags)
	body[4] = cmd1
	body[5] = cmd2
	copy(body[6:6+extendedDataLen-1], data)
	body[sendExtendedLen-1] = Checksum(cmd1, cmd2, body[6:sendExtendedLen-1])

	return NewCommand(CodeSendInsteon, body...)
}

// NewGetInfo creates a Get IM Info command.
func NewGetInfo() Frame { return NewCommand(CodeGetInfo) }

// NewStartAllLink creates a Start ALL-Linking command.
func NewStartAllLink(mode, group byte) Frame { return NewCommand(CodeStartAllLink, mode, group) }

// NewCancelAllLink creates a Cancel ALL-Linking command.
func NewCancelAllLink() Frame { return NewCommand(CodeCancelAllLink) }

// NewGetFirstAllLink creates a Get First ALL-Link Record command.
func NewGetFirstAllLink() Frame { return NewCommand(CodeGetFirstAllLink) }

// NewGetNextAllLink creates a Get Next ALL-Link Record command.
func NewGetNextAllLink() Frame { return NewCommand(CodeGetNextAllLink) }

// NewReset creates a Reset IM command, which erases the modem's link database.
func NewReset() Frame { return NewCommand(CodeReset) }

// NewSendAllLink creates a Send ALL-Link command to group.
func NewSendAllLink(group, cmd1, cmd2 byte) Frame {
	return NewCommand(CodeSendAllLink, group, cmd1, cmd2)
}

// NewManageAllLinkRecord creates a Manage ALL-Link Record command.
func NewManageAllLinkRecord(action, flags, group byte, addr insteon.Address, data [3]byte) Frame {
	return NewCommand(CodeManageAllLinkRecord,
		action, flags, group, addr[0], addr[1], addr[2], data[0], data[1], data[2])
}

// IsInsteon reports whether the frame carries an INSTEON message: a Send
// INSTEON command or echo, or a standard/extended receive.
func (f Frame) IsInsteon() bool {
	switch f.Code {
	case CodeSendInsteon:
		return len(f.Payload) >= sendStandardLen
	case CodeStandardReceived, CodeExtendedReceived:
		return len(f.Payload) >= recvStandardLen
	default:
		return false
	}
}

// Flags returns the INSTEON message flags, or zero if the frame does not
// carry an INSTEON message.
func (f Frame) Flags() insteon.MessageFlags {
	if !f.IsInsteon() {
		return 0
	}

	return insteon.MessageFlags(f.Payload[f.flagsOffset()])
}

// Cmd1 returns the first command byte of an INSTEON message.
func (f Frame) Cmd1() byte {
	if !f.IsInsteon() {
		return 0
	}

	return f.Payload[f.flagsOffset()+1]
}

// Cmd2 returns the second command byte of an INSTEON message.
func (f Frame) Cmd2() byte {
	if !f.IsInsteon() {
		return 0
	}

	return f.Payload[f.flagsOffset()+2]
}

// To returns the destination address of an INSTEON message.
func (f Frame) To() (insteon.Address, bool) {
	switch {
	case !f.IsInsteon():
		return insteon.Address{}, false
	case f.Code == CodeSendInsteon:
		return insteon.AddressFromBytes(f.Payload[0:3]), true
	default:
		return insteon.AddressFromBytes(f.Payload[3:6]), true
	}
}

// From returns the sender address of a received INSTEON message.
func (f Frame) From() (insteon.Address, bool) {
	if !f.IsInsteon() || f.Code == CodeSendInsteon {
		return insteon.Address{}, false
	}

	return insteon.AddressFromBytes(f.Payload[0:3]), true
}

// ExtData returns the 14 user data bytes of an extended INSTEON message, or
// nil for a standard one.
func (f Frame) ExtData() []byte {
	if !f.IsInsteon() {
		return nil
	}

	start := f.flagsOffset() + 3
	if len(f.Payload) < start+extendedDataLen {
		return nil
	}

	return f.Payload[start : start+extendedDataLen]
}

// Key returns the correlation key the frame resolves, and false when the
// frame can only be published as an event.
func (f Frame) Key() (Key, bool) {
	switch f.Kind {
	case KindAck, KindNak:
		return echoKey(f.Code, f.Address, f.HasAddress), true
	case KindEvent:
		switch f.Code {
		case CodeStandardReceived, CodeExtendedReceived:
			flags := f.Flags()
			if flags.IsDirectAck() || flags.IsDirectNak() {
				return DeviceAckKey(f.Address), true
			}
		case CodeAllLinkRecord, CodeAllLinkComplete:
			return CodeKey(f.Code), true
		}
	}

	return Key{}, false
}

// EchoKey returns the key the modem's echo of this command resolves.
func (f Frame) EchoKey() Key {
	return echoKey(f.Code, f.Address, f.HasAddress)
}

func (f Frame) String() string {
	if f.Kind == KindMalformed {
		return fmt.Sprintf("Malformed[%s]", util.HexString(f.Payload))
	}

	if f.HasAddress {
		return fmt.Sprintf("%s %s %s [%s]", f.Kind, f.Code, f.Address, util.HexString(f.Payload))
	}

	return fmt.Sprintf("%s %s [%s]", f.Kind, f.Code, util.HexString(f.Payload))
}

func (f Frame) flagsOffset() int {
	if f.Code == CodeSendInsteon {
		return sendFlagsOffset
	}

	return recvFlagsOffset
}

// fillAddress sets Address from the payload according to the code layout.
func (f *Frame) fillAddress() {
	info, ok := codeTable[f.Code]
	if !ok {
		return
	}

	off := info.echoAddr
	if f.Kind == KindCommand {
		off = info.addr
	}
	if off == noAddress || len(f.Payload) < off+addrLen {
		return
	}

	f.Address = insteon.AddressFromBytes(f.Payload[off : off+addrLen])
	f.HasAddress = true
}

// Checksum returns the data byte 14 checksum of an extended message: the
// two's complement of the sum of cmd1, cmd2 and data bytes 1..13.
func Checksum(cmd1, cmd2 byte, data []byte) byte {
	sum := cmd1 + cmd2
	for i, b := range data {
		if i >= extendedDataLen-1 {
			break
		}
		sum += b
	}

	return -sum
}

// Key identifies which pending request a response frame resolves.
type Key struct {
	Code       Code
	Address    insteon.Address
	HasAddress bool
}

// CodeKey returns a key matching on the command code alone.
func CodeKey(code Code) Key {
	return Key{Code: code}
}

// AddressKey returns a key matching on the command code and device address.
func AddressKey(code Code, addr insteon.Address) Key {
	return Key{Code: code, Address: addr, HasAddress: true}
}

// DeviceAckKey returns the key of a direct ACK/NAK sent by the device addr.
func DeviceAckKey(addr insteon.Address) Key {
	return AddressKey(CodeStandardReceived, addr)
}

func (k Key) String() string {
	if k.HasAddress {
		return fmt.Sprintf("%s/%s", k.Code, k.Address)
	}

	return k.Code.String()
}

func echoKey(code Code, addr insteon.Address, hasAddr bool) Key {
	if hasAddr && (code == CodeSendInsteon || code == CodeManageAllLinkRecord) {
		return AddressKey(code, addr)
	}

	return CodeKey(code)
}
