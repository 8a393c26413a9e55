package plm

import (
	"fmt"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/internal/util"
)

// Encode returns the wire bytes of f.
//
// A KindCommand frame is encoded as written by the host; KindAck and KindNak
// as the modem's echo with its terminator; KindEvent as an unsolicited modem
// frame; KindMalformed as its single stray byte. The extended message checksum
// of a Send INSTEON frame is always recomputed.
//
// The payload length must match the layout of the code exactly, otherwise
// Encode fails with [ErrEncoding] without writing anything.
func Encode(f Frame) ([]byte, error) {
	if f.Kind == KindMalformed {
		if len(f.Payload) != 1 {
			return nil, fmt.Errorf("%w: malformed frame must hold one byte, got %d", ErrEncoding, len(f.Payload))
		}

		return []byte{f.Payload[0]}, nil
	}

	if err := validateCode(f.Kind, f.Code); err != nil {
		return nil, err
	}

	want, err := bodyLen(f.Kind, f.Code, f.Payload)
	if err != nil {
		return nil, err
	}
	if len(f.Payload) != want {
		return nil, fmt.Errorf("%w: %s body must be %d bytes, got %d", ErrEncoding, f.Code, want, len(f.Payload))
	}

	size := 2 + want
	if f.Kind == KindAck || f.Kind == KindNak {
		size++
	}

	out := make([]byte, 0, size)
	out = append(out, STX, byte(f.Code))
	out = append(out, f.Payload...)

	if f.Code == CodeSendInsteon && want == sendExtendedLen {
		body := out[2:]
		body[sendExtendedLen-1] = Checksum(body[4], body[5], body[6:sendExtendedLen-1])
	}

	switch f.Kind {
	case KindAck:
		out = append(out, ACK)
	case KindNak:
		out = append(out, NAK)
	}

	return out, nil
}

// Decode recognizes one modem-to-host frame at the head of buf.
//
// It returns:
//   - nil, 0, nil when buf does not yet hold a complete frame
//   - the frame and the number of bytes it spans when one is recognized
//   - nil, 1, [ErrResync] when the head byte cannot start any frame; the
//     caller discards one byte and tries again
//
// A stray ACK or NAK byte is returned as a one-byte KindMalformed frame. The
// returned frame never aliases buf.
func Decode(buf []byte) (*Frame, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}

	switch buf[0] {
	case STX:
	case ACK, NAK:
		return &Frame{Kind: KindMalformed, Payload: []byte{buf[0]}}, 1, nil
	default:
		return nil, 1, fmt.Errorf("%w: unexpected byte 0x%02X", ErrResync, buf[0])
	}

	if len(buf) < 2 {
		return nil, 0, nil
	}

	code := Code(buf[1])
	switch {
	case code.IsEvent():
		n := codeTable[code].echo
		if len(buf) < 2+n {
			return nil, 0, nil
		}

		return newDecoded(KindEvent, code, buf[2:2+n]), 2 + n, nil

	case code.IsCommand():
		n, ok := wireBodyLen(code, buf)
		if !ok {
			return nil, 0, nil
		}
		if len(buf) < 2+n+1 {
			return nil, 0, nil
		}

		var kind Kind
		switch buf[2+n] {
		case ACK:
			kind = KindAck
		case NAK:
			kind = KindNak
		default:
			return nil, 1, fmt.Errorf("%w: %s echo terminated by 0x%02X", ErrResync, code, buf[2+n])
		}

		return newDecoded(kind, code, buf[2:2+n]), 2 + n + 1, nil

	default:
		return nil, 1, fmt.Errorf("%w: unknown command code 0x%02X", ErrResync, byte(code))
	}
}

// DecodeCommand recognizes one host-to-modem command frame at the head of
// buf, following the same return conventions as [Decode]. It is the inverse
// of [Encode] for KindCommand frames and is what a modem-side peer uses to
// read commands.
func DecodeCommand(buf []byte) (*Frame, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	if buf[0] != STX {
		return nil, 1, fmt.Errorf("%w: unexpected byte 0x%02X", ErrResync, buf[0])
	}
	if len(buf) < 2 {
		return nil, 0, nil
	}

	code := Code(buf[1])
	if !code.IsCommand() {
		return nil, 1, fmt.Errorf("%w: not a host command 0x%02X", ErrResync, byte(code))
	}

	n, ok := wireBodyLen(code, buf)
	if code != CodeSendInsteon {
		n = codeTable[code].host
	}
	if !ok || len(buf) < 2+n {
		return nil, 0, nil
	}

	return newDecoded(KindCommand, code, buf[2:2+n]), 2 + n, nil
}

func newDecoded(kind Kind, code Code, body []byte) *Frame {
	f := &Frame{Kind: kind, Code: code, Payload: util.CloneSlice(body, 0)}
	f.fillAddress()

	return f
}

// wireBodyLen returns the echo body length of code given the buffered frame
// bytes. ok is false when the length depends on a byte not yet received.
func wireBodyLen(code Code, buf []byte) (int, bool) {
	if code != CodeSendInsteon {
		return codeTable[code].echo, true
	}
	if len(buf) < 2+sendFlagsOffset+1 {
		return 0, false
	}

	return sendInsteonLen(insteon.MessageFlags(buf[2+sendFlagsOffset])), true
}

// bodyLen returns the required payload length of a frame being encoded.
func bodyLen(kind Kind, code Code, payload []byte) (int, error) {
	if code == CodeSendInsteon {
		if len(payload) <= sendFlagsOffset {
			return 0, fmt.Errorf("%w: %s body too short (%d bytes)", ErrEncoding, code, len(payload))
		}

		return sendInsteonLen(insteon.MessageFlags(payload[sendFlagsOffset])), nil
	}

	if kind == KindCommand {
		return codeTable[code].host, nil
	}

	return codeTable[code].echo, nil
}

func validateCode(kind Kind, code Code) error {
	switch kind {
	case KindCommand, KindAck, KindNak:
		if !code.IsCommand() {
			return fmt.Errorf("%w: %s is not a host command", ErrEncoding, code)
		}
	case KindEvent:
		if !code.IsEvent() {
			return fmt.Errorf("%w: %s is not a modem event", ErrEncoding, code)
		}
	default:
		return fmt.Errorf("%w: unknown frame kind %s", ErrEncoding, kind)
	}

	return nil
}

func sendInsteonLen(flags insteon.MessageFlags) int {
	if flags.IsExtended() {
		return sendExtendedLen
	}

	return sendStandardLen
}
