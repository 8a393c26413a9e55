package modem

import (
	"testing"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/plm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage(deviceAddr, insteon.CmdOn, 0xFF)

	assert.Equal(t, insteon.TypeDirect, msg.Flags.Type())
	assert.False(t, msg.IsExtended())
	assert.Equal(t, byte(3), msg.HopsLeft())
	assert.Equal(t, byte(3), msg.MaxHops())

	f := msg.Frame()
	assert.Equal(t, plm.CodeSendInsteon, f.Code)
	assert.Equal(t, []byte{0x22, 0x33, 0x44, 0x0F, 0x11, 0xFF}, f.Payload)
}

func TestNewExtendedMessage(t *testing.T) {
	msg := NewExtendedMessage(deviceAddr, 0x2E, 0x00, []byte{0x01})
	require.True(t, msg.IsExtended())

	f := msg.Frame()
	require.Len(t, f.Payload, 20)
	assert.Equal(t, byte(0x1F), f.Payload[3])
	assert.Equal(t, byte(0x01), f.Payload[6])
	assert.Equal(t, byte(0xD1), f.Payload[19])

	data, err := plm.Encode(f)
	require.NoError(t, err)
	assert.Len(t, data, 22)
}

func TestMessageFromFrame(t *testing.T) {
	raw := []byte{plm.STX, byte(plm.CodeStandardReceived), 0x22, 0x33, 0x44, 0x11, 0x22, 0x33, 0x2B, 0x19, 0x80}
	f, n, err := plm.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, len(raw), n)

	msg, err := MessageFromFrame(*f)
	require.NoError(t, err)
	assert.Equal(t, deviceAddr, msg.From)
	assert.Equal(t, modemAddr, msg.To)
	assert.True(t, msg.Flags.IsDirectAck())
	assert.Equal(t, byte(2), msg.HopsLeft())
	assert.Equal(t, byte(3), msg.MaxHops())
	assert.Equal(t, byte(0x19), msg.Cmd1)
	assert.Equal(t, byte(0x80), msg.Cmd2)
	assert.Contains(t, msg.String(), "22.33.44 -> 11.22.33")

	_, err = MessageFromFrame(plm.NewGetInfo())
	require.ErrorIs(t, err, ErrUnexpectedResponse)

	_, err = MessageFromFrame(plm.Frame{Kind: plm.KindEvent, Code: plm.CodeStandardReceived, Payload: []byte{0x01}})
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestMessage_IsAckOf(t *testing.T) {
	req := NewMessage(deviceAddr, insteon.CmdPing, 0x00)

	ack := Message{From: deviceAddr, To: modemAddr, Flags: insteon.FlagAck}
	assert.True(t, ack.IsAckOf(req))

	nak := Message{From: deviceAddr, To: modemAddr, Flags: insteon.FlagAck | insteon.FlagBroadcastOrNak}
	assert.True(t, nak.IsAckOf(req), "a NAK still answers the request")

	other := Message{From: insteon.MustParseAddress("aa.bb.cc"), To: modemAddr, Flags: insteon.FlagAck}
	assert.False(t, other.IsAckOf(req))

	notAck := Message{From: deviceAddr, To: modemAddr}
	assert.False(t, notAck.IsAckOf(req))
}

func TestLinkMode_String(t *testing.T) {
	assert.Equal(t, "Controller", LinkController.String())
	assert.Equal(t, "Responder", LinkResponder.String())
	assert.Equal(t, "Auto", LinkAuto.String())
	assert.Equal(t, "Delete", LinkDelete.String())
	assert.Equal(t, "LinkMode(0x07)", LinkMode(0x07).String())
}

func TestInfoFromFrame_Errors(t *testing.T) {
	_, err := modemInfoFromFrame(plm.Frame{Code: plm.CodeGetInfo, Payload: []byte{0x01}})
	require.ErrorIs(t, err, ErrUnexpectedResponse)

	_, err = linkRecordFromFrame(plm.Frame{Code: plm.CodeGetInfo})
	require.ErrorIs(t, err, ErrUnexpectedResponse)

	_, err = linkCompleteFromFrame(plm.Frame{Code: plm.CodeAllLinkComplete, Payload: make([]byte, 3)})
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}
