package modem

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/plm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModem_GetInfo(t *testing.T) {
	m := newTestModem(t, &simModem{})

	info, err := m.GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModemInfo{Address: modemAddr, Category: 0x03, SubCategory: 0x15, FirmwareVersion: 0x9E}, info)
}

func TestModem_DeviceCommands(t *testing.T) {
	sim := &simModem{status: [2]byte{0x05, 0x7F}, version: 0x02}
	m := newTestModem(t, sim)
	ctx := context.Background()

	ack, err := m.TurnOn(ctx, deviceAddr, 50, false)
	require.NoError(t, err)
	assert.Equal(t, deviceAddr, ack.From)
	assert.Equal(t, modemAddr, ack.To)

	_, err = m.TurnOn(ctx, deviceAddr, 100, true)
	require.NoError(t, err)
	_, err = m.TurnOff(ctx, deviceAddr, false)
	require.NoError(t, err)
	_, err = m.TurnOff(ctx, deviceAddr, true)
	require.NoError(t, err)
	require.NoError(t, m.Ping(ctx, deviceAddr))
	require.NoError(t, m.Beep(ctx, deviceAddr))

	status, err := m.Status(ctx, deviceAddr)
	require.NoError(t, err)
	assert.Equal(t, DeviceStatus{Delta: 0x05, Level: 0x7F}, status)

	version, err := m.Version(ctx, deviceAddr)
	require.NoError(t, err)
	assert.Equal(t, byte(0x02), version)

	expected := []struct{ cmd1, cmd2 byte }{
		{insteon.CmdOn, 127},
		{insteon.CmdOnFast, 255},
		{insteon.CmdOff, 0},
		{insteon.CmdOffFast, 0},
		{insteon.CmdPing, 0},
		{insteon.CmdBeep, 0},
		{insteon.CmdStatusRequest, 0},
		{insteon.CmdVersionQuery, 0},
	}

	cmds := sim.commands()
	require.Len(t, cmds, len(expected))
	for i, want := range expected {
		to, ok := cmds[i].To()
		require.True(t, ok)
		assert.Equal(t, deviceAddr, to)
		assert.Equal(t, want.cmd1, cmds[i].Cmd1(), "command %d", i)
		assert.Equal(t, want.cmd2, cmds[i].Cmd2(), "command %d", i)
		assert.Equal(t, byte(3), cmds[i].Flags().MaxHops())
	}
}

func TestModem_RetriesModemNak(t *testing.T) {
	sim := &simModem{naks: 2}
	m := newTestModem(t, sim)

	require.NoError(t, m.Ping(context.Background(), deviceAddr))
	assert.Len(t, sim.commands(), 3)
}

func TestModem_RetriesExhausted(t *testing.T) {
	sim := &simModem{naks: 10}
	m := newTestModem(t, sim, WithNakRetries(3))

	_, err := m.GetInfo(context.Background())
	require.ErrorIs(t, err, plm.ErrModemNak)
	assert.Len(t, sim.commands(), 3)
}

func TestModem_DeviceNakNotRetried(t *testing.T) {
	sim := &simModem{deviceNak: true}
	m := newTestModem(t, sim)

	err := m.Ping(context.Background(), deviceAddr)
	require.ErrorIs(t, err, plm.ErrModemNak)
	assert.Len(t, sim.commands(), 1)
}

func TestModem_DeviceTimeout(t *testing.T) {
	sim := &simModem{silent: true}
	m := newTestModem(t, sim)

	err := m.Beep(context.Background(), deviceAddr)
	require.ErrorIs(t, err, plm.ErrCommandTimeout)
	assert.Len(t, sim.commands(), 1)
}

func TestModem_RetryHonoursContext(t *testing.T) {
	sim := &simModem{naks: 100}
	m := newTestModem(t, sim, WithRetryDelay(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := m.GetInfo(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestModem_Links(t *testing.T) {
	sim := &simModem{links: [][]byte{
		{0xE2, 0x01, 0x22, 0x33, 0x44, 0x01, 0x20, 0x41},
		{0xA2, 0x00, 0xAA, 0xBB, 0xCC, 0xFF, 0x1C, 0x01},
	}}
	m := newTestModem(t, sim)

	links, err := m.Links(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 2)

	assert.Equal(t, LinkRecord{
		Flags:   insteon.LinkFlags(0xE2),
		Group:   0x01,
		Address: deviceAddr,
		Data:    [3]byte{0x01, 0x20, 0x41},
	}, links[0])
	assert.Equal(t, LinkController, links[0].Mode())
	assert.Equal(t, LinkResponder, links[1].Mode())
	assert.Equal(t, insteon.MustParseAddress("aa.bb.cc"), links[1].Address)

	cmds := sim.commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, plm.CodeGetFirstAllLink, cmds[0].Code)
	assert.Equal(t, plm.CodeGetNextAllLink, cmds[1].Code)
	assert.Equal(t, plm.CodeGetNextAllLink, cmds[2].Code)
}

func TestModem_LinksEmpty(t *testing.T) {
	sim := &simModem{}
	m := newTestModem(t, sim)

	links, err := m.Links(context.Background())
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Len(t, sim.commands(), 1)
}

func TestModem_LinkDevice(t *testing.T) {
	sim := &simModem{}
	m := newTestModem(t, sim)

	addr := deviceAddr
	result, err := m.LinkDevice(context.Background(), &addr, LinkController, 0x01)
	require.NoError(t, err)
	assert.Equal(t, LinkComplete{
		Mode:            LinkController,
		Group:           0x01,
		Address:         deviceAddr,
		Category:        0x02,
		SubCategory:     0x1A,
		FirmwareVersion: 0x41,
	}, result)

	cmds := sim.commands()
	require.Len(t, cmds, 5)
	assert.Equal(t, plm.CodeCancelAllLink, cmds[0].Code)
	assert.Equal(t, plm.CodeSendInsteon, cmds[1].Code)
	assert.Equal(t, insteon.CmdStartLinking, cmds[1].Cmd1())
	assert.True(t, cmds[1].Flags().IsExtended())
	assert.Equal(t, byte(0x01), cmds[1].Cmd2())
	assert.Equal(t, plm.CodeStartAllLink, cmds[2].Code)
	assert.Equal(t, []byte{byte(LinkController), 0x01}, cmds[2].Payload)
	assert.Equal(t, insteon.CmdCancelLinking, cmds[3].Cmd1())
	assert.Equal(t, plm.CodeCancelAllLink, cmds[4].Code)
}

func TestModem_LinkDeviceTimeout(t *testing.T) {
	sim := &simModem{noComplete: true}
	m := newTestModem(t, sim, WithLinkTimeout(50*time.Millisecond))

	_, err := m.LinkDevice(context.Background(), nil, LinkAuto, 0x00)
	require.ErrorIs(t, err, plm.ErrCommandTimeout)

	cmds := sim.commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, plm.CodeCancelAllLink, cmds[0].Code)
	assert.Equal(t, plm.CodeStartAllLink, cmds[1].Code)
	assert.Equal(t, plm.CodeCancelAllLink, cmds[2].Code)
}

func TestModem_ManageLink(t *testing.T) {
	sim := &simModem{}
	m := newTestModem(t, sim)

	rec := LinkRecord{Flags: 0xA2, Group: 0x01, Address: deviceAddr, Data: [3]byte{0xFF, 0x1C, 0x01}}
	require.NoError(t, m.ManageLink(context.Background(), ManageAddResponder, rec))

	cmds := sim.commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, []byte{0x41, 0xA2, 0x01, 0x22, 0x33, 0x44, 0xFF, 0x1C, 0x01}, cmds[0].Payload)
	assert.Equal(t, deviceAddr, cmds[0].Address)
}

func TestModem_ManageLinkNotFound(t *testing.T) {
	sim := &simModem{linkEchoNak: true}
	m := newTestModem(t, sim)

	err := m.ManageLink(context.Background(), ManageDelete, LinkRecord{Address: deviceAddr})
	require.ErrorIs(t, err, plm.ErrModemNak)
	assert.Len(t, sim.commands(), 1)
}

func TestModem_Listen(t *testing.T) {
	sim := &simModem{}
	m := newTestModem(t, sim)

	stream := m.Listen()

	// an X10 frame is skipped, the broadcast is delivered
	sim.write(
		[]byte{plm.STX, byte(plm.CodeX10Received), 0x66, 0x00},
		[]byte{plm.STX, byte(plm.CodeStandardReceived), 0x22, 0x33, 0x44, 0x00, 0x00, 0x01, 0xCF, 0x11, 0x00},
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	msg, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, deviceAddr, msg.From)
	assert.Equal(t, insteon.TypeAllLinkBroadcast, msg.Flags.Type())
	assert.Equal(t, insteon.CmdOn, msg.Cmd1)

	require.NoError(t, m.Close())
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	stream.Close()
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	sim := &simModem{}
	m := newTestModem(t, sim)

	for _, opt := range []Option{WithNakRetries(0), WithRetryDelay(-1), WithLinkTimeout(0), WithLogger(nil)} {
		_, err := New(m.Conn(), opt)
		assert.Error(t, err)
	}
}
