package main

import (
	"bytes"
	"net"
	"testing"

	"github.com/arloliu/go-plm/plm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveModem answers Get IM Info and acknowledges every Send INSTEON on
// behalf of the addressed device.
func serveModem(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go answer(c)
		}
	}()

	return ln.Addr().String()
}

func answer(c net.Conn) {
	defer c.Close()

	var buf []byte
	chunk := make([]byte, 64)
	for {
		n, err := c.Read(chunk)
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)

		for {
			f, used, err := plm.DecodeCommand(buf)
			if err != nil {
				buf = buf[used:]
				continue
			}
			if f == nil {
				break
			}
			buf = buf[used:]

			switch f.Code {
			case plm.CodeGetInfo:
				_, _ = c.Write([]byte{plm.STX, byte(plm.CodeGetInfo), 0x11, 0x22, 0x33, 0x03, 0x15, 0x9E, plm.ACK})
			case plm.CodeSendInsteon:
				echo, _ := plm.Encode(plm.Frame{Kind: plm.KindAck, Code: f.Code, Payload: f.Payload})
				_, _ = c.Write(echo)
				to, _ := f.To()
				_, _ = c.Write([]byte{plm.STX, byte(plm.CodeStandardReceived),
					to[0], to[1], to[2], 0x11, 0x22, 0x33, 0x2F, f.Cmd1(), f.Cmd2()})
			}
		}
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	_, err := newParser(newApp(&out)).ParseArgs(args)

	return out.String(), err
}

func TestCLI_ModemInfo(t *testing.T) {
	addr := serveModem(t)

	out, err := runCLI(t, "--host", addr, "modem", "info")
	require.NoError(t, err)
	assert.Contains(t, out, "11.22.33")
	assert.Contains(t, out, "0x9E")
}

func TestCLI_DeviceByName(t *testing.T) {
	addr := serveModem(t)
	cfg := writeFile(t, "plm.yaml", "devices:\n  kitchen: 22.33.44\n")

	out, err := runCLI(t, "--host", addr, "--config", cfg, "device", "on", "--level", "50", "kitchen")
	require.NoError(t, err)
	assert.Equal(t, "22.33.44 (kitchen) on at 50%\n", out)

	out, err = runCLI(t, "--host", addr, "device", "off", "--fast", "aa.bb.cc")
	require.NoError(t, err)
	assert.Equal(t, "aa.bb.cc off\n", out)
}

func TestCLI_Errors(t *testing.T) {
	_, err := runCLI(t, "modem", "info")
	require.ErrorContains(t, err, "no modem given")

	_, err = runCLI(t, "--host", "127.0.0.1:1", "device", "ping", "not-an-address")
	require.Error(t, err)

	_, err = runCLI(t, "device", "on")
	require.Error(t, err)
}
