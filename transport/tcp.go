package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultDialTimeout bounds DialTCP when no timeout is given.
const DefaultDialTimeout = 10 * time.Second

// DialTCP connects to a modem exposed on a TCP socket, such as the raw PLM
// port of an INSTEON hub or a ser2net bridge. addr is "host:port".
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	if addr == "" {
		return nil, errors.New("transport: TCP address is required")
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		// frames are a few bytes long; send each as soon as it is written
		_ = tcp.SetNoDelay(true)
	}

	return conn, nil
}
