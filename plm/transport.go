package plm

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Transport is the byte channel to the modem.
//
// Read blocks until at least one byte is available and returns io.EOF (or any
// other error) once the channel is closed. Write blocks until the bytes are
// accepted. Close must unblock a pending Read and a pending Write.
//
// A serial port, a TCP connection to a PLM hub and one end of net.Pipe all
// satisfy Transport; see the transport package for constructors.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// writeDeadliner is implemented by transports whose Write can be bounded by
// a deadline, such as net.Conn. Conn uses it so a write the modem never
// accepts gives up at the request deadline.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// isClosedError reports whether err means the transport is gone rather than
// a transient condition.
func isClosedError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed)
}
