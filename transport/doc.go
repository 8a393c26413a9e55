// Package transport opens the byte channels a PowerLinc Modem is reached
// through: a local serial port, or a TCP socket exposed by a PLM hub or a
// serial-to-network bridge.
//
// Every transport returned here satisfies plm.Transport:
//
//	t, err := transport.OpenSerial(ctx, transport.SerialConfig{Port: "/dev/ttyUSB0"})
//	if err != nil {
//		return err
//	}
//	conn, err := plm.NewConn(t)
package transport
