package transport

import (
	"context"
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaudRate is the line speed of the PowerLinc Modem serial interface.
const DefaultBaudRate = 19200

// SerialConfig describes the serial port a modem is attached to. The line is
// always 8 data bits, no parity and one stop bit.
type SerialConfig struct {
	// Port is the OS device path, e.g. "/dev/ttyUSB0" or "COM3".
	Port string `yaml:"port" toml:"port"`
	// BaudRate defaults to DefaultBaudRate when zero.
	BaudRate int `yaml:"baud" toml:"baud"`
}

// Validate checks the configuration.
func (c SerialConfig) Validate() error {
	if c.Port == "" {
		return errors.New("transport: serial port is required")
	}
	if c.BaudRate < 0 {
		return fmt.Errorf("transport: invalid baud rate %d", c.BaudRate)
	}

	return nil
}

func (c SerialConfig) mode() *serial.Mode {
	baud := c.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenSerial opens the serial port described by cfg.
//
// Opening a port cannot be interrupted, so it runs in its own goroutine; if
// ctx is done first, OpenSerial returns ctx.Err() and the port is closed as
// soon as the open completes.
func OpenSerial(ctx context.Context, cfg SerialConfig) (serial.Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	type result struct {
		port serial.Port
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		p, err := serial.Open(cfg.Port, cfg.mode())
		ch <- result{port: p, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.port.Close()
			}
		}()

		return nil, ctx.Err()

	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("transport: open serial port %q: %w", cfg.Port, r.err)
		}

		return r.port, nil
	}
}

// SerialPorts lists the serial ports present on the system.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
