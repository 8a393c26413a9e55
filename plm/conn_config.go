package plm

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-plm/logger"
)

// Default configuration values.
const (
	DefaultCommandTimeout = 10 * time.Second // Reply deadline of a request
	DefaultSweepInterval  = 100 * time.Millisecond
	DefaultReadBufferSize = 256
	DefaultCloseTimeout   = 3 * time.Second
)

// Configuration range limits.
const (
	MinCommandTimeout = 10 * time.Millisecond
	MaxCommandTimeout = 10 * time.Minute

	MinSweepInterval = 1 * time.Millisecond
	MaxSweepInterval = 10 * time.Second

	MinReadBufferSize = 32
	MaxReadBufferSize = 64 * 1024
)

// ConnConfig holds the configuration of a [Conn].
type ConnConfig struct {
	// commandTimeout is the deadline applied to requests that do not set
	// their own with WithTimeout.
	commandTimeout time.Duration

	// sweepInterval is the period of the task failing expired requests.
	sweepInterval time.Duration

	// readBufferSize is the size of a single transport read.
	readBufferSize int

	// closeTimeout bounds how long Close waits for the read loop to exit.
	closeTimeout time.Duration

	logger logger.Logger
}

// NewConnConfig creates a configuration with defaults, then applies opts in
// order.
func NewConnConfig(opts ...ConnOption) (*ConnConfig, error) {
	cfg := &ConnConfig{
		commandTimeout: DefaultCommandTimeout,
		sweepInterval:  DefaultSweepInterval,
		readBufferSize: DefaultReadBufferSize,
		closeTimeout:   DefaultCloseTimeout,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// CommandTimeout returns the default request deadline.
func (cfg *ConnConfig) CommandTimeout() time.Duration { return cfg.commandTimeout }

// SweepInterval returns the period of the deadline sweep.
func (cfg *ConnConfig) SweepInterval() time.Duration { return cfg.sweepInterval }

// ReadBufferSize returns the size of a single transport read.
func (cfg *ConnConfig) ReadBufferSize() int { return cfg.readBufferSize }

// CloseTimeout returns how long Close waits for the read loop to exit.
func (cfg *ConnConfig) CloseTimeout() time.Duration { return cfg.closeTimeout }

// GetLogger returns the configured logger.
func (cfg *ConnConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a [Conn].
type ConnOption interface {
	apply(*ConnConfig) error
}

type connOptFunc func(*ConnConfig) error

func (f connOptFunc) apply(cfg *ConnConfig) error { return f(cfg) }

// WithCommandTimeout sets the default deadline of a request.
func WithCommandTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnConfig) error {
		if d < MinCommandTimeout || d > MaxCommandTimeout {
			return fmt.Errorf("plm: command timeout %v out of range [%v, %v]", d, MinCommandTimeout, MaxCommandTimeout)
		}
		cfg.commandTimeout = d

		return nil
	})
}

// WithSweepInterval sets how often expired requests are swept.
func WithSweepInterval(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnConfig) error {
		if d < MinSweepInterval || d > MaxSweepInterval {
			return fmt.Errorf("plm: sweep interval %v out of range [%v, %v]", d, MinSweepInterval, MaxSweepInterval)
		}
		cfg.sweepInterval = d

		return nil
	})
}

// WithReadBufferSize sets the size of a single transport read.
func WithReadBufferSize(n int) ConnOption {
	return connOptFunc(func(cfg *ConnConfig) error {
		if n < MinReadBufferSize || n > MaxReadBufferSize {
			return fmt.Errorf("plm: read buffer size %d out of range [%d, %d]", n, MinReadBufferSize, MaxReadBufferSize)
		}
		cfg.readBufferSize = n

		return nil
	})
}

// WithCloseTimeout sets how long Close waits for the read loop to exit.
func WithCloseTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnConfig) error {
		if d <= 0 {
			return errors.New("plm: close timeout must be positive")
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithLogger sets the logger of the connection.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnConfig) error {
		if l == nil {
			return errors.New("plm: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
