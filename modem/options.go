package modem

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-plm/logger"
)

// Default values of the modem options.
const (
	DefaultNakRetries  = 20
	DefaultRetryDelay  = 250 * time.Millisecond
	DefaultLinkTimeout = 30 * time.Second

	MaxNakRetries = 100
)

type options struct {
	nakRetries  int
	retryDelay  time.Duration
	linkTimeout time.Duration
	logger      logger.Logger
}

// Option configures a [Modem].
type Option func(*options) error

// WithNakRetries sets how many times a command is sent in total when the
// modem keeps answering NAK. 1 disables retries.
func WithNakRetries(n int) Option {
	return func(o *options) error {
		if n < 1 || n > MaxNakRetries {
			return fmt.Errorf("modem: NAK retries %d out of range [1, %d]", n, MaxNakRetries)
		}
		o.nakRetries = n

		return nil
	}
}

// WithRetryDelay sets the pause between two attempts of a NAKed command.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("modem: retry delay must not be negative")
		}
		o.retryDelay = d

		return nil
	}
}

// WithLinkTimeout sets how long LinkDevice waits for the link to complete,
// typically for someone to press the set button of the device.
func WithLinkTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.New("modem: link timeout must be positive")
		}
		o.linkTimeout = d

		return nil
	}
}

// WithLogger sets the logger of the modem. It defaults to the logger of the
// underlying connection.
func WithLogger(l logger.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("modem: logger must not be nil")
		}
		o.logger = l

		return nil
	}
}
