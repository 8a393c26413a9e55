package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/go-plm/insteon"
	"github.com/arloliu/go-plm/logger"
	"github.com/arloliu/go-plm/modem"
	"github.com/arloliu/go-plm/plm"
	"github.com/arloliu/go-plm/transport"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// App holds the global options and the command tree.
type App struct {
	Port      string        `short:"d" long:"device" description:"Serial port of the modem" value-name:"PATH"`
	Host      string        `long:"host" description:"TCP address of a PLM hub or serial bridge" value-name:"HOST:PORT"`
	Baud      int           `long:"baud" description:"Serial baud rate (default 19200)"`
	Timeout   time.Duration `short:"t" long:"timeout" description:"Command timeout (default 10s)"`
	LogLevel  string        `long:"log-level" description:"Log level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	LogFormat string        `long:"log-format" description:"Log backend" choice:"console" choice:"json" choice:"zap"`
	Config    string        `short:"c" long:"config" description:"YAML or TOML configuration file" value-name:"FILE"`

	Modem  modemCommand  `command:"modem" description:"Query and configure the modem"`
	Listen listenCommand `command:"listen" description:"Print INSTEON messages as they arrive"`
	Device deviceCommand `command:"device" description:"Control a device"`

	cfg    config
	logger logger.Logger
	out    io.Writer
}

func newApp(out io.Writer) *App {
	a := &App{out: out}

	a.Modem.Info.app = a
	a.Modem.Links.app = a
	a.Modem.Link.app = a
	a.Listen.app = a
	a.Device.On.app = a
	a.Device.Off.app = a
	a.Device.Ping.app = a
	a.Device.Beep.app = a
	a.Device.Status.app = a
	a.Device.Version.app = a

	return a
}

// run is the go-flags command handler. It applies the configuration file
// and sets up logging before executing cmd.
func (a *App) run(cmd flags.Commander, args []string) error {
	if cmd == nil {
		return nil
	}
	if err := a.configure(); err != nil {
		return err
	}

	return cmd.Execute(args)
}

func (a *App) configure() error {
	if a.Config != "" {
		cfg, err := loadConfig(a.Config)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	a.cfg.merge(config{
		Device:    a.Port,
		Host:      a.Host,
		Baud:      a.Baud,
		Timeout:   a.Timeout,
		LogLevel:  a.LogLevel,
		LogFormat: a.LogFormat,
	})

	l, err := newLogger(a.cfg.LogLevel, a.cfg.LogFormat)
	if err != nil {
		return err
	}
	logger.SetLogger(l)
	a.logger = l

	return nil
}

// newLogger builds the CLI logger. Only warnings and errors are shown unless
// a level is given.
func newLogger(level, format string) (logger.Logger, error) {
	lvl := logger.WarnLevel
	if level != "" {
		lvl = logger.ParseLevel(level)
	}

	switch format {
	case "", "console":
		return logger.NewSlogFormat(os.Stderr, logger.FormatConsole, lvl, false), nil

	case "json":
		return logger.NewSlogFormat(os.Stderr, logger.FormatJSON, lvl, false), nil

	case "zap":
		cfg := zap.Config{
			Level:            zap.NewAtomicLevelAt(zapcore.DebugLevel),
			Encoding:         "console",
			EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		zl, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}

		l := logger.NewZap(zl)
		l.SetLevel(lvl)

		return l, nil

	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// open connects to the modem given by --host or --device.
func (a *App) open(ctx context.Context, opts ...modem.Option) (*modem.Modem, error) {
	var (
		t   plm.Transport
		err error
	)

	switch {
	case a.cfg.Host != "":
		t, err = transport.DialTCP(ctx, a.cfg.Host, 0)
	case a.cfg.Device != "":
		t, err = transport.OpenSerial(ctx, transport.SerialConfig{Port: a.cfg.Device, BaudRate: a.cfg.Baud})
	default:
		return nil, errors.New("no modem given, use --device or --host")
	}
	if err != nil {
		return nil, err
	}

	connOpts := []plm.ConnOption{plm.WithLogger(a.logger)}
	if a.cfg.Timeout > 0 {
		connOpts = append(connOpts, plm.WithCommandTimeout(a.cfg.Timeout))
	}

	opts = append([]modem.Option{modem.WithLogger(a.logger)}, opts...)

	m, err := modem.Open(t, connOpts, opts...)
	if err != nil {
		_ = t.Close()
		return nil, err
	}

	a.logger.Debug("modem connected", "device", a.cfg.Device, "host", a.cfg.Host)

	return m, nil
}

// withModem opens the modem, runs fn and closes the modem again. fn's
// context is cancelled on SIGINT or SIGTERM.
func (a *App) withModem(fn func(ctx context.Context, m *modem.Modem) error, opts ...modem.Option) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := a.open(ctx, opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(ctx, m)
}

// withDevice resolves name and runs fn against the opened modem.
func (a *App) withDevice(name string, fn func(ctx context.Context, m *modem.Modem, addr insteon.Address) error) error {
	addr, err := a.cfg.resolveAddress(name)
	if err != nil {
		return err
	}

	return a.withModem(func(ctx context.Context, m *modem.Modem) error {
		return fn(ctx, m, addr)
	})
}

// label formats addr with its configured name, if any.
func (a *App) label(addr insteon.Address) string {
	if name := a.cfg.deviceName(addr); name != "" {
		return fmt.Sprintf("%s (%s)", addr, name)
	}

	return addr.String()
}
