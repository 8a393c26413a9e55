package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/arloliu/go-plm/insteon"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk layout of the configuration file.
type fileConfig struct {
	Device    string                     `yaml:"device" toml:"device"`
	Host      string                     `yaml:"host" toml:"host"`
	Baud      int                        `yaml:"baud" toml:"baud"`
	Timeout   string                     `yaml:"timeout" toml:"timeout"`
	LogLevel  string                     `yaml:"log_level" toml:"log_level"`
	LogFormat string                     `yaml:"log_format" toml:"log_format"`
	Devices   map[string]insteon.Address `yaml:"devices" toml:"devices"`
}

type config struct {
	Device    string
	Host      string
	Baud      int
	Timeout   time.Duration
	LogLevel  string
	LogFormat string
	// Devices maps friendly names to device addresses.
	Devices map[string]insteon.Address
}

// loadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file.
func loadConfig(path string) (config, error) {
	var raw fileConfig

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return config{}, fmt.Errorf("load config %s: %w", path, err)
		}

	case ".toml":
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return config{}, fmt.Errorf("load config %s: %w", path, err)
		}

	default:
		return config{}, fmt.Errorf("load config %s: unsupported format %q", path, ext)
	}

	cfg := config{
		Device:    strings.TrimSpace(raw.Device),
		Host:      strings.TrimSpace(raw.Host),
		Baud:      raw.Baud,
		LogLevel:  strings.TrimSpace(raw.LogLevel),
		LogFormat: strings.TrimSpace(raw.LogFormat),
		Devices:   raw.Devices,
	}

	if raw.Timeout != "" {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

// merge overrides c with the non-zero fields of o.
func (c *config) merge(o config) {
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.Host != "" {
		c.Host = o.Host
	}
	if o.Baud != 0 {
		c.Baud = o.Baud
	}
	if o.Timeout != 0 {
		c.Timeout = o.Timeout
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		c.LogFormat = o.LogFormat
	}
}

// resolveAddress accepts a device name from the configuration file or a
// literal HH.HH.HH address.
func (c *config) resolveAddress(name string) (insteon.Address, error) {
	if addr, ok := c.Devices[name]; ok {
		return addr, nil
	}

	return insteon.ParseAddress(name)
}

// deviceName returns the configured name of addr, or "".
func (c *config) deviceName(addr insteon.Address) string {
	for name, a := range c.Devices {
		if a == addr {
			return name
		}
	}

	return ""
}
