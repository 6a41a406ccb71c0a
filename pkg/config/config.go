package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plcalarm/plcalarm-go/pkg/transport"
)

// Configuration errors.
var (
	ErrMissingAddress = errors.New("target address is required")
)

// Defaults applied by ApplyDefaults.
const (
	DefaultSourceNetID    = "127.0.0.1.1.1"
	DefaultSourcePort     = 32905
	DefaultRetryInterval  = 5 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultBufferSize     = 4096
	DefaultLogLevel       = "info"
)

// Config is the top-level monitor configuration.
type Config struct {
	Target       TargetConfig       `yaml:"target"`
	Source       SourceConfig       `yaml:"source"`
	Connection   ConnectionConfig   `yaml:"connection"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	History      HistoryConfig      `yaml:"history"`
	Capture      CaptureConfig      `yaml:"capture"`
	Log          LogConfig          `yaml:"log"`
}

// TargetConfig describes the publisher endpoint.
type TargetConfig struct {
	// Address is the publisher's TCP address, host:port.
	Address string `yaml:"address"`

	// NetID is the publisher's AMS net ID. Empty derives nothing; the
	// publisher's net ID must be configured explicitly.
	NetID string `yaml:"net_id"`

	// Port is the publisher's AMS port (default: the event service port).
	Port uint16 `yaml:"port"`
}

// SourceConfig describes the local AMS identity.
type SourceConfig struct {
	// NetID is the local AMS net ID.
	NetID string `yaml:"net_id"`

	// Port is the local AMS port.
	Port uint16 `yaml:"port"`
}

// ConnectionConfig controls connect behavior and retries.
type ConnectionConfig struct {
	// RetryInterval is the fixed delay between reconnect attempts.
	RetryInterval time.Duration `yaml:"retry_interval"`

	// ConnectTimeout bounds each connect attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout bounds each request awaiting its response.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SubscriptionConfig controls the notification subscription.
type SubscriptionConfig struct {
	// BufferSize is the notification buffer size in bytes.
	BufferSize uint32 `yaml:"buffer_size"`
}

// HistoryConfig controls the persistent event history.
type HistoryConfig struct {
	// Path is the history database file. Empty disables history.
	Path string `yaml:"path"`
}

// CaptureConfig controls protocol capture logging.
type CaptureConfig struct {
	// Path is the capture log file. Empty disables capture.
	Path string `yaml:"path"`
}

// LogConfig controls operational logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns a configuration with all defaults applied and no target.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Source.NetID == "" {
		c.Source.NetID = DefaultSourceNetID
	}
	if c.Source.Port == 0 {
		c.Source.Port = DefaultSourcePort
	}
	if c.Target.Port == 0 {
		c.Target.Port = transport.DefaultTargetPort
	}
	if c.Connection.RetryInterval <= 0 {
		c.Connection.RetryInterval = DefaultRetryInterval
	}
	if c.Connection.ConnectTimeout <= 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.RequestTimeout <= 0 {
		c.Connection.RequestTimeout = DefaultRequestTimeout
	}
	if c.Subscription.BufferSize == 0 {
		c.Subscription.BufferSize = DefaultBufferSize
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// Validate checks the configuration for errors. Defaults must have been
// applied first.
func (c *Config) Validate() error {
	if c.Target.Address == "" {
		return ErrMissingAddress
	}
	if _, err := transport.ParseNetID(c.Target.NetID); err != nil {
		return fmt.Errorf("target net_id: %w", err)
	}
	if _, err := transport.ParseNetID(c.Source.NetID); err != nil {
		return fmt.Errorf("source net_id: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level %q: must be debug, info, warn or error", c.Log.Level)
	}
	return nil
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ClientConfig builds the transport client configuration. Validate must
// have succeeded.
func (c *Config) ClientConfig() transport.ClientConfig {
	target, _ := transport.ParseNetID(c.Target.NetID)
	source, _ := transport.ParseNetID(c.Source.NetID)
	return transport.ClientConfig{
		Address:        c.Target.Address,
		Target:         target,
		TargetPort:     c.Target.Port,
		Source:         source,
		SourcePort:     c.Source.Port,
		ConnectTimeout: c.Connection.ConnectTimeout,
		RequestTimeout: c.Connection.RequestTimeout,
	}
}
