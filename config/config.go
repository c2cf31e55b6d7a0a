// Package config loads keystream settings from TOML or YAML files.
//
// Files only need to name the values they change; everything else keeps the
// value from Default. Unknown keys are reported as warnings for TOML files and
// rejected for YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/opd-ai/keystream/interfaces"
	"github.com/opd-ai/keystream/limits"
	"github.com/opd-ai/keystream/stream"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the UDP port the server listens on.
const DefaultPort = 33450

// ErrUnsupportedFormat is returned for config files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete keystream configuration.
type Config struct {
	Network NetworkSection `toml:"network" yaml:"network"`
	Client  ClientSection  `toml:"client" yaml:"client"`
	Server  ServerSection  `toml:"server" yaml:"server"`
	Log     LogSection     `toml:"log" yaml:"log"`
}

// NetworkSection configures addressing and the transport.
type NetworkSection struct {
	Host             string        `toml:"host" yaml:"host"`
	Port             int           `toml:"port" yaml:"port"`
	DatagramCapacity int           `toml:"datagram_capacity" yaml:"datagram_capacity"`
	UseSimulation    bool          `toml:"simulation" yaml:"simulation"`
	PollInterval     time.Duration `toml:"poll_interval" yaml:"poll_interval"`
	LossRate         float64       `toml:"loss_rate" yaml:"loss_rate"`
	ReorderWindow    int           `toml:"reorder_window" yaml:"reorder_window"`
	// Seed fixes the simulated link's random decisions; 0 seeds from the clock.
	Seed int64 `toml:"seed" yaml:"seed"`
}

// ClientSection configures the transmitter.
type ClientSection struct {
	SampleInterval time.Duration `toml:"sample_interval" yaml:"sample_interval"`
	SentinelDelay  time.Duration `toml:"sentinel_delay" yaml:"sentinel_delay"`
}

// ServerSection configures the receiver.
type ServerSection struct {
	Template       string          `toml:"template" yaml:"template"`
	Output         string          `toml:"output" yaml:"output"`
	DecodeWorkers  int             `toml:"decode_workers" yaml:"decode_workers"`
	LockMode       stream.LockMode `toml:"lock_mode" yaml:"lock_mode"`
	LockStripes    int             `toml:"lock_stripes" yaml:"lock_stripes"`
	ReceiveTimeout time.Duration   `toml:"receive_timeout" yaml:"receive_timeout"`
	Repeat         bool            `toml:"repeat" yaml:"repeat"`
}

// LogSection configures logrus.
type LogSection struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	File   string `toml:"file" yaml:"file"`
}

// DefaultDecodeWorkers bounds concurrent decode tasks unless configured otherwise.
const DefaultDecodeWorkers = 16

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Network: NetworkSection{
			Host:             "127.0.0.1",
			Port:             DefaultPort,
			DatagramCapacity: limits.DefaultDatagramCapacity,
			PollInterval:     100 * time.Millisecond,
		},
		Client: ClientSection{
			SampleInterval: stream.DefaultSampleInterval,
			SentinelDelay:  time.Second,
		},
		Server: ServerSection{
			DecodeWorkers: DefaultDecodeWorkers,
			LockMode:      stream.LockCoarse,
			LockStripes:   stream.DefaultLockStripes,
		},
		Log: LogSection{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path on top of Default and validates the result. The format is
// chosen by extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(data, cfg)
	case ".yaml", ".yml":
		err = decodeYAML(data, cfg)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "config.Load",
		"path":       path,
		"simulation": cfg.Network.UseSimulation,
		"port":       cfg.Network.Port,
	}).Debug("Configuration loaded")
	return cfg, nil
}

func decodeTOML(data []byte, cfg *Config) error {
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	for _, key := range meta.Undecoded() {
		logrus.WithFields(logrus.Fields{
			"function": "config.Load",
			"key":      key.String(),
		}).Warn("Ignoring unknown configuration key")
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every section's bounds.
func (c *Config) Validate() error {
	n := c.Network
	if n.Port < 0 || n.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, n.Port)
	}
	if err := limits.ValidateDatagramCapacity(n.DatagramCapacity); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.NetworkConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Client.SampleInterval < 0 || c.Client.SentinelDelay < 0 {
		return fmt.Errorf("%w: client durations must not be negative", ErrInvalidConfig)
	}

	s := c.Server
	if s.ReceiveTimeout < 0 {
		return fmt.Errorf("%w: receive_timeout must not be negative", ErrInvalidConfig)
	}
	if _, err := stream.NewJointLocker(s.LockMode, s.LockStripes); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q (want text or json)", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// NetworkConfig converts the network section for the transport factory.
func (c *Config) NetworkConfig() *interfaces.NetworkConfig {
	return &interfaces.NetworkConfig{
		UseSimulation:  c.Network.UseSimulation,
		NetworkTimeout: int(c.Network.PollInterval / time.Millisecond),
		LossRate:       c.Network.LossRate,
		ReorderWindow:  c.Network.ReorderWindow,
	}
}

// TransmitConfig converts the client section.
func (c *Config) TransmitConfig() stream.TransmitConfig {
	return stream.TransmitConfig{
		DatagramCapacity: c.Network.DatagramCapacity,
		SampleInterval:   c.Client.SampleInterval,
		SentinelDelay:    c.Client.SentinelDelay,
	}
}

// ReceiverConfig converts the server section.
func (c *Config) ReceiverConfig() stream.ReceiverConfig {
	return stream.ReceiverConfig{
		DatagramCapacity: c.Network.DatagramCapacity,
		TemplatePath:     c.Server.Template,
		OutputPath:       c.Server.Output,
		DecodeWorkers:    c.Server.DecodeWorkers,
		LockMode:         c.Server.LockMode,
		LockStripes:      c.Server.LockStripes,
		ReceiveTimeout:   c.Server.ReceiveTimeout,
	}
}
