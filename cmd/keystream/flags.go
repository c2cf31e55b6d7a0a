package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opd-ai/keystream/config"
	"github.com/sirupsen/logrus"
)

// commonFlags are accepted by every subcommand. Flags only override the
// configuration file when given explicitly.
type commonFlags struct {
	configPath string
	logLevel   string
	logFile    string
	logFormat  string
	host       string
	port       int
	capacity   int
	simulation bool
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	c := &commonFlags{}
	def := config.Default()
	fs.StringVar(&c.configPath, "config", "", "Configuration file (.toml, .yaml or .yml)")
	fs.StringVar(&c.logLevel, "log-level", def.Log.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.logFile, "log-file", "", "Log file path (default: stderr)")
	fs.StringVar(&c.logFormat, "log-format", def.Log.Format, "Log format (text, json)")
	fs.StringVar(&c.host, "host", def.Network.Host, "Server host")
	fs.IntVar(&c.port, "port", def.Network.Port, "Server UDP port")
	fs.IntVar(&c.capacity, "capacity", def.Network.DatagramCapacity, "Datagram payload capacity in bytes")
	fs.BoolVar(&c.simulation, "sim", def.Network.UseSimulation, "Use the in-memory simulated link instead of UDP")
	return fs, c
}

// load builds the effective configuration: defaults, then the config file, then
// explicitly set flags.
func (c *commonFlags) load(fs *flag.FlagSet, extra func(name string, cfg *config.Config)) (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Log.Level = strings.ToLower(c.logLevel)
		case "log-file":
			cfg.Log.File = c.logFile
		case "log-format":
			cfg.Log.Format = strings.ToLower(c.logFormat)
		case "host":
			cfg.Network.Host = c.host
		case "port":
			cfg.Network.Port = c.port
		case "capacity":
			cfg.Network.DatagramCapacity = c.capacity
		case "sim":
			cfg.Network.UseSimulation = c.simulation
		default:
			if extra != nil {
				extra(f.Name, cfg)
			}
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures the standard logrus logger from section. The returned
// function closes the log file, if any.
func setupLogging(section config.LogSection, stderr io.Writer) (func(), error) {
	level, err := logrus.ParseLevel(section.Level)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(level)

	if section.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if section.File == "" {
		logrus.SetOutput(stderr)
		return func() {}, nil
	}

	f, err := os.OpenFile(section.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logrus.SetOutput(f)
	return func() {
		logrus.SetOutput(stderr)
		_ = f.Close()
	}, nil
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("-%s is required", name)
	}
	return nil
}
