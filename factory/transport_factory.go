package factory

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/opd-ai/keystream/interfaces"
	simnet "github.com/opd-ai/keystream/testing"
	"github.com/opd-ai/keystream/transport"
	"github.com/sirupsen/logrus"
)

// Validation constants for configuration bounds checking.
const (
	// MinNetworkTimeout is the minimum allowed network timeout in milliseconds.
	MinNetworkTimeout = 10
	// MaxNetworkTimeout is the maximum allowed network timeout in milliseconds (10 minutes).
	MaxNetworkTimeout = 600000
	// MaxReorderWindow caps how many datagrams the simulated link may hold back.
	MaxReorderWindow = 1024
)

// Environment variables read by NewTransportFactory.
const (
	EnvUseSimulation  = "KEYSTREAM_USE_SIMULATION"
	EnvNetworkTimeout = "KEYSTREAM_NETWORK_TIMEOUT"
	EnvLossRate       = "KEYSTREAM_LOSS_RATE"
	EnvReorderWindow  = "KEYSTREAM_REORDER_WINDOW"
)

// TransportFactory creates datagram senders and sources based on configuration.
// In simulation mode every sender and source it hands out shares one in-memory
// link, so a client and a server created from the same factory talk to each other.
// It is safe for concurrent use; all methods are protected by an internal mutex.
type TransportFactory struct {
	mu            sync.RWMutex
	defaultConfig *interfaces.NetworkConfig
	seed          int64
	seeded        bool
	link          *simnet.SimulatedLink
	closed        bool
}

// NewTransportFactory creates a factory from config, or from the defaults when
// config is nil. KEYSTREAM_* environment variables override either.
func NewTransportFactory(config *interfaces.NetworkConfig) (*TransportFactory, error) {
	base := createDefaultConfig()
	if config != nil {
		c := *config
		base = &c
	}
	applyEnvironmentOverrides(base)
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("transport configuration: %w", err)
	}
	logConfigurationInfo(base)

	return &TransportFactory{defaultConfig: base}, nil
}

// createDefaultConfig initializes the default network configuration.
//
// Default Value Rationale:
//   - UseSimulation: false - real UDP by default; simulation must be explicitly enabled
//   - NetworkTimeout: 100ms - how long a blocked read waits before re-checking cancellation
//   - LossRate / ReorderWindow: 0 - a perfect simulated link unless asked otherwise
func createDefaultConfig() *interfaces.NetworkConfig {
	return &interfaces.NetworkConfig{
		UseSimulation:  false,
		NetworkTimeout: int(transport.DefaultPollInterval / time.Millisecond),
		LossRate:       0,
		ReorderWindow:  0,
	}
}

// applyEnvironmentOverrides updates configuration based on environment variables.
// Invalid values are logged and ignored.
func applyEnvironmentOverrides(config *interfaces.NetworkConfig) {
	parseSimulationSetting(config)
	parseTimeoutSetting(config)
	parseLossSetting(config)
	parseReorderSetting(config)
}

func parseSimulationSetting(config *interfaces.NetworkConfig) {
	if useSimStr := os.Getenv(EnvUseSimulation); useSimStr != "" {
		useSim, err := strconv.ParseBool(useSimStr)
		if err != nil {
			warnEnv("parseSimulationSetting", EnvUseSimulation, useSimStr, err, config.UseSimulation)
			return
		}
		config.UseSimulation = useSim
	}
}

// parseTimeoutSetting accepts values within [MinNetworkTimeout, MaxNetworkTimeout].
func parseTimeoutSetting(config *interfaces.NetworkConfig) {
	if timeoutStr := os.Getenv(EnvNetworkTimeout); timeoutStr != "" {
		timeout, err := strconv.Atoi(timeoutStr)
		if err != nil {
			warnEnv("parseTimeoutSetting", EnvNetworkTimeout, timeoutStr, err, config.NetworkTimeout)
			return
		}
		if timeout < MinNetworkTimeout || timeout > MaxNetworkTimeout {
			logrus.WithFields(logrus.Fields{
				"function":    "parseTimeoutSetting",
				"env_var":     EnvNetworkTimeout,
				"value":       timeout,
				"min":         MinNetworkTimeout,
				"max":         MaxNetworkTimeout,
				"using_value": config.NetworkTimeout,
			}).Warn("KEYSTREAM_NETWORK_TIMEOUT value out of bounds, using default")
			return
		}
		config.NetworkTimeout = timeout
	}
}

func parseLossSetting(config *interfaces.NetworkConfig) {
	if lossStr := os.Getenv(EnvLossRate); lossStr != "" {
		loss, err := strconv.ParseFloat(lossStr, 64)
		if err != nil {
			warnEnv("parseLossSetting", EnvLossRate, lossStr, err, config.LossRate)
			return
		}
		if !(loss >= 0 && loss <= 1) {
			warnEnv("parseLossSetting", EnvLossRate, lossStr, interfaces.ErrInvalidLossRate, config.LossRate)
			return
		}
		config.LossRate = loss
	}
}

func parseReorderSetting(config *interfaces.NetworkConfig) {
	if windowStr := os.Getenv(EnvReorderWindow); windowStr != "" {
		window, err := strconv.Atoi(windowStr)
		if err != nil {
			warnEnv("parseReorderSetting", EnvReorderWindow, windowStr, err, config.ReorderWindow)
			return
		}
		if window < 0 || window > MaxReorderWindow {
			warnEnv("parseReorderSetting", EnvReorderWindow, windowStr,
				fmt.Errorf("out of bounds [0, %d]", MaxReorderWindow), config.ReorderWindow)
			return
		}
		config.ReorderWindow = window
	}
}

func warnEnv(function, envVar, value string, err error, using interface{}) {
	logrus.WithFields(logrus.Fields{
		"function":    function,
		"env_var":     envVar,
		"value":       value,
		"error":       err.Error(),
		"using_value": using,
	}).Warnf("Failed to parse %s environment variable, using default", envVar)
}

// logConfigurationInfo logs the final configuration settings for debugging purposes.
func logConfigurationInfo(config *interfaces.NetworkConfig) {
	logrus.WithFields(logrus.Fields{
		"function":        "NewTransportFactory",
		"use_simulation":  config.UseSimulation,
		"network_timeout": config.NetworkTimeout,
		"loss_rate":       config.LossRate,
		"reorder_window":  config.ReorderWindow,
	}).Info("Created transport factory with configuration")
}

// sharedLink hands the factory's simulated link to one consumer. Closing a
// handle does nothing; the link lives until the factory is closed.
type sharedLink struct {
	*simnet.SimulatedLink
}

func (sharedLink) Close() error { return nil }

// CreateSender returns a sender for outbound datagrams: an ephemeral UDP socket,
// or a handle on the shared simulated link.
func (f *TransportFactory) CreateSender() (interfaces.IDatagramSender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fmt.Errorf("transport factory: %w", interfaces.ErrClosed)
	}
	if f.defaultConfig.UseSimulation {
		logrus.WithFields(logrus.Fields{
			"function": "CreateSender",
			"type":     "simulation",
		}).Info("Creating simulated datagram sender")
		return sharedLink{f.simulatedLinkLocked()}, nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "CreateSender",
		"type":     "udp",
	}).Info("Creating UDP datagram sender")
	t, err := transport.NewUDPTransport(":0", f.pollIntervalLocked())
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateSource returns a source bound to listenAddr, or a handle on the shared
// simulated link (listenAddr is then ignored).
func (f *TransportFactory) CreateSource(listenAddr string) (interfaces.IDatagramSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fmt.Errorf("transport factory: %w", interfaces.ErrClosed)
	}
	if f.defaultConfig.UseSimulation {
		logrus.WithFields(logrus.Fields{
			"function": "CreateSource",
			"type":     "simulation",
		}).Info("Creating simulated datagram source")
		return sharedLink{f.simulatedLinkLocked()}, nil
	}

	logrus.WithFields(logrus.Fields{
		"function":    "CreateSource",
		"type":        "udp",
		"listen_addr": listenAddr,
	}).Info("Creating UDP datagram source")
	t, err := transport.NewUDPTransport(listenAddr, f.pollIntervalLocked())
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Destination resolves the address a sender should target.
func (f *TransportFactory) Destination(host string, port int) (net.Addr, error) {
	if f.IsUsingSimulation() {
		if host == "" {
			host = "127.0.0.1"
		}
		return simnet.SimAddr(net.JoinHostPort(host, strconv.Itoa(port))), nil
	}
	return transport.ResolveAddr(host, port)
}

// SetSeed makes the simulated link's loss and reorder decisions reproducible.
// It only affects a link created after the call.
func (f *TransportFactory) SetSeed(seed int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seed = seed
	f.seeded = true
}

// SimulatedLink returns the shared simulated link, or nil when none was created.
func (f *TransportFactory) SimulatedLink() *simnet.SimulatedLink {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.link
}

func (f *TransportFactory) simulatedLinkLocked() *simnet.SimulatedLink {
	if f.link == nil {
		var rng *rand.Rand
		if f.seeded {
			rng = rand.New(rand.NewSource(f.seed))
		}
		f.link = simnet.NewSimulatedLink(f.defaultConfig, rng)
	}
	return f.link
}

func (f *TransportFactory) pollIntervalLocked() time.Duration {
	return time.Duration(f.defaultConfig.NetworkTimeout) * time.Millisecond
}

// SwitchToSimulation switches the configuration to use simulation
func (f *TransportFactory) SwitchToSimulation() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToSimulation",
		"previous": f.defaultConfig.UseSimulation,
	}).Info("Switching factory to simulation mode")

	f.defaultConfig.UseSimulation = true
}

// SwitchToReal switches the configuration to use real UDP sockets
func (f *TransportFactory) SwitchToReal() {
	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SwitchToReal",
		"previous": f.defaultConfig.UseSimulation,
	}).Info("Switching factory to real mode")

	f.defaultConfig.UseSimulation = false
}

// GetCurrentConfig returns a copy of the current default configuration
func (f *TransportFactory) GetCurrentConfig() *interfaces.NetworkConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c := *f.defaultConfig
	return &c
}

// IsUsingSimulation returns true if the factory is configured for simulation
func (f *TransportFactory) IsUsingSimulation() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.defaultConfig.UseSimulation
}

// UpdateConfig validates config and stores a copy as the factory's default.
func (f *TransportFactory) UpdateConfig(config *interfaces.NetworkConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":       "UpdateConfig",
		"old_simulation": f.defaultConfig.UseSimulation,
		"new_simulation": config.UseSimulation,
		"old_timeout":    f.defaultConfig.NetworkTimeout,
		"new_timeout":    config.NetworkTimeout,
	}).Info("Updating factory configuration")

	c := *config
	f.defaultConfig = &c
	return nil
}

// Close releases the shared simulated link. Sockets handed out by CreateSender
// and CreateSource belong to their callers.
func (f *TransportFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	if f.link != nil {
		return f.link.Close()
	}
	return nil
}
