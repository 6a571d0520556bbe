package roku

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the Roku bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Polling   PollingConfig   `yaml:"polling"`
	Remote    RemoteConfig    `yaml:"remote"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Devices   []DeviceConfig  `yaml:"devices"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance in health reports.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`
}

// PollingConfig controls the device refresh schedule.
type PollingConfig struct {
	// ScanInterval is the time between refreshes of each device (seconds).
	// Default: 30 seconds.
	ScanInterval int `yaml:"scan_interval"`

	// RequestTimeout bounds every ECP request (seconds).
	// Default: 5 seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// SetupRetryInterval is the delay before retrying a device that was
	// not ready at startup (seconds). Default: 30 seconds.
	SetupRetryInterval int `yaml:"setup_retry_interval"`
}

// RemoteConfig controls keypress pacing.
type RemoteConfig struct {
	// KeypressInterval is the minimum spacing between keypresses (milliseconds).
	// Default: 100ms. Zero disables pacing.
	KeypressInterval int `yaml:"keypress_interval_ms"`
}

// DiscoveryConfig controls SSDP discovery of players on the local network.
type DiscoveryConfig struct {
	// Enabled runs one discovery pass at startup.
	Enabled bool `yaml:"enabled"`

	// Timeout is how long to collect SSDP responses (seconds).
	// Default: 3 seconds.
	Timeout int `yaml:"timeout"`

	// AutoAdd sets up discovered players that are not configured.
	// When false they are only announced on the discovery topic.
	AutoAdd bool `yaml:"auto_add"`
}

// DeviceConfig defines one player.
type DeviceConfig struct {
	// Host is the player's IP address or hostname.
	Host string `yaml:"host"`

	// Port overrides the ECP port (default 8060).
	Port int `yaml:"port"`

	// Name is an optional display name used until the device reports its own.
	Name string `yaml:"name"`

	// Serial is optional; the device-reported serial number takes precedence.
	Serial string `yaml:"serial"`
}

// Identity returns the session identity for this device.
func (d DeviceConfig) Identity() Identity {
	return Identity{
		Host:   d.Host,
		Port:   d.Port,
		Name:   d.Name,
		Serial: d.Serial,
	}
}

// LoadConfig reads configuration from a YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ROKU_BRIDGE_SECTION_KEY
// For example: ROKU_BRIDGE_POLLING_SCAN_INTERVAL, ROKU_BRIDGE_DEVICES
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "roku-bridge-01",
			HealthInterval: 30,
		},
		Polling: PollingConfig{
			ScanInterval:       30,
			RequestTimeout:     5,
			SetupRetryInterval: 30,
		},
		Remote: RemoteConfig{
			KeypressInterval: 100,
		},
		Discovery: DiscoveryConfig{
			Timeout: 3,
		},
		Devices: []DeviceConfig{},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROKU_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}

	if v := os.Getenv("ROKU_BRIDGE_POLLING_SCAN_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Polling.ScanInterval = n
		}
	}

	if v := os.Getenv("ROKU_BRIDGE_DISCOVERY_ENABLED"); v != "" {
		cfg.Discovery.Enabled = v == "true" || v == "1"
	}

	// Comma-separated hosts, appended when not already configured.
	if v := os.Getenv("ROKU_BRIDGE_DEVICES"); v != "" {
		known := make(map[string]bool, len(cfg.Devices))
		for _, d := range cfg.Devices {
			known[d.Host] = true
		}
		for _, host := range strings.Split(v, ",") {
			host = strings.TrimSpace(host)
			if host == "" || known[host] {
				continue
			}
			known[host] = true
			cfg.Devices = append(cfg.Devices, DeviceConfig{Host: host})
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validatePolling()...)
	errs = append(errs, c.validateDevices()...)

	if c.Remote.KeypressInterval < 0 {
		errs = append(errs, "remote.keypress_interval_ms must not be negative")
	}
	if c.Discovery.Enabled && c.Discovery.Timeout < 1 {
		errs = append(errs, "discovery.timeout must be at least 1 second")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	return errs
}

func (c *Config) validatePolling() []string {
	var errs []string
	if c.Polling.ScanInterval < 1 {
		errs = append(errs, "polling.scan_interval must be at least 1 second")
	}
	if c.Polling.RequestTimeout < 1 {
		errs = append(errs, "polling.request_timeout must be at least 1 second")
	}
	if c.Polling.SetupRetryInterval < 1 {
		errs = append(errs, "polling.setup_retry_interval must be at least 1 second")
	}
	return errs
}

func (c *Config) validateDevices() []string {
	var errs []string
	hosts := make(map[string]bool)

	for i, dev := range c.Devices {
		if dev.Host == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].host is required", i))
			continue
		}
		if strings.ContainsAny(dev.Host, "/ ") {
			errs = append(errs, fmt.Sprintf("devices[%d].host %q is invalid", i, dev.Host))
		}
		if _, _, err := net.SplitHostPort(dev.Host); err == nil {
			errs = append(errs, fmt.Sprintf("devices[%d].host %q must not include a port (use port)", i, dev.Host))
		}
		if hosts[dev.Host] {
			errs = append(errs, fmt.Sprintf("devices[%d].host %q is duplicate", i, dev.Host))
		}
		hosts[dev.Host] = true

		if dev.Port < 0 || dev.Port > 65535 {
			errs = append(errs, fmt.Sprintf("devices[%d].port must be between 0 and 65535", i))
		}
	}

	return errs
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetScanInterval returns the poll interval as a Duration.
func (c *Config) GetScanInterval() time.Duration {
	return time.Duration(c.Polling.ScanInterval) * time.Second
}

// GetRequestTimeout returns the per-request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Polling.RequestTimeout) * time.Second
}

// GetSetupRetryInterval returns the setup retry delay as a Duration.
func (c *Config) GetSetupRetryInterval() time.Duration {
	return time.Duration(c.Polling.SetupRetryInterval) * time.Second
}

// GetKeypressInterval returns the keypress spacing. Zero disables pacing,
// which the ECP client expresses as a negative interval.
func (c *Config) GetKeypressInterval() time.Duration {
	if c.Remote.KeypressInterval == 0 {
		return -1
	}
	return time.Duration(c.Remote.KeypressInterval) * time.Millisecond
}

// GetDiscoveryTimeout returns the SSDP collection window as a Duration.
func (c *Config) GetDiscoveryTimeout() time.Duration {
	return time.Duration(c.Discovery.Timeout) * time.Second
}
