package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for dubswitch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	X32       X32Config       `yaml:"x32"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// X32Config contains settings for talking to the X32 console.
type X32Config struct {
	// DevicePort is the UDP port the console listens on. Default: 10023.
	DevicePort int `yaml:"device_port"`

	// LocalPort is the local UDP port to bind. 0 means an ephemeral port.
	LocalPort int `yaml:"local_port"`

	// QueryTimeoutMS is how long a multi-part query waits for all replies
	// before resolving with a partial result. Default: 2000.
	QueryTimeoutMS int `yaml:"query_timeout_ms"`

	// DiscoveryTimeoutMS is how long an autodiscover probe waits for a
	// console to answer the broadcast. Default: 2000.
	DiscoveryTimeoutMS int `yaml:"discovery_timeout_ms"`

	// WatchdogIntervalMS is the keep-alive probe period. Default: 5000.
	WatchdogIntervalMS int `yaml:"watchdog_interval_ms"`
}

// StoreConfig contains durable file store settings.
type StoreConfig struct {
	// MatrixPath is the path of the channel matrix JSON document.
	MatrixPath string `yaml:"matrix_path"`

	// PortPath is the path of the persisted preferred HTTP port.
	PortPath string `yaml:"port_path"`
}

// DatabaseConfig contains SQLite settings for the routing history log.
// RetentionDays caps how long history rows are kept; 0 keeps them forever.
type DatabaseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	WALMode       bool   `yaml:"wal_mode"`
	BusyTimeout   int    `yaml:"busy_timeout"`
	RetentionDays int    `yaml:"retention_days"`
}

// MQTTConfig contains the optional MQTT state mirror settings.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DUBSWITCH_SECTION_KEY
// For example: DUBSWITCH_API_PORT, DUBSWITCH_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration, with environment overrides
// applied. Used when no config file is present: dubswitch is expected to
// run usefully with zero configuration on a trusted LAN.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		X32: X32Config{
			DevicePort:         10023,
			LocalPort:          0,
			QueryTimeoutMS:     2000,
			DiscoveryTimeoutMS: 2000,
			WatchdogIntervalMS: 5000,
		},
		Store: StoreConfig{
			MatrixPath: "./data/matrix.json",
			PortPath:   "./data/port",
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          "./data/dubswitch.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dubswitch",
			},
			QoS: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DUBSWITCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("DUBSWITCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("DUBSWITCH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// X32
	if v := os.Getenv("DUBSWITCH_X32_DEVICE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.X32.DevicePort = port
		}
	}

	// Store
	if v := os.Getenv("DUBSWITCH_STORE_MATRIX_PATH"); v != "" {
		cfg.Store.MatrixPath = v
	}
	if v := os.Getenv("DUBSWITCH_STORE_PORT_PATH"); v != "" {
		cfg.Store.PortPath = v
	}

	// Database
	if v := os.Getenv("DUBSWITCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DUBSWITCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DUBSWITCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DUBSWITCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// X32 validation
	if c.X32.DevicePort < 1 || c.X32.DevicePort > 65535 {
		errs = append(errs, "x32.device_port must be between 1 and 65535")
	}
	if c.X32.LocalPort < 0 || c.X32.LocalPort > 65535 {
		errs = append(errs, "x32.local_port must be between 0 and 65535")
	}
	if c.X32.QueryTimeoutMS <= 0 {
		errs = append(errs, "x32.query_timeout_ms must be positive")
	}
	if c.X32.DiscoveryTimeoutMS <= 0 {
		errs = append(errs, "x32.discovery_timeout_ms must be positive")
	}
	if c.X32.WatchdogIntervalMS <= 0 {
		errs = append(errs, "x32.watchdog_interval_ms must be positive")
	}

	// Store validation
	if c.Store.MatrixPath == "" {
		errs = append(errs, "store.matrix_path is required")
	}
	if c.Store.PortPath == "" {
		errs = append(errs, "store.port_path is required")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database.enabled is true")
	}
	if c.Database.RetentionDays < 0 {
		errs = append(errs, "database.retention_days must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetQueryTimeout returns the multi-part query deadline as a Duration.
func (c *X32Config) GetQueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutMS) * time.Millisecond
}

// GetDiscoveryTimeout returns the autodiscover wait as a Duration.
func (c *X32Config) GetDiscoveryTimeout() time.Duration {
	return time.Duration(c.DiscoveryTimeoutMS) * time.Millisecond
}

// GetWatchdogInterval returns the keep-alive probe period as a Duration.
func (c *X32Config) GetWatchdogInterval() time.Duration {
	return time.Duration(c.WatchdogIntervalMS) * time.Millisecond
}
