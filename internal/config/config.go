package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete sleepgate configuration
type Config struct {
	Mailbox  MailboxConfig  `mapstructure:"mailbox"`
	Gate     GateConfig     `mapstructure:"gate"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Simulate SimulateConfig `mapstructure:"simulate"`
}

// MailboxConfig controls the shared message buffer
type MailboxConfig struct {
	// Capacity is the maximum stored message length in bytes (default: 100)
	Capacity int `mapstructure:"capacity"`
}

// GateConfig controls the exclusive access gate
type GateConfig struct {
	// LogContention logs busy and waiting acquisitions at debug level (default: true)
	LogContention bool `mapstructure:"log_contention"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the minimum level written: debug, info, warn, error (default: "info")
	Level string `mapstructure:"level"`
	// File is the log file path; empty writes to stderr
	File string `mapstructure:"file"`
}

// ServerConfig controls the line protocol listener
type ServerConfig struct {
	// Network is "unix" or "tcp" (default: "unix")
	Network string `mapstructure:"network"`
	// Address is the socket path or host:port to listen on
	Address string `mapstructure:"address"`
	// IdleTimeout closes connections idle this long (0 = never)
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Enabled serves /metrics alongside the protocol listener (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Address is the HTTP listen address (default: ":9464")
	Address string `mapstructure:"address"`
}

// SimulateConfig controls the simulate command
type SimulateConfig struct {
	// Sessions is the number of concurrent sessions to run (default: 8)
	Sessions int `mapstructure:"sessions"`
	// Blocking opens sessions in blocking mode (default: true)
	Blocking bool `mapstructure:"blocking"`
	// Hold is how long each session keeps the gate (default: 50ms)
	Hold time.Duration `mapstructure:"hold"`
	// Message is written by every session, suffixed with its ID
	Message string `mapstructure:"message"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Mailbox: MailboxConfig{
			Capacity: 100,
		},
		Gate: GateConfig{
			LogContention: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Server: ServerConfig{
			Network:     "unix",
			Address:     DefaultSocketPath(),
			IdleTimeout: 0,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9464",
		},
		Simulate: SimulateConfig{
			Sessions: 8,
			Blocking: true,
			Hold:     50 * time.Millisecond,
			Message:  "hello",
		},
	}
}

// DefaultSocketPath returns the default unix socket path
func DefaultSocketPath() string {
	return filepath.Join(os.TempDir(), "sleepgate.sock")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("mailbox.capacity", defaults.Mailbox.Capacity)

	viper.SetDefault("gate.log_contention", defaults.Gate.LogContention)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)

	viper.SetDefault("server.network", defaults.Server.Network)
	viper.SetDefault("server.address", defaults.Server.Address)
	viper.SetDefault("server.idle_timeout", defaults.Server.IdleTimeout)

	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.address", defaults.Metrics.Address)

	viper.SetDefault("simulate.sessions", defaults.Simulate.Sessions)
	viper.SetDefault("simulate.blocking", defaults.Simulate.Blocking)
	viper.SetDefault("simulate.hold", defaults.Simulate.Hold)
	viper.SetDefault("simulate.message", defaults.Simulate.Message)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the directory holding the config file
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sleepgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sleepgate"
	}
	return filepath.Join(home, ".config", "sleepgate")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Marshal renders the configuration as YAML using the same keys viper reads.
// Durations are written in Go notation (e.g. "50ms").
func (c *Config) Marshal() ([]byte, error) {
	doc := map[string]any{
		"mailbox": map[string]any{
			"capacity": c.Mailbox.Capacity,
		},
		"gate": map[string]any{
			"log_contention": c.Gate.LogContention,
		},
		"logging": map[string]any{
			"level": c.Logging.Level,
			"file":  c.Logging.File,
		},
		"server": map[string]any{
			"network":      c.Server.Network,
			"address":      c.Server.Address,
			"idle_timeout": c.Server.IdleTimeout.String(),
		},
		"metrics": map[string]any{
			"enabled": c.Metrics.Enabled,
			"address": c.Metrics.Address,
		},
		"simulate": map[string]any{
			"sessions": c.Simulate.Sessions,
			"blocking": c.Simulate.Blocking,
			"hold":     c.Simulate.Hold.String(),
			"message":  c.Simulate.Message,
		},
	}
	return yaml.Marshal(doc)
}
