package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
)

// Database file names under the data directory.
const (
	GatewayDBFile = "ccg_gateway.db"
	LogsDBFile    = "ccg_logs.db"
)

// Config is the gateway's process configuration.
type Config struct {
	// Host is the listen interface. The gateway is a local multiplexer and
	// binds loopback by default.
	Host string `yaml:"host"`

	// Port is the listen port.
	Port int `yaml:"port"`

	// DataDir holds both SQLite databases.
	DataDir string `yaml:"data_dir"`

	// LogLevel is one of debug, info, warn, error. Reloadable at runtime.
	LogLevel string `yaml:"log_level"`

	// Retention controls pruning of old telemetry rows.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig controls the telemetry pruning schedule.
type RetentionConfig struct {
	// Days is how long request and system logs are kept. Zero disables
	// pruning.
	Days int `yaml:"days"`

	// Schedule is a standard cron expression for the prune job.
	Schedule string `yaml:"schedule"`
}

// ListenAddress returns the host:port the server binds.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GatewayDBPath returns the configuration store path.
func (c *Config) GatewayDBPath() string {
	return filepath.Join(c.DataDir, GatewayDBFile)
}

// LogsDBPath returns the telemetry store path.
func (c *Config) LogsDBPath() string {
	return filepath.Join(c.DataDir, LogsDBFile)
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range [1, 65535]", c.Port)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention days %d must not be negative", c.Retention.Days)
	}
	return nil
}
