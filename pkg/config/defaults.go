package config

import (
	"os"
	"path/filepath"
)

// Default listen address per the gateway contract.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 7788
)

// DefaultDataDir returns $HOME/.ccg-gateway, falling back to a relative
// directory when the home directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ccg-gateway"
	}
	return filepath.Join(home, ".ccg-gateway")
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = 30
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = "0 3 * * *"
	}
}
