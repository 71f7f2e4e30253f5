package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result. A missing file is not an error; the
// gateway runs on defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("read configuration file %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse configuration file %q: %w", path, err)
			}
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies the gateway's environment variables. They take
// precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("GATEWAY_HOST"); val != "" {
		cfg.Host = val
	}
	if val := os.Getenv("GATEWAY_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Port = port
		}
	}
	if val := os.Getenv("CCG_DATA_DIR"); val != "" {
		cfg.DataDir = val
	}
	if val := os.Getenv("CCG_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
}
