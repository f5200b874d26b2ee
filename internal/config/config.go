// Package config provides process configuration for Medusa. Values are
// resolved in order: built-in defaults, then an optional YAML file, then
// MEDUSA_* environment variables. The core packages receive the resolved
// Config; they never read the environment themselves.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the Medusa server configuration.
type Config struct {
	// Server settings
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Connection limits
	MaxConnections int  `yaml:"max_connections"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	EnableTimeouts bool `yaml:"enable_timeouts"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	EnableMetrics bool   `yaml:"enable_metrics"`
	MetricsAddr   string `yaml:"metrics_addr"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           2312,
		MaxConnections: 100,
		TimeoutSeconds: 30,
		EnableTimeouts: false,
		LogLevel:       "info",
		EnableMetrics:  false,
		MetricsAddr:    ":8080",
	}
}

// Load resolves the configuration: defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides fields from MEDUSA_* environment variables.
// Unparsable values are ignored, keeping the previously resolved value.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("MEDUSA_HOST"); ok {
		c.Host = v
	}
	if v, ok := os.LookupEnv("MEDUSA_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v, ok := os.LookupEnv("MEDUSA_MAX_CONNECTIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConnections = n
		}
	}
	if v, ok := os.LookupEnv("MEDUSA_TIMEOUT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.TimeoutSeconds = n
		}
	}
	if v, ok := os.LookupEnv("MEDUSA_ENABLE_TIMEOUTS"); ok {
		c.EnableTimeouts = isTrue(v)
	}
	if v, ok := os.LookupEnv("MEDUSA_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := os.LookupEnv("MEDUSA_METRICS"); ok {
		c.EnableMetrics = isTrue(v)
	}
	if v, ok := os.LookupEnv("MEDUSA_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
}

func isTrue(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Timeout returns the per-connection idle timeout, or zero when timeouts
// are disabled.
func (c *Config) Timeout() time.Duration {
	if !c.EnableTimeouts {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
