// Package daemon holds the long-running process configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from TOML.
type Config struct {
	API    APIConfig    `toml:"api"`
	Store  StoreConfig  `toml:"store"`
	Queue  QueueConfig  `toml:"queue"`
	Health HealthConfig `toml:"health"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// StoreConfig configures persistence. An empty Path selects the in-memory
// store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// QueueConfig configures the automation worker.
type QueueConfig struct {
	DrainInterval string `toml:"drain_interval"`
	LogCapacity   int    `toml:"log_capacity"`
}

// HealthConfig configures the rolling health monitor.
type HealthConfig struct {
	Capacity int `toml:"capacity"`
	Window   int `toml:"window"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8090,
			Metrics: true,
		},
		Store: StoreConfig{
			Path: filepath.Join(DataDir(), "givepulse.db"),
		},
		Queue: QueueConfig{
			DrainInterval: "3s",
			LogCapacity:   200,
		},
		Health: HealthConfig{
			Capacity: 500,
			Window:   50,
		},
	}
}

// DataDir returns the daemon state directory, honoring GIVEPULSE_HOME.
func DataDir() string {
	if dir := os.Getenv("GIVEPULSE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".givepulse"
	}
	return filepath.Join(home, ".givepulse")
}

// LoadConfig reads TOML config from path, falling back to defaults for any
// field the file leaves unset. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = filepath.Join(DataDir(), "config.toml")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Addr returns the host:port the API listener binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// ParseDuration converts a config duration string, falling back when the
// value is empty or malformed.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
