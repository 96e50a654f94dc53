/*
Copyright 2024 SerialLink Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config provides configuration loading and management for the
// iiod daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete daemon configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Device  DeviceConfig  `mapstructure:"device" yaml:"device"`
	Stream  StreamConfig  `mapstructure:"stream" yaml:"stream"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds the TCP front end's settings.
type ServerConfig struct {
	ListenAddress  string `mapstructure:"listen_address" yaml:"listen_address"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
}

// DeviceConfig selects and configures the device.Context backend.
type DeviceConfig struct {
	// Backend is either "mock" (in-memory, deterministic) or "sysfs"
	// (real Linux IIO chardev + sysfs attributes).
	Backend   string `mapstructure:"backend" yaml:"backend"`
	SysfsBase string `mapstructure:"sysfs_base" yaml:"sysfs_base"`
	DevBase   string `mapstructure:"dev_base" yaml:"dev_base"`
	// Devices lists the id/name-to-path mapping the sysfs backend
	// resolves against; the daemon's streaming core never discovers
	// devices itself, it only consumes an already-enumerated context.
	Devices []DeviceSpec `mapstructure:"devices" yaml:"devices"`
}

// DeviceSpec names one device the sysfs backend should expose.
// Chardev/SysfsDir are ignored by the mock backend.
type DeviceSpec struct {
	ID       string `mapstructure:"id" yaml:"id"`
	Name     string `mapstructure:"name" yaml:"name"`
	Chardev  string `mapstructure:"chardev" yaml:"chardev"`
	SysfsDir string `mapstructure:"sysfs_dir" yaml:"sysfs_dir"`
}

// StreamConfig holds the reader task's tunables.
type StreamConfig struct {
	// IterationByteCap bounds how many bytes a single hardware read may
	// request per loop iteration, so large requests stay interruptible
	// and memory use is bounded.
	IterationByteCap int `mapstructure:"iteration_byte_cap" yaml:"iteration_byte_cap"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:  "0.0.0.0:30431",
			MaxConnections: 64,
		},
		Device: DeviceConfig{
			Backend:   "mock",
			SysfsBase: "/sys/bus/iio/devices",
			DevBase:   "/dev",
			Devices: []DeviceSpec{
				{ID: "dev0", Name: "mock0"},
			},
		},
		Stream: StreamConfig{
			IterationByteCap: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults seeds viper with DefaultConfig's values.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("server.listen_address", defaults.Server.ListenAddress)
	viper.SetDefault("server.max_connections", defaults.Server.MaxConnections)

	viper.SetDefault("device.backend", defaults.Device.Backend)
	viper.SetDefault("device.sysfs_base", defaults.Device.SysfsBase)
	viper.SetDefault("device.dev_base", defaults.Device.DevBase)
	viper.SetDefault("device.devices", defaults.Device.Devices)

	viper.SetDefault("stream.iteration_byte_cap", defaults.Stream.IterationByteCap)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
}

// Load reads configuration from viper and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	viper.SetConfigFile(path)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Load()
}

// LoadOrDefault loads configuration from file, or returns default if
// the file doesn't exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	for key, value := range c.toMap() {
		viper.Set(key, value)
	}

	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) toMap() map[string]interface{} {
	return map[string]interface{}{
		"server":  c.Server,
		"device":  c.Device,
		"stream":  c.Stream,
		"logging": c.Logging,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}

	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be at least 1")
	}

	switch c.Device.Backend {
	case "mock", "sysfs":
	default:
		return fmt.Errorf("invalid device backend: %s", c.Device.Backend)
	}

	if c.Stream.IterationByteCap < 1 {
		return fmt.Errorf("iteration_byte_cap must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// DefaultConfigPath returns the default configuration file path for
// the current OS.
func DefaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "iiod", "config.yaml")
	case "darwin":
		return "/usr/local/etc/iiod/config.yaml"
	default:
		return "/etc/iiod/config.yaml"
	}
}

// UserConfigPath returns the user-specific configuration file path.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, ".iiod", "config.yaml")
	default:
		return filepath.Join(home, ".config", "iiod", "config.yaml")
	}
}

// InitViper initializes viper with default configuration paths.
func InitViper(configFile string) error {
	SetDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			viper.AddConfigPath(filepath.Join(home, ".iiod"))
			viper.AddConfigPath(filepath.Join(home, ".config", "iiod"))
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/iiod")

		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("IIOD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}
