// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigHomeEnv points at the directory the remote assigns for driver state
const ConfigHomeEnv = "UC_CONFIG_HOME"

// Config represents the driver configuration structure
type Config struct {
	Driver     DriverConfig     `yaml:"driver"`
	Management ManagementConfig `yaml:"management"`
	Registry   RegistryConfig   `yaml:"registry"`
	Device     LegacyDevice     `yaml:"device,omitempty"`
}

// DriverConfig contains integration WebSocket settings
type DriverConfig struct {
	Listen   string `yaml:"listen"`   // bind address for the integration API
	Port     int    `yaml:"port"`     // integration API port
	Token    string `yaml:"token"`    // optional auth-token required from remotes
	Metadata string `yaml:"metadata"` // path to driver.json
}

// ManagementConfig contains local management API settings
type ManagementConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Listen       string `yaml:"listen"`
	JWTSecret    string `yaml:"jwt_secret"`
	PasswordHash string `yaml:"password_hash"` // argon2id hash of the admin password
}

// RegistryConfig contains paired-device registry settings
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// LegacyDevice is the single host+token pair older releases persisted.
// It is migrated into the registry on startup and kept only for loading
// old config files.
type LegacyDevice struct {
	Host  string `yaml:"host,omitempty"`
	Token string `yaml:"token,omitempty"`
}

// ConfigDir returns the driver's configuration directory, creating it if
// needed. Honors UC_CONFIG_HOME, falls back to ./config.
func ConfigDir() (string, error) {
	dir := os.Getenv(ConfigHomeEnv)
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = filepath.Join(cwd, "config")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return dir, nil
}

// DefaultConfigPath returns the path of the driver config file
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadOrCreateConfig loads the config file, writing defaults when missing
func LoadOrCreateConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := NewDefaultConfig()
		if err := SaveConfig(config, path); err != nil {
			return nil, err
		}
		return config, nil
	}

	return LoadConfig(path)
}

// SaveConfig saves configuration to a YAML file with restricted permissions
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Save saves the configuration to a YAML file
func (c *Config) Save(path string) error {
	return SaveConfig(c, path)
}

func (c *Config) applyDefaults() {
	if c.Driver.Listen == "" {
		c.Driver.Listen = "0.0.0.0"
	}
	if c.Driver.Port == 0 {
		c.Driver.Port = 9090
	}
	if c.Driver.Metadata == "" {
		c.Driver.Metadata = "driver.json"
	}
	if c.Management.Listen == "" {
		c.Management.Listen = "127.0.0.1:9191"
	}
	if c.Registry.Path == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Registry.Path = filepath.Join(dir, "devices.db")
		} else {
			c.Registry.Path = "devices.db"
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Driver.Port < 1 || c.Driver.Port > 65535 {
		return fmt.Errorf("driver.port must be between 1 and 65535")
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path is required")
	}
	if c.Management.Enabled {
		if c.Management.Listen == "" {
			return fmt.Errorf("management.listen is required when management is enabled")
		}
		if c.Management.JWTSecret == "" {
			return fmt.Errorf("management.jwt_secret is required when management is enabled")
		}
		if c.Management.PasswordHash == "" {
			return fmt.Errorf("management.password_hash is required when management is enabled")
		}
	}
	return nil
}

// ListenAddress returns the integration API bind address
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Driver.Listen, c.Driver.Port)
}

// HasLegacyDevice reports whether an old single-device pairing is present
func (c *Config) HasLegacyDevice() bool {
	return c.Device.Host != "" && c.Device.Token != ""
}

// ClearLegacyDevice removes the migrated single-device pairing
func (c *Config) ClearLegacyDevice() {
	c.Device = LegacyDevice{}
}

// NewDefaultConfig creates a default configuration
func NewDefaultConfig() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

// Sanitized returns a copy safe for logging: secrets are redacted
func (c *Config) Sanitized() Config {
	out := *c
	if out.Driver.Token != "" {
		out.Driver.Token = "***"
	}
	if out.Management.JWTSecret != "" {
		out.Management.JWTSecret = "***"
	}
	if out.Management.PasswordHash != "" {
		out.Management.PasswordHash = "***"
	}
	if out.Device.Token != "" {
		out.Device.Token = "***"
	}
	return out
}
