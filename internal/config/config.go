// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

// Configuration loading and validation for dmscope

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/dmscope/internal/errors"
	"github.com/Thermoquad/dmscope/internal/logging"
	"github.com/Thermoquad/dmscope/pkg/j1939"
)

// ConnectionConfig selects the gateway link. URL takes precedence over Port.
type ConnectionConfig struct {
	Port        string `yaml:"port,omitempty"`
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url,omitempty"`
	Username    string `yaml:"username,omitempty"`
	NoSSLVerify bool   `yaml:"no_ssl_verify,omitempty"`
}

// BusConfig controls request timing and addressing
type BusConfig struct {
	SourceAddress   uint8   `yaml:"source_address"`
	GlobalTimeoutMs int     `yaml:"global_timeout_ms"`
	DSTimeoutMs     int     `yaml:"ds_timeout_ms"`
	ExpectedModules []uint8 `yaml:"expected_modules,omitempty"`
}

// DefinitionsConfig points at an optional SPN/PGN definition file
type DefinitionsConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls the console and file logger
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// RetryConfig controls how often an unanswered global request is repeated
type RetryConfig struct {
	Attempts uint `yaml:"attempts"`
	DelayMs  int  `yaml:"delay_ms"`
}

// Config is the dmscope configuration file
type Config struct {
	Connection  ConnectionConfig  `yaml:"connection"`
	Bus         BusConfig         `yaml:"bus"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	Logging     LoggingConfig     `yaml:"logging"`
	Retry       RetryConfig       `yaml:"retry"`
}

// Default returns the configuration used when no file is given. Load
// decodes the file on top of it, so keys absent from the file keep these
// values and keys present with a zero value stay zero.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Baud: 115200,
		},
		Bus: BusConfig{
			SourceAddress:   j1939.AddressTool,
			GlobalTimeoutMs: 600,
			DSTimeoutMs:     200,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Retry: RetryConfig{
			Attempts: 1,
			DelayMs:  250,
		},
	}
}

// GlobalTimeout returns the global request window
func (c *Config) GlobalTimeout() time.Duration {
	return time.Duration(c.Bus.GlobalTimeoutMs) * time.Millisecond
}

// DSTimeout returns the destination-specific response window
func (c *Config) DSTimeout() time.Duration {
	return time.Duration(c.Bus.DSTimeoutMs) * time.Millisecond
}

// RetryDelay returns the pause between repeated global requests
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelayMs) * time.Millisecond
}

// Write stores the configuration as YAML
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Load reads a configuration file over the defaults and validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapConfigError(
				fmt.Errorf("config file not found: %s", path),
				path,
			)
		}
		return nil, errors.WrapConfigError(
			fmt.Errorf("read config file: %w", err),
			path,
		)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}

	return cfg, nil
}

// Validate checks ranges and names
func (c *Config) Validate() error {
	if c.Connection.Baud <= 0 {
		return fmt.Errorf("connection.baud must be positive, got %d", c.Connection.Baud)
	}
	if c.Bus.GlobalTimeoutMs <= 0 {
		return fmt.Errorf("bus.global_timeout_ms must be positive, got %d", c.Bus.GlobalTimeoutMs)
	}
	if c.Bus.DSTimeoutMs <= 0 {
		return fmt.Errorf("bus.ds_timeout_ms must be positive, got %d", c.Bus.DSTimeoutMs)
	}
	if c.Bus.SourceAddress >= j1939.AddressNull {
		return fmt.Errorf("bus.source_address 0x%02X is reserved", c.Bus.SourceAddress)
	}
	seen := make(map[uint8]bool)
	for i, addr := range c.Bus.ExpectedModules {
		if addr >= j1939.AddressNull {
			return fmt.Errorf("bus.expected_modules[%d]: address 0x%02X is reserved", i, addr)
		}
		if addr == c.Bus.SourceAddress {
			return fmt.Errorf("bus.expected_modules[%d]: 0x%02X is our own source address", i, addr)
		}
		if seen[addr] {
			return fmt.Errorf("bus.expected_modules[%d]: duplicate address 0x%02X", i, addr)
		}
		seen[addr] = true
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Retry.Attempts == 0 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}
	if c.Retry.DelayMs < 0 {
		return fmt.Errorf("retry.delay_ms must not be negative, got %d", c.Retry.DelayMs)
	}
	return nil
}
