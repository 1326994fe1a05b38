// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config holds the startup configuration for soilstat.
//
// Values come from Default(), optionally overlaid by a YAML file, and are
// frozen once the poller is built. Nothing is written back.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Poll      PollConfig      `yaml:"poll"`
	Indicator IndicatorConfig `yaml:"indicator"`
}

// SerialConfig describes the sensor's UART link (always 8N1)
type SerialConfig struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// WebSocketConfig describes an optional serial-over-WebSocket bridge
type WebSocketConfig struct {
	URL           string `yaml:"url"`
	Username      string `yaml:"username"`
	NoSSLVerify   bool   `yaml:"no_ssl_verify"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// PollConfig controls the query/response cycle timing
type PollConfig struct {
	ResponseTimeoutMs int `yaml:"response_timeout_ms"`
	ReadIntervalMs    int `yaml:"read_interval_ms"`
	DelayMs           int `yaml:"delay_ms"`
}

// IndicatorConfig selects the status LED line. Line < 0 disables the LED.
type IndicatorConfig struct {
	Chip string `yaml:"chip"`
	Line int    `yaml:"line"`
}

// Default returns the settings the sensor ships with
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Port:          "/dev/ttyAMA0",
			Baud:          4800,
			ReadTimeoutMs: 100,
		},
		WebSocket: WebSocketConfig{
			ReadTimeoutMs: 100,
		},
		Poll: PollConfig{
			ResponseTimeoutMs: 2000,
			ReadIntervalMs:    10,
			DelayMs:           3000,
		},
		Indicator: IndicatorConfig{
			Chip: "gpiochip0",
			Line: 18,
		},
	}
}

// Load reads a YAML file over Default() and validates the result.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Serial.Port == "" && cfg.WebSocket.URL == "" {
		return fmt.Errorf("config: serial.port or websocket.url is required")
	}
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("config: serial.baud must be > 0 (got %d)", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeoutMs <= 0 {
		return fmt.Errorf("config: serial.read_timeout_ms must be > 0 (got %d)", cfg.Serial.ReadTimeoutMs)
	}
	if cfg.WebSocket.ReadTimeoutMs <= 0 {
		return fmt.Errorf("config: websocket.read_timeout_ms must be > 0 (got %d)", cfg.WebSocket.ReadTimeoutMs)
	}
	if cfg.Poll.ResponseTimeoutMs <= 0 {
		return fmt.Errorf("config: poll.response_timeout_ms must be > 0 (got %d)", cfg.Poll.ResponseTimeoutMs)
	}
	if cfg.Poll.ReadIntervalMs <= 0 {
		return fmt.Errorf("config: poll.read_interval_ms must be > 0 (got %d)", cfg.Poll.ReadIntervalMs)
	}
	if cfg.Poll.ReadIntervalMs > cfg.Poll.ResponseTimeoutMs {
		return fmt.Errorf("config: poll.read_interval_ms (%d) exceeds poll.response_timeout_ms (%d)",
			cfg.Poll.ReadIntervalMs, cfg.Poll.ResponseTimeoutMs)
	}
	if cfg.Poll.DelayMs < 0 {
		return fmt.Errorf("config: poll.delay_ms must be >= 0 (got %d)", cfg.Poll.DelayMs)
	}
	if cfg.Indicator.Line >= 0 && cfg.Indicator.Chip == "" {
		return fmt.Errorf("config: indicator.chip is required when indicator.line is set")
	}
	return nil
}

// IndicatorEnabled reports whether a status LED line is configured
func (c *Config) IndicatorEnabled() bool {
	return c.Indicator.Line >= 0
}

// ResponseTimeout returns the cap on waiting for one response
func (c *Config) ResponseTimeout() time.Duration {
	return time.Duration(c.Poll.ResponseTimeoutMs) * time.Millisecond
}

// ReadInterval returns the pause between transport reads while awaiting a response
func (c *Config) ReadInterval() time.Duration {
	return time.Duration(c.Poll.ReadIntervalMs) * time.Millisecond
}

// Delay returns the pause between poll cycles
func (c *Config) Delay() time.Duration {
	return time.Duration(c.Poll.DelayMs) * time.Millisecond
}

// SerialReadTimeout returns the serial port's internal read timeout
func (c *Config) SerialReadTimeout() time.Duration {
	return time.Duration(c.Serial.ReadTimeoutMs) * time.Millisecond
}

// WebSocketReadTimeout returns how long one bridge read waits for a message
func (c *Config) WebSocketReadTimeout() time.Duration {
	return time.Duration(c.WebSocket.ReadTimeoutMs) * time.Millisecond
}
