// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/soilstat/pkg/config"
	"github.com/Thermoquad/soilstat/pkg/poller"
	"github.com/spf13/cobra"
)

// Per-command poll tuning flags, registered by commands that talk to the sensor
var (
	responseTimeoutMs int
	delayMs           int
	ledChip           string
	ledLine           int
)

func addPollFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().IntVar(&responseTimeoutMs, "timeout-ms", defaults.Poll.ResponseTimeoutMs, "Response timeout in milliseconds")
	cmd.Flags().IntVar(&delayMs, "delay-ms", defaults.Poll.DelayMs, "Delay between polls in milliseconds")
	cmd.Flags().StringVar(&ledChip, "led-chip", defaults.Indicator.Chip, "GPIO chip for the status LED")
	cmd.Flags().IntVar(&ledLine, "led-line", defaults.Indicator.Line, "GPIO line for the status LED (-1 to disable)")
}

// resolveConfig builds the startup configuration: defaults, then the
// optional YAML file, then any flag set explicitly on the command line.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = portName
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = baudRate
	}
	if flags.Changed("url") {
		cfg.WebSocket.URL = wsURL
	}
	if flags.Changed("username") {
		cfg.WebSocket.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		cfg.WebSocket.NoSSLVerify = wsNoSSLVerify
	}
	if flags.Changed("timeout-ms") {
		cfg.Poll.ResponseTimeoutMs = responseTimeoutMs
	}
	if flags.Changed("delay-ms") {
		cfg.Poll.DelayMs = delayMs
	}
	if flags.Changed("led-chip") {
		cfg.Indicator.Chip = ledChip
	}
	if flags.Changed("led-line") {
		cfg.Indicator.Line = ledLine
	}

	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// pollerConfig freezes the timing settings for the poll loop
func pollerConfig(cfg *config.Config, maxCycles uint64) poller.Config {
	return poller.Config{
		ResponseTimeout: cfg.ResponseTimeout(),
		ReadInterval:    cfg.ReadInterval(),
		Delay:           cfg.Delay(),
		MaxCycles:       maxCycles,
	}
}
