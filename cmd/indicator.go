// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/soilstat/pkg/config"
	"github.com/Thermoquad/soilstat/pkg/poller"
	"github.com/warthog618/go-gpiocdev"
)

// GPIOIndicator drives the sensor-present LED through the GPIO character device
type GPIOIndicator struct {
	line *gpiocdev.Line
}

var _ poller.Indicator = (*GPIOIndicator)(nil)

// OpenGPIOIndicator requests the line as an output, initially low
func OpenGPIOIndicator(chip string, offset int) (*GPIOIndicator, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(poller.LevelInactive),
		gpiocdev.WithConsumer("soilstat"))
	if err != nil {
		return nil, fmt.Errorf("failed to request GPIO %s line %d: %w", chip, offset, err)
	}
	return &GPIOIndicator{line: line}, nil
}

func (g *GPIOIndicator) Set(level int) error {
	return g.line.SetValue(level)
}

// Close releases the line back to the kernel
func (g *GPIOIndicator) Close() error {
	return g.line.Close()
}

// openIndicator returns nil when the indicator is disabled
func openIndicator(cfg *config.Config) (poller.Indicator, string, error) {
	if !cfg.IndicatorEnabled() {
		return nil, "disabled", nil
	}
	ind, err := OpenGPIOIndicator(cfg.Indicator.Chip, cfg.Indicator.Line)
	if err != nil {
		return nil, "", err
	}
	return ind, fmt.Sprintf("%s line %d", cfg.Indicator.Chip, cfg.Indicator.Line), nil
}
