// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Soilstat - Soil NPK Sensor Monitor
//
// A CLI tool for polling 7-in-1 soil sensors over Modbus RTU and
// reporting their readings in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/soilstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
