// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/Thermoquad/soilstat/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "soilstat",
	Short: "Soil NPK Sensor Monitor",
	Long: `Soilstat - A CLI tool for polling 7-in-1 soil sensors over Modbus RTU.

Sends a read-holding-registers query, validates the framing and CRC of the
response, and decodes moisture, temperature, conductivity, pH, nitrogen,
phosphorus and potassium. An optional GPIO line lights while the sensor answers.

Connection modes:
  Serial:    --port /dev/ttyAMA0 [--baud 4800]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a YAML file given with --config. Flags given on the
command line take precedence over the file.

For WebSocket authentication, the password is read from the SOILSTAT_PASSWORD
environment variable, or prompted interactively if not set.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	addConnectionFlags(rootCmd.PersistentFlags())
}

// addConnectionFlags registers the flags that select and configure the sensor link
func addConnectionFlags(flags *pflag.FlagSet) {
	defaults := config.Default()

	// Serial connection flags
	flags.StringVarP(&portName, "port", "p", defaults.Serial.Port, "Serial port device")
	flags.IntVarP(&baudRate, "baud", "b", defaults.Serial.Baud, "Baud rate (serial only)")

	// WebSocket connection flags
	flags.StringVarP(&wsURL, "url", "u", "", "WebSocket URL of a serial bridge (ws:// or wss://)")
	flags.StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	flags.BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// setupLogging routes diagnostics to stderr so stdout stays readable
func setupLogging() {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
