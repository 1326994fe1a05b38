// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/soilstat/pkg/npk"
	"github.com/Thermoquad/soilstat/pkg/poller"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the sensor with a single poll cycle",
	Long: `Send one query to the soil sensor and report whether a valid response arrived.

The status LED follows the outcome of the cycle and is switched off when the
command exits.

Exit codes:
  0 - Valid reading received
  1 - No response, or the response failed validation
  2 - Connection error
  130 - Interrupted before the cycle finished

Useful for checking wiring and bridge connectivity from scripts.`,
	Run: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	addPollFlags(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(probeExitConnection)
	}

	reporter := newTextReporter(os.Stdout)
	p, connInfo, _, err := openPoller(cfg, 1, reporter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(probeExitConnection)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Soilstat - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v\n\n", cfg.ResponseTimeout())

	res := p.PollOnce(ctx)
	if err := p.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup error: %v\n", err)
	}

	code, message := probeOutcome(res)
	fmt.Print(message)
	os.Exit(code)
}

// Probe exit codes
const (
	probeExitOK          = 0
	probeExitFailed      = 1
	probeExitConnection  = 2
	probeExitInterrupted = 130
)

// probeOutcome maps a probe cycle to its exit code and closing message
func probeOutcome(res poller.Result) (int, string) {
	switch {
	case errors.Is(res.Err, context.Canceled):
		return probeExitInterrupted, "\nProbe interrupted by user.\n"
	case res.Err != nil:
		return probeExitFailed, fmt.Sprintf("FAILED: %v\n", res.Err)
	default:
		return probeExitOK, fmt.Sprintf("SUCCESS: Received valid reading\n  Frame: %s\n", npk.FormatHex(res.Raw))
	}
}
