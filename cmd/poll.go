// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/soilstat/pkg/config"
	"github.com/Thermoquad/soilstat/pkg/poller"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	pollCount     uint64
	statsInterval int
	useTUI        bool
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the soil sensor continuously",
	Long: `Query the soil sensor in a loop and report each reading.

Every cycle clears the receive buffer, sends the read-holding-registers query,
waits for the 19-byte response and validates its header and CRC. Valid
responses are decoded into moisture, temperature, conductivity, pH, nitrogen,
phosphorus and potassium. The status LED is lit while the sensor answers and
turned off on any failure.

Failures (no response, short frame, bad header, CRC mismatch) are reported and
polling continues. Ctrl+C stops the loop, turns the LED off and releases the
port and GPIO line.`,
	RunE: runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)
	pollCmd.Flags().BoolVar(&useTUI, "tui", false, "Use terminal UI (false for text mode)")
	pollCmd.Flags().Uint64Var(&pollCount, "count", 0, "Stop after this many poll cycles (0 = run until interrupted)")
	pollCmd.Flags().IntVar(&statsInterval, "stats-interval", 60, "Statistics update interval in seconds, text mode (0 = only on exit)")
	addPollFlags(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if useTUI {
		return runPollTUI(ctx, cfg)
	}
	return runPollText(ctx, cfg)
}

// openPoller opens the transport and indicator and hands both to a new
// poller. On any failure everything already opened is released.
func openPoller(cfg *config.Config, maxCycles uint64, reporter poller.Reporter) (*poller.Poller, string, string, error) {
	transport, connInfo, err := OpenTransport(cfg)
	if err != nil {
		return nil, "", "", err
	}

	indicator, indicatorInfo, err := openIndicator(cfg)
	if err != nil {
		transport.Close()
		return nil, "", "", err
	}

	p, err := poller.New(pollerConfig(cfg, maxCycles), transport,
		poller.WithIndicator(indicator),
		poller.WithReporter(reporter),
		poller.WithLogger(logrus.StandardLogger()),
	)
	if err != nil {
		if indicator != nil {
			indicator.Close()
		}
		transport.Close()
		return nil, "", "", err
	}

	return p, connInfo, indicatorInfo, nil
}

// runPollText runs the poll loop with plain console output
func runPollText(ctx context.Context, cfg *config.Config) error {
	reporter := newTextReporter(os.Stdout)

	p, connInfo, indicatorInfo, err := openPoller(cfg, pollCount, reporter)
	if err != nil {
		return err
	}
	defer p.Close()

	if statsInterval > 0 {
		reporter.withStats(p.Stats(), time.Duration(statsInterval)*time.Second)
	}

	fmt.Printf("Soilstat - NPK Sensor Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Status LED: %s\n", indicatorInfo)
	fmt.Printf("Poll delay: %v, response timeout: %v\n", cfg.Delay(), cfg.ResponseTimeout())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := p.Run(ctx); err != nil {
		return err
	}

	if ctx.Err() != nil {
		fmt.Printf("\nProgram terminated by user.\n")
	}
	fmt.Println()
	fmt.Print(p.Stats().String())

	if err := p.Close(); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Printf("Resources cleaned up.\n")
	return nil
}
