// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Thermoquad/soilstat/pkg/npk"
	"github.com/Thermoquad/soilstat/pkg/poller"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

// Read failure handling. A line that keeps failing (an unplugged adapter)
// ends the listen after maxListenReadErrors consecutive errors.
var (
	listenRetryDelay    = 100 * time.Millisecond
	maxListenReadErrors = 10
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Passively decode sensor responses seen on the line",
	Long: `Listen on the connection without sending queries and decode every valid
sensor response that passes by.

Useful on a shared RS-485 bus where another controller polls the sensor.
Queries and unmatched bytes are counted and shown on exit.

Supports both serial and WebSocket connections.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	conn, connInfo, err := OpenTransport(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Soilstat - Listen\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := npk.NewStreamDecoder()
	err = listen(ctx, conn, decoder, os.Stdout)

	fmt.Printf("\nQueries seen: %d, unmatched bytes: %d\n", decoder.Queries(), decoder.Skipped())
	return err
}

// listen reads until ctx is done or the connection closes
func listen(ctx context.Context, conn poller.Transport, decoder *npk.StreamDecoder, out io.Writer) error {
	buf := make([]byte, 128)
	failures := 0

	for ctx.Err() == nil {
		n, err := conn.Read(buf)
		if err != nil {
			// A closed bridge or port will not come back
			if errors.Is(err, ErrConnectionClosed) || isPortClosed(err) {
				logrus.Info("connection closed")
				return nil
			}
			failures++
			if failures >= maxListenReadErrors {
				return fmt.Errorf("giving up after %d consecutive read errors: %w", failures, err)
			}
			logrus.WithError(err).WithField("consecutive", failures).Warn("read error")
			select {
			case <-ctx.Done():
			case <-time.After(listenRetryDelay):
			}
			continue
		}
		failures = 0

		for i := 0; i < n; i++ {
			frame, reading := decoder.DecodeByte(buf[i])
			if reading == nil {
				continue
			}
			fmt.Fprintf(out, "[%s] Received %d bytes: %s\n",
				reading.Timestamp().Format("15:04:05.000"), len(frame), npk.FormatHex(frame))
			fmt.Fprint(out, npk.FormatReading(reading))
			fmt.Fprintln(out)
		}
	}
	return nil
}

func isPortClosed(err error) bool {
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}
