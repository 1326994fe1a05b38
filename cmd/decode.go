// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Thermoquad/soilstat/pkg/npk"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Validate and decode a captured sensor response",
	Long: `Validate and decode a response frame captured from the sensor.

The frame is given as hex on the command line, with or without separators:

  soilstat decode 01 03 0E 01 F4 00 C8 00 64 00 32 00 0A 00 05 00 03 36 C2
  soilstat decode 01030E01F400C800640032000A0005000336C2

No connection is opened.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decodeFrame(os.Stdout, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func decodeFrame(out io.Writer, hexFrame string) error {
	frame, err := npk.ParseHex(hexFrame)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Frame (%d bytes): %s\n", len(frame), npk.FormatHex(frame))

	reading, err := npk.ValidateAndDecode(frame)
	if err != nil {
		var decodeErr *npk.DecodeError
		if errors.As(err, &decodeErr) {
			keys := make([]string, 0, len(decodeErr.Details))
			for key := range decodeErr.Details {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(out, "  %s: %v\n", key, decodeErr.Details[key])
			}
		}
		return errors.New(npk.FormatDecodeError(err))
	}

	fmt.Fprint(out, npk.FormatReading(reading))
	return nil
}
