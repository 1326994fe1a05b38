// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/soilstat/pkg/npk"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print the sensor query frame",
	Long: `Print the read-holding-registers query sent to the sensor on every poll.

Handy for driving the sensor by hand from a serial terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		crc := npk.QueryCRC()
		fmt.Printf("Query: %s\n", npk.FormatHex(npk.BuildQuery()))
		fmt.Printf("  Address:   0x%02X\n", npk.DeviceAddress)
		fmt.Printf("  Function:  0x%02X (read holding registers)\n", npk.FuncReadHoldingRegisters)
		fmt.Printf("  Registers: 0x%04X-0x%04X\n", npk.StartRegister, npk.StartRegister+npk.RegisterCount-1)
		fmt.Printf("  CRC:       0x%04X (sent %02X %02X)\n", crc, byte(crc), byte(crc>>8))
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
