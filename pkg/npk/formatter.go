// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package npk

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// FormatHex renders bytes as space-separated upper-case hex pairs ("01 03 0E")
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// ParseHex accepts hex with or without separators ("0103 0E", "01:03:0e").
// Each separated token may carry its own 0x prefix ("0x01 0x03").
func ParseHex(s string) ([]byte, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', ':', '-', ',', '\t', '\n', '\r':
			return true
		}
		return false
	})

	var cleaned strings.Builder
	for _, tok := range tokens {
		tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
		cleaned.WriteString(tok)
	}

	data, err := hex.DecodeString(cleaned.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return data, nil
}

// FormatPH renders the pH line value, or the not-in-medium marker
func FormatPH(r *Reading) string {
	if ph, ok := r.PH(); ok {
		return fmt.Sprintf("%.1f pH", ph)
	}
	return "N/A (sensor not in medium)"
}

// FormatReading formats a reading as the multi-line "Parsed Data" block
func FormatReading(r *Reading) string {
	result := "Parsed Data:\n"
	result += fmt.Sprintf("Moisture: %.1f %%\n", r.Moisture())
	result += fmt.Sprintf("Temperature: %.1f °C\n", r.Temperature())
	result += fmt.Sprintf("Conductivity: %d µS/cm\n", r.Conductivity())
	result += fmt.Sprintf("pH: %s\n", FormatPH(r))
	result += fmt.Sprintf("Nitrogen: %d mg/kg\n", r.Nitrogen())
	result += fmt.Sprintf("Phosphorus: %d mg/kg\n", r.Phosphorus())
	result += fmt.Sprintf("Potassium: %d mg/kg\n", r.Potassium())
	return result
}

// FormatDecodeError returns the operator-facing reason for a rejected frame
func FormatDecodeError(err error) string {
	switch {
	case errors.Is(err, ErrIncompleteFrame):
		return "Invalid response: " + err.Error()
	case errors.Is(err, ErrUnexpectedHeader):
		return "Invalid response (wrong ID, function code, or byte count): " + err.Error()
	case errors.Is(err, ErrCRCMismatch):
		return "Invalid response: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
