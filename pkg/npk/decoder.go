// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package npk

import (
	"encoding/binary"
	"fmt"
)

// ValidateAndDecode checks a complete response frame and decodes its registers.
//
// Checks run in order: length, header (address, function, byte count), CRC.
// The first failing check determines the returned *DecodeError; no partial
// Reading is ever returned.
func ValidateAndDecode(buf []byte) (*Reading, error) {
	if len(buf) != ResponseLength {
		return nil, &DecodeError{
			Kind:    ErrIncompleteFrame,
			Message: fmt.Sprintf("incomplete frame: received %d bytes, expected %d", len(buf), ResponseLength),
			Details: map[string]interface{}{"received": len(buf), "expected": ResponseLength},
		}
	}

	if err := validateHeader(buf); err != nil {
		return nil, err
	}

	calculated := CalculateCRC(buf, responseCRCOffset)
	received := binary.LittleEndian.Uint16(buf[responseCRCOffset:])
	if received != calculated {
		return nil, &DecodeError{
			Kind:    ErrCRCMismatch,
			Message: fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", calculated, received),
			Details: map[string]interface{}{"calculated": calculated, "received": received},
		}
	}

	var regs [RegisterCount]uint16
	data := buf[responseHeaderLength:responseCRCOffset]
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return newReading(regs), nil
}

func validateHeader(buf []byte) error {
	address, function, count := buf[0], buf[1], buf[2]
	if address == DeviceAddress && function == FuncReadHoldingRegisters && count == ResponseByteCount {
		return nil
	}
	return &DecodeError{
		Kind: ErrUnexpectedHeader,
		Message: fmt.Sprintf("unexpected header: address=0x%02X function=0x%02X count=%d (want 0x%02X 0x%02X %d)",
			address, function, count, DeviceAddress, FuncReadHoldingRegisters, ResponseByteCount),
		Details: map[string]interface{}{
			"address":  address,
			"function": function,
			"count":    count,
		},
	}
}
