// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package npk

// queryFrame is the one request the sensor understands: read 7 holding
// registers starting at 0x0000 from device 0x01.
var queryFrame = AppendCRC([]byte{
	DeviceAddress,
	FuncReadHoldingRegisters,
	byte(StartRegister >> 8), byte(StartRegister),
	byte(RegisterCount >> 8), byte(RegisterCount),
})

// BuildQuery returns a copy of the fixed read-holding-registers query frame
func BuildQuery() []byte {
	out := make([]byte, len(queryFrame))
	copy(out, queryFrame)
	return out
}

// QueryCRC returns the CRC carried in the query frame's trailing two bytes
func QueryCRC() uint16 {
	return uint16(queryFrame[QueryLength-2]) | uint16(queryFrame[QueryLength-1])<<8
}
