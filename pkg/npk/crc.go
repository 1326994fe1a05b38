// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package npk

// CalculateCRC computes the Modbus RTU CRC-16 over the first length bytes of data.
// A length past the end of data is clamped; a negative length covers nothing.
func CalculateCRC(data []byte, length int) uint16 {
	if length > len(data) {
		length = len(data)
	}
	crc := uint16(crcInitial)
	for i := 0; i < length; i++ {
		crc ^= uint16(data[i])
		for bit := 0; bit < 8; bit++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crcPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// AppendCRC appends the CRC of frame to it, low byte first.
func AppendCRC(frame []byte) []byte {
	crc := CalculateCRC(frame, len(frame))
	return append(frame, byte(crc), byte(crc>>8))
}
