// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package npk implements the Modbus RTU exchange used by 7-in-1 soil (NPK) sensors.
//
// The sensor answers a single read-holding-registers request for seven
// consecutive registers: moisture, temperature, conductivity, pH, nitrogen,
// phosphorus and potassium. This package builds that request, validates the
// response framing and CRC, and decodes the registers into a Reading.
package npk

// Device addressing
const (
	DeviceAddress            = 0x01
	FuncReadHoldingRegisters = 0x03
)

// Query geometry
const (
	StartRegister = 0x0000
	RegisterCount = 0x0007
)

// Frame sizes
const (
	QueryLength       = 8  // addr + func + start(2) + count(2) + crc(2)
	ResponseByteCount = 14 // RegisterCount * 2
	ResponseLength    = 19 // addr + func + count + 14 data + crc(2)

	responseHeaderLength = 3
	responseCRCOffset    = ResponseLength - 2
)

// Modbus RTU CRC-16 configuration
const (
	crcPolynomial = 0xA001
	crcInitial    = 0xFFFF
)

// Register indices within the response data block
const (
	RegMoisture = iota
	RegTemperature
	RegConductivity
	RegPH
	RegNitrogen
	RegPhosphorus
	RegPotassium
)

// Scaling for the one-decimal registers
const tenthsDivisor = 10.0
