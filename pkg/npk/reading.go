// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package npk

import "time"

// Reading holds the values decoded from one validated sensor response
type Reading struct {
	registers [RegisterCount]uint16
	timestamp time.Time
}

// newReading is only called by ValidateAndDecode once the frame has passed every check
func newReading(registers [RegisterCount]uint16) *Reading {
	return &Reading{
		registers: registers,
		timestamp: time.Now(),
	}
}

// Moisture returns volumetric water content in percent
func (r *Reading) Moisture() float64 {
	return float64(r.registers[RegMoisture]) / tenthsDivisor
}

// Temperature returns soil temperature in °C
func (r *Reading) Temperature() float64 {
	return float64(r.registers[RegTemperature]) / tenthsDivisor
}

// Conductivity returns electrical conductivity in µS/cm
func (r *Reading) Conductivity() uint16 {
	return r.registers[RegConductivity]
}

// PH returns the pH value. ok is false when the probe is not in a medium
// (moisture reads zero); the value is then meaningless.
func (r *Reading) PH() (value float64, ok bool) {
	if !r.InMedium() {
		return 0, false
	}
	return float64(r.registers[RegPH]) / tenthsDivisor, true
}

// InMedium reports whether the probe appears to be inserted in soil
func (r *Reading) InMedium() bool {
	return r.registers[RegMoisture] > 0
}

// Nitrogen returns nitrogen content in mg/kg
func (r *Reading) Nitrogen() uint16 {
	return r.registers[RegNitrogen]
}

// Phosphorus returns phosphorus content in mg/kg
func (r *Reading) Phosphorus() uint16 {
	return r.registers[RegPhosphorus]
}

// Potassium returns potassium content in mg/kg
func (r *Reading) Potassium() uint16 {
	return r.registers[RegPotassium]
}

// Registers returns the raw register values in wire order
func (r *Reading) Registers() [RegisterCount]uint16 {
	return r.registers
}

// Timestamp returns when the reading was decoded
func (r *Reading) Timestamp() time.Time {
	return r.timestamp
}
