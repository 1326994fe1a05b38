// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/soilstat/pkg/npk"
)

// Counters is a point-in-time copy of the poll statistics
type Counters struct {
	StartTime   time.Time
	LastReading time.Time

	TotalCycles      uint64
	ValidReadings    uint64
	NoResponse       uint64
	IncompleteFrames uint64
	HeaderErrors     uint64
	CRCErrors        uint64
	TransportErrors  uint64
	OtherErrors      uint64
}

// Statistics tracks poll outcomes. Safe for concurrent use.
type Statistics struct {
	mu sync.Mutex
	c  Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{c: Counters{StartTime: time.Now()}}
}

// Record classifies one cycle outcome; a nil err counts as a valid reading
func (s *Statistics) Record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c.TotalCycles++
	switch {
	case err == nil:
		s.c.ValidReadings++
		s.c.LastReading = time.Now()
	case errors.Is(err, ErrNoResponse):
		s.c.NoResponse++
	case errors.Is(err, npk.ErrIncompleteFrame):
		s.c.IncompleteFrames++
	case errors.Is(err, npk.ErrUnexpectedHeader):
		s.c.HeaderErrors++
	case errors.Is(err, npk.ErrCRCMismatch):
		s.c.CRCErrors++
	case errors.Is(err, ErrTransport):
		s.c.TransportErrors++
	default:
		s.c.OtherErrors++
	}
}

// Snapshot returns a copy of the current counters
func (s *Statistics) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = Counters{StartTime: time.Now()}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

// Failures returns the number of cycles that did not yield a reading
func (c Counters) Failures() uint64 {
	return c.TotalCycles - c.ValidReadings
}

// SuccessRate returns the percentage of cycles that yielded a reading
func (c Counters) SuccessRate() float64 {
	if c.TotalCycles == 0 {
		return 0
	}
	return float64(c.ValidReadings) * 100.0 / float64(c.TotalCycles)
}

// String returns a formatted statistics summary
func (c Counters) String() string {
	elapsed := time.Since(c.StartTime)

	percent := func(n uint64) float64 {
		if c.TotalCycles == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(c.TotalCycles)
	}

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Poll Cycles:     %8d\n", c.TotalCycles)
	result += fmt.Sprintf("Valid Readings:  %8d (%.1f%%)\n", c.ValidReadings, c.SuccessRate())

	if c.NoResponse > 0 {
		result += fmt.Sprintf("No Response:     %8d (%.1f%%)\n", c.NoResponse, percent(c.NoResponse))
	}
	if c.IncompleteFrames > 0 {
		result += fmt.Sprintf("Incomplete:      %8d (%.1f%%)\n", c.IncompleteFrames, percent(c.IncompleteFrames))
	}
	if c.HeaderErrors > 0 {
		result += fmt.Sprintf("Bad Header:      %8d (%.1f%%)\n", c.HeaderErrors, percent(c.HeaderErrors))
	}
	if c.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", c.CRCErrors, percent(c.CRCErrors))
	}
	if c.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errors:%8d (%.1f%%)\n", c.TransportErrors, percent(c.TransportErrors))
	}
	if c.OtherErrors > 0 {
		result += fmt.Sprintf("Other Errors:    %8d (%.1f%%)\n", c.OtherErrors, percent(c.OtherErrors))
	}
	if !c.LastReading.IsZero() {
		result += fmt.Sprintf("Last Reading:    %s\n", c.LastReading.Format("15:04:05"))
	}
	result += "================================\n"

	return result
}
