// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"errors"
	"time"

	"github.com/Thermoquad/soilstat/pkg/npk"
)

// Per-cycle failures raised by the poller itself. Frame failures come from npk.
var (
	ErrNoResponse = errors.New("no response received")
	ErrTransport  = errors.New("transport error")
	ErrCyclePanic = errors.New("poll cycle panicked")
)

// Transport is the serial-like link to the sensor.
// Opening the link is the job of the concrete type's constructor.
type Transport interface {
	// ClearInput discards any bytes already buffered on the receive side
	ClearInput() error
	// Write sends p and returns once it has been flushed to the line
	Write(p []byte) (int, error)
	// Read returns available bytes, or 0, nil after a short internal timeout
	Read(p []byte) (int, error)
	Close() error
}

// Indicator is an output line reflecting sensor presence.
// Acquiring the line is the job of the concrete type's constructor.
type Indicator interface {
	Set(level int) error
	Close() error
}

// Reporter receives progress events from each cycle
type Reporter interface {
	QuerySent(frame []byte)
	ChunkReceived(chunk []byte)
	ResponseReceived(frame []byte)
	ReadingDecoded(r *npk.Reading)
	CycleFailed(err error)
}

// Result is the outcome of one poll cycle
type Result struct {
	At      time.Time
	Raw     []byte
	Reading *npk.Reading // nil unless Err is nil
	Err     error
}

// Indicator levels
const (
	LevelInactive = 0
	LevelActive   = 1
)

type nopIndicator struct{}

func (nopIndicator) Set(int) error { return nil }
func (nopIndicator) Close() error  { return nil }

// NopReporter ignores every event
type NopReporter struct{}

func (NopReporter) QuerySent([]byte)            {}
func (NopReporter) ChunkReceived([]byte)        {}
func (NopReporter) ResponseReceived([]byte)     {}
func (NopReporter) ReadingDecoded(*npk.Reading) {}
func (NopReporter) CycleFailed(error)           {}
