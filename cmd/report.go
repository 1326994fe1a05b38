// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/soilstat/pkg/npk"
	"github.com/Thermoquad/soilstat/pkg/poller"
)

// textReporter prints every cycle event to the console.
// When stats is set it also prints a statistics block every statsEvery.
type textReporter struct {
	out io.Writer

	stats      *poller.Statistics
	statsEvery time.Duration
	lastStats  time.Time
	now        func() time.Time
}

func newTextReporter(out io.Writer) *textReporter {
	return &textReporter{out: out, now: time.Now}
}

// withStats enables periodic statistics output
func (r *textReporter) withStats(stats *poller.Statistics, every time.Duration) {
	r.stats = stats
	r.statsEvery = every
	r.lastStats = r.now()
}

func (r *textReporter) QuerySent(frame []byte) {
	fmt.Fprintf(r.out, "Sending query: %s\n", npk.FormatHex(frame))
}

func (r *textReporter) ChunkReceived(chunk []byte) {
	fmt.Fprintf(r.out, "Received chunk: %s\n", npk.FormatHex(chunk))
}

func (r *textReporter) ResponseReceived(frame []byte) {
	fmt.Fprintf(r.out, "Received %d bytes: %s\n", len(frame), npk.FormatHex(frame))
}

func (r *textReporter) ReadingDecoded(reading *npk.Reading) {
	fmt.Fprint(r.out, npk.FormatReading(reading))
	fmt.Fprintln(r.out)
	r.maybePrintStats()
}

func (r *textReporter) CycleFailed(err error) {
	fmt.Fprintln(r.out, describeFailure(err))
	fmt.Fprintln(r.out)
	r.maybePrintStats()
}

func (r *textReporter) maybePrintStats() {
	if r.stats == nil || r.statsEvery <= 0 {
		return
	}
	if now := r.now(); now.Sub(r.lastStats) >= r.statsEvery {
		fmt.Fprint(r.out, r.stats.String())
		fmt.Fprintln(r.out)
		r.lastStats = now
	}
}

// describeFailure renders a cycle failure as a single console line
func describeFailure(err error) string {
	switch {
	case errors.Is(err, poller.ErrNoResponse):
		return "No response received."
	default:
		return npk.FormatDecodeError(err)
	}
}
