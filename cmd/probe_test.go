// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/Thermoquad/soilstat/pkg/poller"
)

func TestProbeOutcome(t *testing.T) {
	tests := []struct {
		name     string
		res      poller.Result
		wantCode int
		wantMsg  string
	}{
		{"reading", poller.Result{Raw: sampleFrame}, probeExitOK, "SUCCESS: Received valid reading\n  Frame: 01 03 0E"},
		{"no response", poller.Result{Err: poller.ErrNoResponse}, probeExitFailed, "FAILED: no response received"},
		{"interrupted", poller.Result{Err: context.Canceled}, probeExitInterrupted, "Probe interrupted by user."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := probeOutcome(tt.res)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
			if tt.wantCode == probeExitInterrupted && strings.Contains(msg, "FAILED") {
				t.Error("interrupt must not read as a sensor failure")
			}
		})
	}
}
