// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Thermoquad/soilstat/pkg/npk"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Fakes
// ============================================================

type fakeTransport struct {
	chunks   [][]byte // served in order, one per Read
	readErr  error    // returned once chunks are exhausted
	writeErr error
	panicMsg string

	clears  int
	writes  [][]byte
	reads   int
	closed  int
	pending []byte
}

func (f *fakeTransport) ClearInput() error {
	f.clears++
	f.pending = nil
	return nil
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.reads++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if len(f.pending) == 0 && len(f.chunks) > 0 {
		f.pending, f.chunks = f.chunks[0], f.chunks[1:]
	}
	if len(f.pending) == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, nil
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

type fakeIndicator struct {
	levels []int
	closed int
}

func (f *fakeIndicator) Set(level int) error {
	f.levels = append(f.levels, level)
	return nil
}

func (f *fakeIndicator) Close() error {
	f.closed++
	return nil
}

type recordingReporter struct {
	sent     int
	chunks   int
	frames   [][]byte
	readings []*npk.Reading
	failures []error
	onCycle  func()
}

func (r *recordingReporter) QuerySent([]byte)     { r.sent++ }
func (r *recordingReporter) ChunkReceived([]byte) { r.chunks++ }
func (r *recordingReporter) ResponseReceived(frame []byte) {
	r.frames = append(r.frames, frame)
}
func (r *recordingReporter) ReadingDecoded(rd *npk.Reading) {
	r.readings = append(r.readings, rd)
	if r.onCycle != nil {
		r.onCycle()
	}
}
func (r *recordingReporter) CycleFailed(err error) {
	r.failures = append(r.failures, err)
	if r.onCycle != nil {
		r.onCycle()
	}
}

// panickingReporter fails inside every outcome callback
type panickingReporter struct {
	NopReporter
	calls int
}

func (r *panickingReporter) ReadingDecoded(*npk.Reading) { r.calls++; panic("reporter bug") }
func (r *panickingReporter) CycleFailed(error)           { r.calls++; panic("reporter bug") }

type panickingIndicator struct {
	fakeIndicator
}

func (f *panickingIndicator) Set(level int) error {
	f.levels = append(f.levels, level)
	if level == LevelActive {
		panic("gpio bug")
	}
	return nil
}

// ============================================================
// Helpers
// ============================================================

func testConfig() Config {
	return Config{
		ResponseTimeout: 50 * time.Millisecond,
		ReadInterval:    time.Millisecond,
		Delay:           0,
	}
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func validFrame() []byte {
	frame := []byte{npk.DeviceAddress, npk.FuncReadHoldingRegisters, npk.ResponseByteCount,
		0x01, 0xF4, 0x00, 0xC8, 0x00, 0x64, 0x00, 0x32, 0x00, 0x0A, 0x00, 0x05, 0x00, 0x03}
	return npk.AppendCRC(frame)
}

func newTestPoller(t *testing.T, cfg Config, tr *fakeTransport) (*Poller, *fakeIndicator, *recordingReporter) {
	t.Helper()
	ind := &fakeIndicator{}
	rep := &recordingReporter{}
	p, err := New(cfg, tr, WithIndicator(ind), WithReporter(rep), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p, ind, rep
}

// ============================================================
// Construction
// ============================================================

func TestNew_Validation(t *testing.T) {
	tr := &fakeTransport{}
	tests := []struct {
		name   string
		cfg    Config
		tr     Transport
		wantOK bool
	}{
		{"valid", testConfig(), tr, true},
		{"nil transport", testConfig(), nil, false},
		{"zero timeout", Config{ReadInterval: time.Millisecond}, tr, false},
		{"zero read interval", Config{ResponseTimeout: time.Second}, tr, false},
		{"negative delay", Config{ResponseTimeout: time.Second, ReadInterval: time.Millisecond, Delay: -1}, tr, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.tr)
			if (err == nil) != tt.wantOK {
				t.Fatalf("New() err=%v, wantOK=%v", err, tt.wantOK)
			}
		})
	}
}

func TestNew_NilIndicatorIsPrintOnly(t *testing.T) {
	tr := &fakeTransport{chunks: [][]byte{validFrame()}}
	p, err := New(testConfig(), tr, WithIndicator(nil), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	if res := p.PollOnce(context.Background()); res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}
}

// ============================================================
// PollOnce
// ============================================================

func TestPollOnce_Success(t *testing.T) {
	tr := &fakeTransport{chunks: [][]byte{validFrame()}}
	p, ind, rep := newTestPoller(t, testConfig(), tr)

	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if res.Reading == nil || res.Reading.Moisture() != 50.0 {
		t.Fatalf("unexpected reading: %+v", res.Reading)
	}
	if tr.clears != 1 {
		t.Errorf("ClearInput called %d times, want 1", tr.clears)
	}
	if len(tr.writes) != 1 || !bytes.Equal(tr.writes[0], npk.BuildQuery()) {
		t.Errorf("writes = % X, want one query", tr.writes)
	}
	if len(ind.levels) != 1 || ind.levels[0] != LevelActive {
		t.Errorf("indicator levels = %v, want [1]", ind.levels)
	}
	if rep.sent != 1 || len(rep.readings) != 1 || len(rep.failures) != 0 {
		t.Errorf("reporter sent=%d readings=%d failures=%d", rep.sent, len(rep.readings), len(rep.failures))
	}
	if got := p.Stats().Snapshot().ValidReadings; got != 1 {
		t.Errorf("ValidReadings = %d, want 1", got)
	}
}

func TestPollOnce_ChunkedResponse(t *testing.T) {
	frame := validFrame()
	tr := &fakeTransport{chunks: [][]byte{frame[:5], nil, frame[5:10], frame[10:]}}
	p, _, rep := newTestPoller(t, testConfig(), tr)

	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if !bytes.Equal(res.Raw, frame) {
		t.Errorf("Raw = % X, want % X", res.Raw, frame)
	}
	if rep.chunks != 3 {
		t.Errorf("ChunkReceived called %d times, want 3", rep.chunks)
	}
	if len(rep.frames) != 1 {
		t.Errorf("ResponseReceived called %d times, want 1", len(rep.frames))
	}
}

func TestPollOnce_StopsAtFrameLength(t *testing.T) {
	extra := append(validFrame(), 0xAA, 0xBB, 0xCC)
	tr := &fakeTransport{chunks: [][]byte{extra}}
	p, _, _ := newTestPoller(t, testConfig(), tr)

	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if len(res.Raw) != npk.ResponseLength {
		t.Errorf("len(Raw) = %d, want %d", len(res.Raw), npk.ResponseLength)
	}
}

func TestPollOnce_Failures(t *testing.T) {
	corrupt := validFrame()
	corrupt[6] ^= 0x01

	badHeader := npk.AppendCRC([]byte{0x02, 0x03, 0x0E, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})

	tests := []struct {
		name    string
		tr      *fakeTransport
		wantErr error
	}{
		{"no response", &fakeTransport{}, ErrNoResponse},
		{"short frame", &fakeTransport{chunks: [][]byte{validFrame()[:10]}}, npk.ErrIncompleteFrame},
		{"crc mismatch", &fakeTransport{chunks: [][]byte{corrupt}}, npk.ErrCRCMismatch},
		{"bad header", &fakeTransport{chunks: [][]byte{badHeader}}, npk.ErrUnexpectedHeader},
		{"read error", &fakeTransport{readErr: errors.New("port gone")}, ErrTransport},
		{"write error", &fakeTransport{writeErr: errors.New("tx failed")}, ErrTransport},
		{"panic", &fakeTransport{panicMsg: "driver bug"}, ErrCyclePanic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ind, rep := newTestPoller(t, testConfig(), tt.tr)

			res := p.PollOnce(context.Background())
			if !errors.Is(res.Err, tt.wantErr) {
				t.Fatalf("PollOnce err=%v, want %v", res.Err, tt.wantErr)
			}
			if res.Reading != nil {
				t.Error("Reading must be nil on failure")
			}
			if len(ind.levels) != 1 || ind.levels[0] != LevelInactive {
				t.Errorf("indicator levels = %v, want [0]", ind.levels)
			}
			if len(rep.failures) != 1 || len(rep.readings) != 0 {
				t.Errorf("reporter failures=%d readings=%d", len(rep.failures), len(rep.readings))
			}
			if got := p.Stats().Snapshot().Failures(); got != 1 {
				t.Errorf("Failures() = %d, want 1", got)
			}
		})
	}
}

func TestPollOnce_WriteErrorSkipsRead(t *testing.T) {
	tr := &fakeTransport{writeErr: errors.New("tx failed")}
	p, _, _ := newTestPoller(t, testConfig(), tr)
	p.PollOnce(context.Background())
	if tr.reads != 0 {
		t.Errorf("Read called %d times after failed write", tr.reads)
	}
}

func TestPollOnce_CancelDuringWait(t *testing.T) {
	cfg := testConfig()
	cfg.ResponseTimeout = 5 * time.Second
	tr := &fakeTransport{}
	p, ind, rep := newTestPoller(t, cfg, tr)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	start := time.Now()
	res := p.PollOnce(ctx)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("PollOnce err=%v, want context.Canceled", res.Err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancellation not observed during wait (took %v)", time.Since(start))
	}
	if len(ind.levels) != 0 || len(rep.failures) != 0 {
		t.Errorf("interruption must not be reported: levels=%v failures=%v", ind.levels, rep.failures)
	}
	if got := p.Stats().Snapshot().TotalCycles; got != 0 {
		t.Errorf("TotalCycles = %d, want 0", got)
	}
}

// ============================================================
// Run and teardown
// ============================================================

func TestRun_MaxCycles(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCycles = 3
	tr := &fakeTransport{chunks: [][]byte{validFrame(), nil, validFrame()}}
	p, ind, rep := newTestPoller(t, cfg, tr)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if len(tr.writes) != 3 {
		t.Errorf("writes = %d, want 3", len(tr.writes))
	}
	if len(rep.readings)+len(rep.failures) != 3 {
		t.Errorf("reported %d outcomes, want 3", len(rep.readings)+len(rep.failures))
	}
	if tr.closed != 1 || ind.closed != 1 {
		t.Errorf("closed transport=%d indicator=%d, want 1/1", tr.closed, ind.closed)
	}
	if last := ind.levels[len(ind.levels)-1]; last != LevelInactive {
		t.Errorf("indicator left at %d after teardown", last)
	}
}

func TestRun_CancelDuringDelay(t *testing.T) {
	cfg := testConfig()
	cfg.Delay = time.Hour
	tr := &fakeTransport{chunks: [][]byte{validFrame()}}
	p, ind, rep := newTestPoller(t, cfg, tr)

	ctx, cancel := context.WithCancel(context.Background())
	rep.onCycle = cancel

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if tr.closed != 1 || ind.closed != 1 {
		t.Errorf("closed transport=%d indicator=%d, want 1/1", tr.closed, ind.closed)
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	tr := &fakeTransport{}
	p, _, _ := newTestPoller(t, testConfig(), tr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if len(tr.writes) != 0 {
		t.Errorf("no query should be sent after cancellation, got %d", len(tr.writes))
	}
	if tr.closed != 1 {
		t.Errorf("transport closed %d times, want 1", tr.closed)
	}
}

func TestClose_Once(t *testing.T) {
	tr := &fakeTransport{}
	p, ind, _ := newTestPoller(t, testConfig(), tr)

	for i := 0; i < 3; i++ {
		if err := p.Close(); err != nil {
			t.Fatalf("Close err=%v", err)
		}
	}
	if tr.closed != 1 || ind.closed != 1 {
		t.Errorf("closed transport=%d indicator=%d, want 1/1", tr.closed, ind.closed)
	}
	if len(ind.levels) != 1 || ind.levels[0] != LevelInactive {
		t.Errorf("indicator levels = %v, want [0]", ind.levels)
	}
}

func TestPollOnce_ReportPanicIsContained(t *testing.T) {
	tests := []struct {
		name string
		tr   *fakeTransport
		opts []Option
	}{
		{"reporter on failure", &fakeTransport{}, []Option{WithReporter(&panickingReporter{})}},
		{"reporter on reading", &fakeTransport{chunks: [][]byte{validFrame()}}, []Option{WithReporter(&panickingReporter{})}},
		{"indicator on reading", &fakeTransport{chunks: [][]byte{validFrame()}}, []Option{WithIndicator(&panickingIndicator{})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithLogger(quietLogger())}, tt.opts...)
			p, err := New(testConfig(), tt.tr, opts...)
			if err != nil {
				t.Fatal(err)
			}

			res := p.PollOnce(context.Background())
			if !errors.Is(res.Err, ErrCyclePanic) {
				t.Fatalf("PollOnce err=%v, want ErrCyclePanic", res.Err)
			}
			if res.Reading != nil {
				t.Error("Reading must be nil when reporting panicked")
			}
		})
	}
}

func TestRun_SurvivesReporterPanic(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCycles = 2
	tr := &fakeTransport{}
	rep := &panickingReporter{}
	p, err := New(cfg, tr, WithReporter(rep), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run err=%v", err)
	}
	if rep.calls != 2 {
		t.Errorf("reporter called %d times, want 2", rep.calls)
	}
	if len(tr.writes) != 2 {
		t.Errorf("writes = %d, want 2", len(tr.writes))
	}
	if tr.closed != 1 {
		t.Errorf("transport closed %d times, want 1", tr.closed)
	}
	if got := p.Stats().Snapshot().NoResponse; got != 2 {
		t.Errorf("NoResponse = %d, want 2", got)
	}
}
