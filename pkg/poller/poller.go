// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package poller runs the query/response cycle against a soil sensor.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/soilstat/pkg/npk"
	"github.com/sirupsen/logrus"
)

// Config is the immutable runtime config the poller needs
type Config struct {
	ResponseTimeout time.Duration // cap on waiting for one response
	ReadInterval    time.Duration // pause between transport reads while waiting
	Delay           time.Duration // pause between cycles
	MaxCycles       uint64        // 0 runs until cancelled
}

// Option customises a Poller at construction
type Option func(*Poller)

// WithIndicator drives the given status line. Without it the poller only reports.
func WithIndicator(ind Indicator) Option {
	return func(p *Poller) {
		if ind != nil {
			p.indicator = ind
		}
	}
}

// WithReporter sends cycle events to r
func WithReporter(r Reporter) Option {
	return func(p *Poller) {
		if r != nil {
			p.reporter = r
		}
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Poller) {
		if l != nil {
			p.log = l
		}
	}
}

// Poller owns the transport and indicator for its whole lifetime and
// releases both exactly once in Close.
type Poller struct {
	cfg       Config
	transport Transport
	indicator Indicator
	reporter  Reporter
	log       logrus.FieldLogger
	stats     *Statistics

	closeOnce sync.Once
	closeErr  error
}

// New creates a poller. The transport must already be open.
func New(cfg Config, transport Transport, opts ...Option) (*Poller, error) {
	if transport == nil {
		return nil, errors.New("poller: transport required")
	}
	if cfg.ResponseTimeout <= 0 {
		return nil, errors.New("poller: response timeout must be > 0")
	}
	if cfg.ReadInterval <= 0 {
		return nil, errors.New("poller: read interval must be > 0")
	}
	if cfg.Delay < 0 {
		return nil, errors.New("poller: delay must be >= 0")
	}

	p := &Poller{
		cfg:       cfg,
		transport: transport,
		indicator: nopIndicator{},
		reporter:  NopReporter{},
		log:       logrus.StandardLogger(),
		stats:     NewStatistics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Stats returns the live statistics tracker
func (p *Poller) Stats() *Statistics {
	return p.stats
}

// Run polls until ctx is cancelled or MaxCycles is reached, then tears down.
// Cycle failures are reported and never end the loop.
func (p *Poller) Run(ctx context.Context) error {
	defer p.Close()

	for cycle := uint64(1); ; cycle++ {
		if ctx.Err() != nil {
			p.log.Debug("poll loop interrupted")
			return nil
		}

		res := p.PollOnce(ctx)
		p.log.WithFields(logrus.Fields{
			"cycle": cycle,
			"bytes": len(res.Raw),
			"ok":    res.Err == nil,
		}).Debug("poll cycle complete")

		if p.cfg.MaxCycles > 0 && cycle >= p.cfg.MaxCycles {
			return nil
		}
		if err := sleepContext(ctx, p.cfg.Delay); err != nil {
			p.log.Debug("poll loop interrupted during delay")
			return nil
		}
	}
}

// PollOnce performs exactly one query/response cycle.
// All-or-nothing: Reading is set only when Err is nil.
func (p *Poller) PollOnce(ctx context.Context) (res Result) {
	res.At = time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Reading = nil
			res.Err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
		}
		if err := p.report(res); err != nil {
			res.Reading = nil
			res.Err = err
		}
	}()

	query := npk.BuildQuery()
	if err := p.transport.ClearInput(); err != nil {
		res.Err = fmt.Errorf("%w: clear input: %w", ErrTransport, err)
		return res
	}
	p.reporter.QuerySent(query)
	if _, err := p.transport.Write(query); err != nil {
		res.Err = fmt.Errorf("%w: write query: %w", ErrTransport, err)
		return res
	}

	buf, err := p.awaitResponse(ctx)
	res.Raw = buf
	if err != nil {
		res.Err = err
		return res
	}
	if len(buf) == 0 {
		res.Err = ErrNoResponse
		return res
	}

	p.reporter.ResponseReceived(buf)
	res.Reading, res.Err = npk.ValidateAndDecode(buf)
	return res
}

// awaitResponse accumulates bytes until a full frame arrives or the response timeout passes
func (p *Poller) awaitResponse(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 0, npk.ResponseLength)
	chunk := make([]byte, npk.ResponseLength)
	deadline := time.Now().Add(p.cfg.ResponseTimeout)

	for len(buf) < npk.ResponseLength && time.Now().Before(deadline) {
		n, err := p.transport.Read(chunk[:npk.ResponseLength-len(buf)])
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			p.reporter.ChunkReceived(chunk[:n])
		}
		if err != nil {
			return buf, fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
		if len(buf) >= npk.ResponseLength {
			break
		}
		if err := sleepContext(ctx, p.cfg.ReadInterval); err != nil {
			return buf, err
		}
	}
	return buf, nil
}

// report runs finish and turns a panic in the indicator or reporter
// into an ErrCyclePanic for this cycle
func (p *Poller) report(res Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: report: %v", ErrCyclePanic, r)
			p.log.WithError(err).Error("reporting poll cycle failed")
		}
	}()
	p.finish(res)
	return nil
}

// finish records, drives the indicator and reports one cycle's outcome
func (p *Poller) finish(res Result) {
	if isInterruption(res.Err) {
		return
	}

	p.stats.Record(res.Err)

	if res.Err == nil {
		p.setIndicator(LevelActive)
		p.reporter.ReadingDecoded(res.Reading)
		return
	}

	p.setIndicator(LevelInactive)
	p.log.WithError(res.Err).WithField("bytes", len(res.Raw)).Debug("poll cycle failed")
	p.reporter.CycleFailed(res.Err)
}

func (p *Poller) setIndicator(level int) {
	if err := p.indicator.Set(level); err != nil {
		p.log.WithError(err).WithField("level", level).Warn("status indicator update failed")
	}
}

// Close zeroes and releases the indicator and closes the transport.
// Only the first call does any work; later calls return the same error.
func (p *Poller) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = errors.Join(
			p.indicator.Set(LevelInactive),
			p.indicator.Close(),
			p.transport.Close(),
		)
		if p.closeErr != nil {
			p.log.WithError(p.closeErr).Warn("teardown incomplete")
		}
	})
	return p.closeErr
}

func isInterruption(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// sleepContext waits for d or until ctx is done, whichever comes first
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
