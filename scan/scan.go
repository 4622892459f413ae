package scan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ardnew/maghand/keys"
	"github.com/ardnew/maghand/pkg"
)

// Channels is the number of ADC channels sampled in each burst.
const Channels = 6

// Frame is one synchronous sample of every channel.
type Frame [Channels]int16

// Sampler captures a hardware-timed burst.
//
// Sample fills buf with up to len(buf) frames and returns how many were
// captured. It blocks until the burst completes.
type Sampler interface {
	Sample(ctx context.Context, buf []Frame) (int, error)
}

// Mux drives the analog multiplexer address lines.
type Mux interface {
	Select(ctx context.Context, setting keys.MuxSetting) error
}

// Options configures the scheduler.
type Options struct {
	// SamplesPerBurst is the number of frames requested per mux phase.
	SamplesPerBurst int
	// Settle is the delay between selecting a mux phase and sampling it.
	Settle time.Duration
}

// DefaultOptions returns the board's scan timing.
func DefaultOptions() Options {
	return Options{
		SamplesPerBurst: 8,
		Settle:          time.Millisecond,
	}
}

// Stats holds scan counters.
type Stats struct {
	Cycles      uint64 // complete passes over all mux phases
	Bursts      uint64 // bursts delivered
	ShortBursts uint64 // bursts whose length differed from the request
	Unmapped    uint64 // channel/phase combinations discarded
	Errors      uint64 // failed mux selections or bursts
}

// Scheduler cycles the mux phases and routes every burst into the key array.
type Scheduler struct {
	arr     *KeyArray
	sampler Sampler
	mux     Mux
	opts    Options

	bufs [2][]Frame
	cur  int

	cycles      atomic.Uint64
	bursts      atomic.Uint64
	shortBursts atomic.Uint64
	unmapped    atomic.Uint64
	errs        atomic.Uint64
}

// NewScheduler creates a scheduler. Zero options take their defaults.
func NewScheduler(arr *KeyArray, s Sampler, m Mux, opts Options) *Scheduler {
	if opts.SamplesPerBurst <= 0 {
		opts.SamplesPerBurst = DefaultOptions().SamplesPerBurst
	}
	sc := &Scheduler{
		arr:     arr,
		sampler: s,
		mux:     m,
		opts:    opts,
	}
	for i := range sc.bufs {
		sc.bufs[i] = make([]Frame, opts.SamplesPerBurst)
	}
	return sc
}

// Stats returns a snapshot of the scan counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Cycles:      s.cycles.Load(),
		Bursts:      s.bursts.Load(),
		ShortBursts: s.shortBursts.Load(),
		Unmapped:    s.unmapped.Load(),
		Errors:      s.errs.Load(),
	}
}

// Run scans until ctx is cancelled. Hardware errors are logged and the
// scan continues with the next phase.
func (s *Scheduler) Run(ctx context.Context) error {
	pkg.LogInfo(pkg.ComponentScan, "scan started",
		"samples", s.opts.SamplesPerBurst,
		"settle", s.opts.Settle)
	for {
		if err := s.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				pkg.LogInfo(pkg.ComponentScan, "scan stopped", "cycles", s.cycles.Load())
				return ctx.Err()
			}
			pkg.LogError(pkg.ComponentScan, "scan cycle", "error", err)
		}
	}
}

// Cycle runs all four mux phases once, strictly in order.
func (s *Scheduler) Cycle(ctx context.Context) error {
	var errs []error
	for _, setting := range keys.MuxSettings {
		if err := s.phase(ctx, setting); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.errs.Add(1)
			errs = append(errs, fmt.Errorf("phase %d: %w", setting.Index(), err))
		}
	}
	s.cycles.Add(1)
	return errors.Join(errs...)
}

func (s *Scheduler) phase(ctx context.Context, setting keys.MuxSetting) error {
	if err := s.mux.Select(ctx, setting); err != nil {
		return fmt.Errorf("mux select: %w", err)
	}
	if err := sleep(ctx, s.opts.Settle); err != nil {
		return err
	}

	buf := s.bufs[s.cur]
	s.cur ^= 1

	n, err := s.sampler.Sample(ctx, buf)
	if err != nil {
		return fmt.Errorf("sample: %w", err)
	}
	s.bursts.Add(1)
	if n != len(buf) {
		s.shortBursts.Add(1)
		pkg.LogWarn(pkg.ComponentScan, "burst length",
			"error", pkg.ErrSampleCount,
			"phase", setting.Index(),
			"got", n,
			"want", len(buf))
		n = min(max(n, 0), len(buf))
	}
	frames := buf[:n]

	ph := setting.Index()
	for ch := 0; ch < Channels; ch++ {
		name := keys.NameOf(ch, ph)
		if !s.arr.Feed(name, frames, ch) {
			s.unmapped.Add(1)
			pkg.LogTrace(pkg.ComponentScan, "unmapped channel",
				"channel", ch, "phase", ph, "key", name)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
