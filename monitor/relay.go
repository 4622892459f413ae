package monitor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/ardnew/maghand/pkg"
)

// Sink receives decoded records. *Hub is a Sink.
type Sink interface {
	Publish(rec Record) error
}

// RelayStats counts lines seen by a relay.
type RelayStats struct {
	Lines     uint64
	Records   uint64
	KeyEvents uint64
	Malformed uint64
}

// Relay reads log lines from the firmware's UART and forwards each record
// to a sink.
type Relay struct {
	src  io.Reader
	sink Sink

	lines     atomic.Uint64
	records   atomic.Uint64
	keyEvents atomic.Uint64
	malformed atomic.Uint64
}

// NewRelay creates a relay from src to sink.
func NewRelay(src io.Reader, sink Sink) *Relay {
	return &Relay{src: src, sink: sink}
}

// Run forwards records until src is exhausted or ctx is cancelled. Reaching
// the end of src returns nil. Cancellation only takes effect between lines;
// close src to interrupt a blocked read.
func (r *Relay) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.src)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		r.lines.Add(1)

		rec, err := ParseLine(line)
		if err != nil {
			r.malformed.Add(1)
			pkg.LogDebug(pkg.ComponentMonitor, "skipping line", "error", err)
			continue
		}
		r.records.Add(1)
		if _, ok := rec.KeyEvent(); ok {
			r.keyEvents.Add(1)
		}
		if err := r.sink.Publish(rec); err != nil {
			pkg.LogWarn(pkg.ComponentMonitor, "publish failed", "msg", rec.Msg, "error", err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return ctx.Err()
}

// Stats returns the relay counters.
func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Lines:     r.lines.Load(),
		Records:   r.records.Load(),
		KeyEvents: r.keyEvents.Load(),
		Malformed: r.malformed.Load(),
	}
}
