package hid

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/maghand/bus"
	"github.com/ardnew/maghand/keys"
	"github.com/ardnew/maghand/pkg"
)

// Transport carries input reports to the host.
type Transport interface {
	Write(ctx context.Context, addr uint8, data []byte) (int, error)
}

// Waker asks the transport to wake a suspended host.
type Waker interface {
	RequestRemoteWakeup()
}

// SuspendState reports whether the bus is suspended.
type SuspendState interface {
	IsSuspended() bool
}

// KeyboardConfig configures a Keyboard.
type KeyboardConfig struct {
	Keymap    *keys.Keymap
	Layer     keys.Layer
	Transport Transport
	Endpoint  uint8 // defaults to EndpointIn
	Waker     Waker
	Suspended SuspendState

	// WakeupPoll is the interval at which the suspended flag is polled
	// after a remote wakeup request.
	WakeupPoll time.Duration
	// WakeupTimeout bounds the wait for resume. Zero waits indefinitely.
	WakeupTimeout time.Duration
	// SendTimeout bounds each report transmission. Zero disables it.
	SendTimeout time.Duration
}

// DefaultWakeupPoll is used when KeyboardConfig.WakeupPoll is zero.
const DefaultWakeupPoll = 10 * time.Millisecond

// Stats counts keyboard task activity.
type Stats struct {
	Sent     uint64
	Failed   uint64
	Unmapped uint64
	Rollover uint64
	Lagged   uint64
}

// Keyboard turns key changes into boot keyboard reports.
type Keyboard struct {
	cfg KeyboardConfig

	mutex  sync.Mutex
	down   KeysDown
	report KeyboardReport

	leds atomic.Uint32

	sent     atomic.Uint64
	failed   atomic.Uint64
	unmapped atomic.Uint64
	rollover atomic.Uint64
	lagged   atomic.Uint64
}

// NewKeyboard creates a keyboard task.
func NewKeyboard(cfg KeyboardConfig) *Keyboard {
	if cfg.Endpoint == 0 {
		cfg.Endpoint = EndpointIn
	}
	if cfg.WakeupPoll <= 0 {
		cfg.WakeupPoll = DefaultWakeupPoll
	}
	return &Keyboard{cfg: cfg}
}

// Run handles key changes from sub until ctx is cancelled.
func (k *Keyboard) Run(ctx context.Context, sub *bus.Subscriber[keys.Change]) error {
	pkg.LogInfo(pkg.ComponentHID, "keyboard task started", "layer", k.cfg.Layer)
	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			return err
		}
		if msg.IsLag() {
			k.lagged.Add(msg.Lagged)
			pkg.LogWarn(pkg.ComponentHID, "key changes lost",
				"missed", msg.Lagged,
				"error", pkg.ErrLagged)
			continue
		}
		k.HandleChange(ctx, msg.Value)
	}
}

// HandleChange applies one key change and sends the resulting report.
// A suspended host is woken first; the report is not sent until it has
// resumed or the wakeup timeout has passed.
func (k *Keyboard) HandleChange(ctx context.Context, ch keys.Change) {
	if err := k.awaitResume(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		pkg.LogWarn(pkg.ComponentHID, "host did not resume", "key", ch.Name, "error", err)
	}

	usage, ok := k.cfg.Keymap.Lookup(ch.Name, k.cfg.Layer)
	if !ok {
		k.unmapped.Add(1)
		pkg.LogInfo(pkg.ComponentHID, "key change ignored",
			"key", ch.Name,
			"layer", k.cfg.Layer,
			"error", pkg.ErrUnmappedKey)
		return
	}

	var buf [KeyboardReportSize]byte
	k.mutex.Lock()
	if ch.On {
		if !k.down.Press(usage) {
			pkg.LogDebug(pkg.ComponentHID, "key already down", "key", ch.Name, "usage", usage)
		}
	} else if !k.down.Release(usage) {
		pkg.LogWarn(pkg.ComponentHID, "key up for key not down", "key", ch.Name, "usage", usage)
	}
	k.report = k.down.Report()
	n := k.report.MarshalTo(buf[:])
	rolled := k.report.RolledOver()
	k.mutex.Unlock()

	if rolled {
		k.rollover.Add(1)
	}
	k.send(ctx, buf[:n])
}

func (k *Keyboard) send(ctx context.Context, data []byte) {
	if k.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.cfg.SendTimeout)
		defer cancel()
	}
	if _, err := k.cfg.Transport.Write(ctx, k.cfg.Endpoint, data); err != nil {
		k.failed.Add(1)
		pkg.LogWarn(pkg.ComponentHID, "failed to send report", "error", err)
		return
	}
	k.sent.Add(1)
	pkg.LogDebug(pkg.ComponentHID, "report sent", "report", fmt.Sprintf("% x", data))
}

func (k *Keyboard) awaitResume(ctx context.Context) error {
	if k.cfg.Suspended == nil || !k.cfg.Suspended.IsSuspended() {
		return nil
	}
	pkg.LogInfo(pkg.ComponentHID, "triggering remote wakeup")
	if k.cfg.Waker != nil {
		k.cfg.Waker.RequestRemoteWakeup()
	}

	var deadline <-chan time.Time
	if k.cfg.WakeupTimeout > 0 {
		timer := time.NewTimer(k.cfg.WakeupTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(k.cfg.WakeupPoll)
	defer ticker.Stop()

	for k.cfg.Suspended.IsSuspended() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("remote wakeup after %v: %w", k.cfg.WakeupTimeout, pkg.ErrTimeout)
		case <-ticker.C:
		}
	}
	return nil
}

// Down returns the number of usages currently held.
func (k *Keyboard) Down() int {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	return k.down.Len()
}

// LEDs returns the LED bits last set by the host.
func (k *Keyboard) LEDs() uint8 {
	return uint8(k.leds.Load())
}

// Stats returns activity counters.
func (k *Keyboard) Stats() Stats {
	return Stats{
		Sent:     k.sent.Load(),
		Failed:   k.failed.Load(),
		Unmapped: k.unmapped.Load(),
		Rollover: k.rollover.Load(),
		Lagged:   k.lagged.Load(),
	}
}

// GetReport implements RequestHandler. It answers with the last input
// report or the LED state.
func (k *Keyboard) GetReport(reportType, _ uint8, buf []byte) int {
	switch reportType {
	case ReportTypeInput:
		k.mutex.Lock()
		defer k.mutex.Unlock()
		return k.report.MarshalTo(buf)
	case ReportTypeOutput:
		if len(buf) == 0 {
			return 0
		}
		buf[0] = k.LEDs()
		return 1
	default:
		return 0
	}
}

// SetReport implements RequestHandler. Output reports update the LED
// state; nothing is driven by it.
func (k *Keyboard) SetReport(reportType, reportID uint8, data []byte) error {
	if reportType == ReportTypeOutput && len(data) > 0 {
		k.leds.Store(uint32(data[0]))
		pkg.LogDebug(pkg.ComponentHID, "leds changed", "on", LEDNames(data[0]))
	}
	pkg.LogInfo(pkg.ComponentHID, "set report",
		"type", reportType,
		"id", reportID,
		"data", fmt.Sprintf("% x", data))
	return nil
}

var _ RequestHandler = (*Keyboard)(nil)
