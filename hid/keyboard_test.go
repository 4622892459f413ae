package hid

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/maghand/bus"
	"github.com/ardnew/maghand/keys"
)

type recordingTransport struct {
	mutex   sync.Mutex
	reports [][]byte
	err     error
	onWrite func()
}

func (r *recordingTransport) Write(_ context.Context, _ uint8, data []byte) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.onWrite != nil {
		r.onWrite()
	}
	if r.err != nil {
		return 0, r.err
	}
	r.reports = append(r.reports, append([]byte(nil), data...))
	return len(data), nil
}

func (r *recordingTransport) sent() [][]byte {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([][]byte(nil), r.reports...)
}

type flag struct{ atomic.Bool }

func (f *flag) IsSuspended() bool { return f.Load() }

type waker struct {
	requests atomic.Int32
	fn       func()
}

func (w *waker) RequestRemoteWakeup() {
	w.requests.Add(1)
	if w.fn != nil {
		w.fn()
	}
}

func newTestKeyboard(t *testing.T, cfg KeyboardConfig) (*Keyboard, *recordingTransport) {
	t.Helper()
	km, err := keys.DefaultKeymap()
	require.NoError(t, err)
	tr := &recordingTransport{}
	cfg.Keymap = km
	cfg.Transport = tr
	return NewKeyboard(cfg), tr
}

func report(mods uint8, codes ...keys.Usage) []byte {
	r := KeyboardReport{Modifiers: mods}
	copy(r.Keys[:], codes)
	buf := make([]byte, KeyboardReportSize)
	r.MarshalTo(buf)
	return buf
}

func TestKeyboardPressRelease(t *testing.T) {
	kb, tr := newTestKeyboard(t, KeyboardConfig{})
	ctx := context.Background()

	kb.HandleChange(ctx, keys.Change{Name: 0, On: true})
	kb.HandleChange(ctx, keys.Change{Name: 0, On: false})

	assert.Equal(t, [][]byte{
		report(0, keys.UsageQ),
		report(0),
	}, tr.sent())
	assert.Equal(t, Stats{Sent: 2}, kb.Stats())
	assert.Zero(t, kb.Down())
}

func TestKeyboardModifierKey(t *testing.T) {
	kb, tr := newTestKeyboard(t, KeyboardConfig{})
	ctx := context.Background()

	kb.HandleChange(ctx, keys.Change{Name: 23, On: true})
	kb.HandleChange(ctx, keys.Change{Name: 12, On: true})

	sent := tr.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, report(0x02, keys.UsageLeftShift), sent[0])
	assert.Equal(t, report(0x02, keys.UsageLeftShift, keys.UsageA), sent[1])

	kb.HandleChange(ctx, keys.Change{Name: 23, On: false})
	assert.Equal(t, report(0, keys.UsageA), tr.sent()[2])
}

func TestKeyboardUnmapped(t *testing.T) {
	kb, tr := newTestKeyboard(t, KeyboardConfig{})

	kb.HandleChange(context.Background(), keys.Change{Name: 43, On: true})

	assert.Empty(t, tr.sent())
	assert.Equal(t, uint64(1), kb.Stats().Unmapped)
}

func TestKeyboardKeyUpNotDown(t *testing.T) {
	kb, tr := newTestKeyboard(t, KeyboardConfig{})

	kb.HandleChange(context.Background(), keys.Change{Name: 1, On: false})

	assert.Equal(t, [][]byte{report(0)}, tr.sent())
}

func TestKeyboardRollover(t *testing.T) {
	kb, tr := newTestKeyboard(t, KeyboardConfig{})
	ctx := context.Background()

	for _, n := range []keys.Name{0, 1, 2, 3, 10, 12, 13} {
		kb.HandleChange(ctx, keys.Change{Name: n, On: true})
	}

	sent := tr.sent()
	require.Len(t, sent, 7)
	assert.Equal(t, report(0, keys.UsageQ, keys.UsageW, keys.UsageE, keys.UsageR, keys.UsageT, keys.UsageA), sent[5])
	assert.Equal(t, []byte{0, 0, 1, 1, 1, 1, 1, 1}, sent[6])
	assert.Equal(t, uint64(1), kb.Stats().Rollover)

	kb.HandleChange(ctx, keys.Change{Name: 0, On: false})
	assert.Equal(t, report(0, keys.UsageW, keys.UsageE, keys.UsageR, keys.UsageT, keys.UsageA, keys.UsageS), tr.sent()[7])
}

// A modifier counts as one of the six keys like any other usage.
func TestKeyboardRolloverWithModifier(t *testing.T) {
	kb, tr := newTestKeyboard(t, KeyboardConfig{})
	ctx := context.Background()

	for _, n := range []keys.Name{0, 1, 2, 3, 10, 12} {
		kb.HandleChange(ctx, keys.Change{Name: n, On: true})
	}
	kb.HandleChange(ctx, keys.Change{Name: 23, On: true})

	sent := tr.sent()
	require.Len(t, sent, 7)
	assert.Equal(t, []byte{0x02, 0, 1, 1, 1, 1, 1, 1}, sent[6])
	assert.Equal(t, uint64(1), kb.Stats().Rollover)

	kb.HandleChange(ctx, keys.Change{Name: 12, On: false})
	assert.Equal(t,
		report(0x02, keys.UsageQ, keys.UsageW, keys.UsageE, keys.UsageR, keys.UsageT, keys.UsageLeftShift),
		tr.sent()[7])
}

func TestKeyboardSendFailure(t *testing.T) {
	kb, tr := newTestKeyboard(t, KeyboardConfig{})
	ctx := context.Background()

	tr.err = errors.New("bus error")
	kb.HandleChange(ctx, keys.Change{Name: 0, On: true})
	tr.err = nil
	kb.HandleChange(ctx, keys.Change{Name: 1, On: true})

	assert.Equal(t, [][]byte{report(0, keys.UsageQ, keys.UsageW)}, tr.sent())
	assert.Equal(t, Stats{Sent: 1, Failed: 1}, kb.Stats())
}

func TestKeyboardSendTimeout(t *testing.T) {
	km, err := keys.DefaultKeymap()
	require.NoError(t, err)
	blocked := make(chan struct{})
	kb := NewKeyboard(KeyboardConfig{
		Keymap:      km,
		Transport:   blockingTransport{done: blocked},
		SendTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	kb.HandleChange(context.Background(), keys.Change{Name: 0, On: true})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, uint64(1), kb.Stats().Failed)
	close(blocked)
}

type blockingTransport struct{ done chan struct{} }

func (b blockingTransport) Write(ctx context.Context, _ uint8, _ []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-b.done:
		return 0, errors.New("closed")
	}
}

// A change while suspended requests wakeup before anything is sent, and
// produces exactly one report once the host resumes.
func TestKeyboardWakesSuspendedHost(t *testing.T) {
	var suspended flag
	suspended.Store(true)

	w := &waker{}
	kb, tr := newTestKeyboard(t, KeyboardConfig{
		Waker:         w,
		Suspended:     &suspended,
		WakeupPoll:    time.Millisecond,
		WakeupTimeout: 5 * time.Second,
	})

	var sentAtWakeup atomic.Int32
	w.fn = func() {
		sentAtWakeup.Store(int32(len(tr.sent())))
		go func() {
			time.Sleep(20 * time.Millisecond)
			suspended.Store(false)
		}()
	}
	tr.onWrite = func() {
		assert.False(t, suspended.Load(), "report sent while suspended")
	}

	kb.HandleChange(context.Background(), keys.Change{Name: 0, On: true})

	assert.Equal(t, int32(1), w.requests.Load())
	assert.Zero(t, sentAtWakeup.Load())
	assert.Equal(t, [][]byte{report(0, keys.UsageQ)}, tr.sent())
}

func TestKeyboardWakeupTimeout(t *testing.T) {
	var suspended flag
	suspended.Store(true)
	w := &waker{}

	kb, tr := newTestKeyboard(t, KeyboardConfig{
		Waker:         w,
		Suspended:     &suspended,
		WakeupPoll:    time.Millisecond,
		WakeupTimeout: 20 * time.Millisecond,
	})

	kb.HandleChange(context.Background(), keys.Change{Name: 0, On: true})

	assert.Equal(t, int32(1), w.requests.Load())
	assert.Len(t, tr.sent(), 1, "send still attempted after timeout")
	assert.Equal(t, 1, kb.Down())
}

func TestKeyboardWakeupCancelled(t *testing.T) {
	var suspended flag
	suspended.Store(true)

	kb, tr := newTestKeyboard(t, KeyboardConfig{
		Waker:      &waker{},
		Suspended:  &suspended,
		WakeupPoll: time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	kb.HandleChange(ctx, keys.Change{Name: 0, On: true})

	assert.Empty(t, tr.sent())
	assert.Zero(t, kb.Down())
}

func TestKeyboardRun(t *testing.T) {
	b := bus.New[keys.Change](1, 1, 1)
	pub, err := b.Publisher()
	require.NoError(t, err)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	require.NoError(t, pub.TryPublish(keys.Change{Name: 0, On: true}))
	require.Error(t, pub.TryPublish(keys.Change{Name: 0, On: false}))
	require.Error(t, pub.TryPublish(keys.Change{Name: 1, On: true}))

	kb, tr := newTestKeyboard(t, KeyboardConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- kb.Run(ctx, sub) }()

	require.Eventually(t, func() bool {
		s := kb.Stats()
		return s.Sent == 1 && s.Lagged == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, [][]byte{report(0, keys.UsageQ)}, tr.sent())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestKeyboardReports(t *testing.T) {
	kb, _ := newTestKeyboard(t, KeyboardConfig{})
	kb.HandleChange(context.Background(), keys.Change{Name: 2, On: true})

	buf := make([]byte, MaxReportSize)
	n := kb.GetReport(ReportTypeInput, 0, buf)
	assert.Equal(t, report(0, keys.UsageE), buf[:n])

	require.NoError(t, kb.SetReport(ReportTypeOutput, 0, []byte{LEDCapsLock}))
	assert.Equal(t, uint8(LEDCapsLock), kb.LEDs())
	n = kb.GetReport(ReportTypeOutput, 0, buf)
	assert.Equal(t, []byte{LEDCapsLock}, buf[:n])

	assert.Zero(t, kb.GetReport(ReportTypeFeature, 0, buf))
}
