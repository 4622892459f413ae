package usb

import (
	"context"
	"sync"

	"github.com/ardnew/maghand/pkg"
)

type setupMsg struct {
	pkt  SetupPacket
	data []byte
}

type controlReply struct {
	data []byte
	err  error
}

// Loopback is an in-memory HAL with a scripted host on the other side.
// The device side implements HAL; the host side is driven through the
// Host methods.
type Loopback struct {
	setups  chan setupMsg
	replies chan controlReply
	events  chan Event
	in      chan []byte
	out     chan []byte

	mutex     sync.Mutex
	pending   []byte
	address   uint8
	endpoints []Endpoint
	started   bool
	wakeups   int
	onWakeup  func()
	initErr   error
}

// NewLoopback creates a loopback controller. IN traffic is buffered up to
// depth packets before Write blocks.
func NewLoopback(depth int) *Loopback {
	return &Loopback{
		setups:  make(chan setupMsg),
		replies: make(chan controlReply, 1),
		events:  make(chan Event, 8),
		in:      make(chan []byte, depth),
		out:     make(chan []byte, depth),
	}
}

// FailInit makes Init return err.
func (l *Loopback) FailInit(err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.initErr = err
}

// OnRemoteWakeup sets a hook run each time the device signals remote
// wakeup, before RemoteWakeup returns.
func (l *Loopback) OnRemoteWakeup(fn func()) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.onWakeup = fn
}

// Device side.

// Init implements HAL.
func (l *Loopback) Init(context.Context) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.initErr
}

// Start implements HAL.
func (l *Loopback) Start() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.started = true
	return nil
}

// Stop implements HAL.
func (l *Loopback) Stop() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.started = false
	return nil
}

// SetAddress implements HAL.
func (l *Loopback) SetAddress(addr uint8) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.address = addr
	return nil
}

// ConfigureEndpoints implements HAL.
func (l *Loopback) ConfigureEndpoints(eps []Endpoint) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.endpoints = append(l.endpoints[:0], eps...)
	return nil
}

// ReadSetup implements HAL.
func (l *Loopback) ReadSetup(ctx context.Context, out *SetupPacket) error {
	select {
	case m := <-l.setups:
		*out = m.pkt
		l.mutex.Lock()
		l.pending = m.data
		l.mutex.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadEP0 implements HAL.
func (l *Loopback) ReadEP0(_ context.Context, buf []byte) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	n := copy(buf, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (l *Loopback) reply(ctx context.Context, r controlReply) error {
	select {
	case l.replies <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WriteEP0 implements HAL.
func (l *Loopback) WriteEP0(ctx context.Context, data []byte) error {
	return l.reply(ctx, controlReply{data: append([]byte(nil), data...)})
}

// AckEP0 implements HAL.
func (l *Loopback) AckEP0() error {
	return l.reply(context.Background(), controlReply{})
}

// StallEP0 implements HAL.
func (l *Loopback) StallEP0() error {
	return l.reply(context.Background(), controlReply{err: pkg.ErrStall})
}

// Read implements HAL.
func (l *Loopback) Read(ctx context.Context, _ uint8, buf []byte) (int, error) {
	select {
	case p := <-l.out:
		return copy(buf, p), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Write implements HAL.
func (l *Loopback) Write(ctx context.Context, _ uint8, data []byte) (int, error) {
	select {
	case l.in <- append([]byte(nil), data...):
		return len(data), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// WaitEvent implements HAL.
func (l *Loopback) WaitEvent(ctx context.Context) (Event, error) {
	select {
	case ev := <-l.events:
		return ev, nil
	case <-ctx.Done():
		return EventNone, ctx.Err()
	}
}

// RemoteWakeup implements HAL.
func (l *Loopback) RemoteWakeup(context.Context) error {
	l.mutex.Lock()
	l.wakeups++
	fn := l.onWakeup
	l.mutex.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Host side.

// Signal delivers a bus event to the device.
func (l *Loopback) Signal(ev Event) {
	l.events <- ev
}

// Control runs one control transfer and returns the IN data stage.
// A stalled request returns pkg.ErrStall.
func (l *Loopback) Control(ctx context.Context, setup SetupPacket, data []byte) ([]byte, error) {
	select {
	case l.setups <- setupMsg{pkt: setup, data: data}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-l.replies:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Enumerate powers the bus, resets, addresses and configures dev, then
// arms remote wakeup when the configuration advertises it. dev is only
// observed, to wait for the reset to land.
func (l *Loopback) Enumerate(ctx context.Context, dev *Device, addr uint8) error {
	l.Signal(EventPowerDetected)
	l.Signal(EventReset)
	if err := dev.WaitState(ctx, func(s State) bool { return s == StateDefault }); err != nil {
		return err
	}

	steps := []SetupPacket{
		{RequestType: DirDeviceToHost, Request: RequestGetDescriptor, Value: DescriptorTypeDevice << 8, Length: DeviceDescriptorSize},
		{RequestType: DirHostToDevice, Request: RequestSetAddress, Value: uint16(addr)},
		{RequestType: DirDeviceToHost, Request: RequestGetDescriptor, Value: DescriptorTypeConfiguration << 8, Length: 255},
		{RequestType: DirHostToDevice, Request: RequestSetConfiguration, Value: 1},
	}
	var cfg []byte
	for i, st := range steps {
		resp, err := l.Control(ctx, st, nil)
		if err != nil {
			return err
		}
		if i == 2 {
			cfg = resp
		}
	}
	if len(cfg) > 7 && cfg[7]&ConfigAttrRemoteWakeup != 0 {
		_, err := l.Control(ctx, SetupPacket{
			RequestType: DirHostToDevice,
			Request:     RequestSetFeature,
			Value:       FeatureDeviceRemoteWakeup,
		}, nil)
		return err
	}
	return nil
}

// Receive waits for the next packet the device wrote to an IN endpoint.
func (l *Loopback) Receive(ctx context.Context) ([]byte, error) {
	select {
	case p := <-l.in:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send queues a packet for the device's OUT endpoint.
func (l *Loopback) Send(ctx context.Context, data []byte) error {
	select {
	case l.out <- append([]byte(nil), data...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wakeups returns how many times the device signalled remote wakeup.
func (l *Loopback) Wakeups() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.wakeups
}

// Address returns the address programmed by the device.
func (l *Loopback) Address() uint8 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.address
}

// Endpoints returns the endpoints the device enabled.
func (l *Loopback) Endpoints() []Endpoint {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]Endpoint(nil), l.endpoints...)
}

var _ HAL = (*Loopback)(nil)
