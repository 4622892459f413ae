package usb

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardnew/maghand/pkg"
)

// State is the USB device state (USB 2.0 section 9.1).
type State uint8

// Device states.
const (
	StateAttached State = iota
	StatePowered
	StateDefault
	StateAddress
	StateConfigured
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateAttached:
		return "Attached"
	case StatePowered:
		return "Powered"
	case StateDefault:
		return "Default"
	case StateAddress:
		return "Address"
	case StateConfigured:
		return "Configured"
	case StateSuspended:
		return "Suspended"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Handler receives device lifecycle notifications. Callbacks are invoked
// from the stack's goroutines, never while device locks are held.
type Handler interface {
	// Enabled is called when bus power appears or disappears.
	Enabled(enabled bool)
	// Reset is called after a bus reset.
	Reset()
	// Addressed is called after SET_ADDRESS.
	Addressed(addr uint8)
	// Configured is called when the configuration is set or cleared.
	Configured(configured bool)
	// Suspended is called when the bus suspends or resumes.
	Suspended(suspended bool)
}

// Identity holds the strings a device reports to the host.
type Identity struct {
	Manufacturer string
	Product      string
	Serial       string
}

// Device is the USB device state machine for a single-configuration,
// single-interface device.
type Device struct {
	Descriptor DeviceDescriptor
	Config     Configuration

	strings    [maxStrings][]byte
	stringBufs [maxStrings][255]byte

	mutex         sync.RWMutex
	state         State
	previousState State
	address       uint8
	remoteWakeup  bool
	halted        [32]bool
	changed       chan struct{}
	handler       Handler
}

// NewDevice creates a device in the Attached state.
func NewDevice(desc DeviceDescriptor, cfg Configuration, id Identity) *Device {
	d := &Device{
		Descriptor: desc,
		Config:     cfg,
		changed:    make(chan struct{}),
	}
	n := LanguageDescriptorTo(d.stringBufs[0][:], LangIDUSEnglish)
	d.strings[0] = d.stringBufs[0][:n]
	for i, s := range [...]string{StringManufacturer: id.Manufacturer, StringProduct: id.Product, StringSerial: id.Serial} {
		if i == 0 || s == "" {
			continue
		}
		n := StringDescriptorTo(d.stringBufs[i][:], s)
		d.strings[i] = d.stringBufs[i][:n]
	}
	return d
}

// SetHandler registers the lifecycle handler.
func (d *Device) SetHandler(h Handler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.handler = h
}

// String returns the encoded string descriptor at index, or nil.
func (d *Device) String(index uint8) []byte {
	if int(index) >= maxStrings {
		return nil
	}
	return d.strings[index]
}

// State returns the current state.
func (d *Device) State() State {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.state
}

// Address returns the assigned address.
func (d *Device) Address() uint8 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.address
}

// IsConfigured reports whether the device is configured and not suspended.
func (d *Device) IsConfigured() bool {
	return d.State() == StateConfigured
}

// IsSuspended reports whether the bus is suspended.
func (d *Device) IsSuspended() bool {
	return d.State() == StateSuspended
}

// RemoteWakeupEnabled reports whether the host armed remote wakeup.
func (d *Device) RemoteWakeupEnabled() bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.remoteWakeup
}

// WaitState blocks until ok returns true for the current state.
func (d *Device) WaitState(ctx context.Context, ok func(State) bool) error {
	for {
		d.mutex.RLock()
		state, changed := d.state, d.changed
		d.mutex.RUnlock()
		if ok(state) {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// setStateLocked must be called with the mutex held.
func (d *Device) setStateLocked(s State) (State, bool) {
	old := d.state
	if old == s {
		return old, false
	}
	d.state = s
	close(d.changed)
	d.changed = make(chan struct{})
	return old, true
}

func (d *Device) logTransition(old, s State) {
	pkg.LogDebug(pkg.ComponentUSB, "device state changed",
		"from", old.String(),
		"to", s.String())
}

// PowerDetected handles VBUS appearing.
func (d *Device) PowerDetected() {
	d.mutex.Lock()
	old, changed := d.setStateLocked(StatePowered)
	h := d.handler
	d.mutex.Unlock()
	if changed {
		d.logTransition(old, StatePowered)
	}
	if h != nil {
		h.Enabled(true)
	}
}

// PowerRemoved handles VBUS disappearing.
func (d *Device) PowerRemoved() {
	d.mutex.Lock()
	wasSuspended := d.state == StateSuspended
	wasConfigured := d.state == StateConfigured || (wasSuspended && d.previousState == StateConfigured)
	d.address = 0
	d.remoteWakeup = false
	old, changed := d.setStateLocked(StateAttached)
	h := d.handler
	d.mutex.Unlock()
	if changed {
		d.logTransition(old, StateAttached)
	}
	if h != nil {
		if wasSuspended {
			h.Suspended(false)
		}
		if wasConfigured {
			h.Configured(false)
		}
		h.Enabled(false)
	}
}

// Reset handles a bus reset. A reset also ends suspend.
func (d *Device) Reset() {
	d.mutex.Lock()
	wasSuspended := d.state == StateSuspended
	d.address = 0
	d.remoteWakeup = false
	d.halted = [32]bool{}
	old, changed := d.setStateLocked(StateDefault)
	h := d.handler
	d.mutex.Unlock()
	if changed {
		d.logTransition(old, StateDefault)
	}
	if h != nil {
		if wasSuspended {
			h.Suspended(false)
		}
		h.Reset()
	}
}

// SetAddress handles SET_ADDRESS.
func (d *Device) SetAddress(addr uint8) error {
	d.mutex.Lock()
	if d.state != StateDefault && d.state != StateAddress {
		d.mutex.Unlock()
		return pkg.ErrInvalidState
	}
	d.address = addr
	target := StateAddress
	if addr == 0 {
		target = StateDefault
	}
	old, changed := d.setStateLocked(target)
	h := d.handler
	d.mutex.Unlock()
	if changed {
		d.logTransition(old, target)
	}
	if h != nil {
		h.Addressed(addr)
	}
	return nil
}

// SetConfiguration handles SET_CONFIGURATION. Value 0 unconfigures.
func (d *Device) SetConfiguration(value uint8) error {
	d.mutex.Lock()
	if d.state != StateAddress && d.state != StateConfigured {
		d.mutex.Unlock()
		return pkg.ErrInvalidState
	}
	if value != 0 && value != d.Config.Value {
		d.mutex.Unlock()
		return fmt.Errorf("%w: configuration %d", pkg.ErrInvalidRequest, value)
	}
	target := StateConfigured
	if value == 0 {
		target = StateAddress
	}
	old, changed := d.setStateLocked(target)
	h := d.handler
	d.mutex.Unlock()
	if changed {
		d.logTransition(old, target)
	}
	if h != nil {
		h.Configured(value != 0)
	}
	return nil
}

// Configuration returns the active configuration value, or 0.
func (d *Device) Configuration() uint8 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if d.state == StateConfigured || (d.state == StateSuspended && d.previousState == StateConfigured) {
		return d.Config.Value
	}
	return 0
}

// Suspend handles the bus entering suspend.
func (d *Device) Suspend() {
	d.mutex.Lock()
	if d.state == StateSuspended || d.state == StateAttached {
		d.mutex.Unlock()
		return
	}
	d.previousState = d.state
	old, _ := d.setStateLocked(StateSuspended)
	h := d.handler
	d.mutex.Unlock()
	d.logTransition(old, StateSuspended)
	if h != nil {
		h.Suspended(true)
	}
}

// Resume handles the bus leaving suspend.
func (d *Device) Resume() {
	d.mutex.Lock()
	if d.state != StateSuspended {
		d.mutex.Unlock()
		return
	}
	target := d.previousState
	if target < StateDefault {
		target = StateDefault
	}
	old, _ := d.setStateLocked(target)
	h := d.handler
	d.mutex.Unlock()
	d.logTransition(old, target)
	if h != nil {
		h.Suspended(false)
	}
}

// SetRemoteWakeup records the host's DEVICE_REMOTE_WAKEUP feature.
func (d *Device) SetRemoteWakeup(enabled bool) error {
	if enabled && !d.Config.RemoteWakeup() {
		return pkg.ErrNotSupported
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.remoteWakeup = enabled
	return nil
}

func (d *Device) endpointKnown(addr uint8) bool {
	if addr&0x7F == 0 {
		return true
	}
	for _, ep := range d.Config.Endpoints {
		if ep.Address == addr {
			return true
		}
	}
	return false
}

func endpointIndex(addr uint8) int {
	if addr&0x80 != 0 {
		return int(addr&0x0F) + 16
	}
	return int(addr & 0x0F)
}

// SetHalt sets or clears ENDPOINT_HALT on addr.
func (d *Device) SetHalt(addr uint8, halted bool) error {
	if !d.endpointKnown(addr) {
		return pkg.ErrInvalidEndpoint
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.halted[endpointIndex(addr)] = halted
	return nil
}

// Halted reports whether addr is halted.
func (d *Device) Halted(addr uint8) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.halted[endpointIndex(addr)]
}
