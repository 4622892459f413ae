// Package firmware assembles the keyboard controller from a board profile
// and the three hardware capabilities it needs: burst sampling, mux
// selection and a USB device controller.
package firmware

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/maghand/bus"
	"github.com/ardnew/maghand/config"
	"github.com/ardnew/maghand/hid"
	"github.com/ardnew/maghand/keys"
	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/scan"
	"github.com/ardnew/maghand/usb"
)

// Firmware is the assembled controller.
type Firmware struct {
	profile *config.Profile

	identity *keys.Identity
	keymap   *keys.Keymap

	changes   *bus.Bus[keys.Change]
	sub       *bus.Subscriber[keys.Change]
	array     *scan.KeyArray
	scheduler *scan.Scheduler

	device   *usb.Device
	stack    *usb.Stack
	class    *hid.Class
	handler  *hid.DeviceHandler
	keyboard *hid.Keyboard
	reader   *hid.Reader
}

// New builds the controller and initializes the USB controller. Any error
// is fatal: the device must not run with an incomplete key map or without
// a sampling capability.
func New(profile *config.Profile, sampler scan.Sampler, mux scan.Mux, hal usb.HAL) (*Firmware, error) {
	if profile == nil {
		profile = config.Default()
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if sampler == nil || mux == nil {
		return nil, pkg.ErrNoSampler
	}
	if hal == nil {
		return nil, fmt.Errorf("usb controller: %w", pkg.ErrNoDevice)
	}

	f := &Firmware{profile: profile}

	var err error
	if f.identity, err = keys.DefaultIdentity(); err != nil {
		return nil, fmt.Errorf("key identity: %w", err)
	}
	if f.keymap, err = keys.DefaultKeymap(); err != nil {
		return nil, fmt.Errorf("keymap: %w", err)
	}

	f.changes = bus.New[keys.Change](profile.Bus.Capacity, profile.Bus.Subscribers, f.identity.Len())
	if f.sub, err = f.changes.Subscribe(); err != nil {
		return nil, fmt.Errorf("keyboard subscriber: %w", err)
	}
	f.array, err = scan.NewKeyArray(f.identity, profile.FilterOptions(), func(keys.Name) (keys.Publisher, error) {
		return f.changes.Publisher()
	})
	if err != nil {
		return nil, fmt.Errorf("key array: %w", err)
	}
	f.scheduler = scan.NewScheduler(f.array, sampler, mux, profile.ScanOptions())

	u := profile.USB
	f.class = hid.New(hid.KeyboardReportDescriptor, nil)
	f.device = usb.NewDevice(usb.DeviceDescriptor{
		USBVersion:     0x0200,
		MaxPacketSize0: u.MaxPacketSize0,
		VendorID:       u.VendorID,
		ProductID:      u.ProductID,
		DeviceVersion:  0x0100,
	}, f.class.Configuration(u.PollIntervalMS, u.MaxPowerMA, u.RemoteWakeup), usb.Identity{
		Manufacturer: u.Manufacturer,
		Product:      u.Product,
		Serial:       u.Serial,
	})
	f.handler = hid.NewDeviceHandler()
	f.device.SetHandler(f.handler)
	f.stack = usb.NewStack(f.device, hal)
	f.stack.SetClassDriver(f.class)

	f.keyboard = hid.NewKeyboard(hid.KeyboardConfig{
		Keymap:        f.keymap,
		Layer:         keys.LayerDefault,
		Transport:     f.stack,
		Endpoint:      hid.EndpointIn,
		Waker:         f.stack,
		Suspended:     f.handler,
		WakeupPoll:    profile.HID.WakeupPoll,
		WakeupTimeout: profile.HID.WakeupTimeout,
		SendTimeout:   profile.HID.SendTimeout,
	})
	f.class.SetHandler(f.keyboard)
	f.reader = hid.NewReader(f.stack, hid.EndpointOut, f.keyboard)

	if err := f.stack.Init(context.Background()); err != nil {
		return nil, err
	}

	pkg.LogInfo(pkg.ComponentBoard, "firmware assembled",
		"keys", f.identity.Len(),
		"vendorID", fmt.Sprintf("%04x", u.VendorID),
		"productID", fmt.Sprintf("%04x", u.ProductID))
	return f, nil
}

// Run runs the scan loop, the USB stack, the keyboard task and the output
// report reader until ctx is cancelled or one of them fails.
func (f *Firmware) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.scheduler.Run(gctx) })
	g.Go(func() error { return f.stack.Run(gctx) })
	g.Go(func() error { return f.keyboard.Run(gctx, f.sub) })
	g.Go(func() error { return f.reader.Run(gctx) })
	return g.Wait()
}

// Subscribe adds a listener for key changes alongside the keyboard task.
func (f *Firmware) Subscribe() (*bus.Subscriber[keys.Change], error) {
	return f.changes.Subscribe()
}

// Device returns the USB device.
func (f *Firmware) Device() *usb.Device { return f.device }

// Keyboard returns the keyboard task.
func (f *Firmware) Keyboard() *hid.Keyboard { return f.keyboard }

// Scheduler returns the scan scheduler.
func (f *Firmware) Scheduler() *scan.Scheduler { return f.scheduler }

// Handler returns the device lifecycle handler.
func (f *Firmware) Handler() *hid.DeviceHandler { return f.handler }

// BusStats returns the key-change bus counters.
func (f *Firmware) BusStats() bus.Stats { return f.changes.Stats() }
