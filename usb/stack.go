package usb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ardnew/maghand/pkg"
)

// MaxControlDataSize bounds the OUT data stage of a control transfer.
const MaxControlDataSize = 64

// ClassDriver answers requests addressed to the device's interface:
// class requests and standard GET_DESCRIPTOR for class descriptors.
type ClassDriver interface {
	// HandleSetup returns the IN data stage, if any. data holds the OUT
	// data stage. An error stalls the request.
	HandleSetup(setup *SetupPacket, data []byte) ([]byte, error)
}

// Stack runs a Device over a HAL.
type Stack struct {
	device *Device
	hal    HAL
	class  ClassDriver
	std    standardHandler

	running atomic.Bool
	wake    chan struct{}

	setupBuf SetupPacket
	ep0Buf   [MaxControlDataSize]byte
}

// NewStack creates a stack for dev.
func NewStack(dev *Device, hal HAL) *Stack {
	return &Stack{
		device: dev,
		hal:    hal,
		std:    standardHandler{device: dev},
		wake:   make(chan struct{}, 1),
	}
}

// SetClassDriver registers the interface's class driver.
func (s *Stack) SetClassDriver(c ClassDriver) {
	s.class = c
}

// Device returns the device.
func (s *Stack) Device() *Device {
	return s.device
}

// Init initializes the controller. Call it once before Run.
func (s *Stack) Init(ctx context.Context) error {
	if err := s.hal.Init(ctx); err != nil {
		return fmt.Errorf("usb init: %w", err)
	}
	return nil
}

// Run attaches to the bus and services control transfers and bus events
// until ctx is cancelled.
func (s *Stack) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer s.running.Store(false)

	if err := s.hal.Start(); err != nil {
		return fmt.Errorf("usb start: %w", err)
	}
	defer func() {
		if err := s.hal.Stop(); err != nil {
			pkg.LogWarn(pkg.ComponentUSB, "stop", "error", err)
		}
	}()
	pkg.LogInfo(pkg.ComponentUSB, "usb stack started")

	events := make(chan Event, 4)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.controlLoop(gctx) })
	g.Go(func() error { return s.eventReader(gctx, events) })
	g.Go(func() error { return s.powerLoop(gctx, events) })
	return g.Wait()
}

// RequestRemoteWakeup asks the stack to wake a suspended host. Requests
// made before the previous one is serviced are coalesced.
func (s *Stack) RequestRemoteWakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Write sends data on IN endpoint addr.
func (s *Stack) Write(ctx context.Context, addr uint8, data []byte) (int, error) {
	switch s.device.State() {
	case StateConfigured:
	case StateSuspended:
		return 0, pkg.ErrSuspended
	default:
		return 0, pkg.ErrNotConfigured
	}
	if s.device.Halted(addr) {
		return 0, pkg.ErrStall
	}
	return s.hal.Write(ctx, addr, data)
}

// Read waits until the device is configured, then reads a packet from
// OUT endpoint addr.
func (s *Stack) Read(ctx context.Context, addr uint8, buf []byte) (int, error) {
	if err := s.device.WaitState(ctx, func(st State) bool { return st == StateConfigured }); err != nil {
		return 0, err
	}
	return s.hal.Read(ctx, addr, buf)
}

func (s *Stack) eventReader(ctx context.Context, events chan<- Event) error {
	for {
		ev, err := s.hal.WaitEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pkg.LogWarn(pkg.ComponentUSB, "bus event", "error", err)
			continue
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// powerLoop applies bus events to the device and services remote wakeup
// requests, one at a time.
func (s *Stack) powerLoop(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			s.handleEvent(ev)
		case <-s.wake:
			s.remoteWakeup(ctx)
		}
	}
}

func (s *Stack) handleEvent(ev Event) {
	pkg.LogDebug(pkg.ComponentUSB, "bus event", "event", ev.String())
	switch ev {
	case EventPowerDetected:
		s.device.PowerDetected()
	case EventPowerRemoved:
		s.device.PowerRemoved()
		s.configureEndpoints(nil)
	case EventReset:
		s.device.Reset()
		s.configureEndpoints(nil)
	case EventSuspend:
		s.device.Suspend()
	case EventResume:
		s.device.Resume()
	}
}

func (s *Stack) remoteWakeup(ctx context.Context) {
	if !s.device.IsSuspended() {
		pkg.LogDebug(pkg.ComponentUSB, "remote wakeup skipped", "error", pkg.ErrNotSuspended)
		return
	}
	if !s.device.RemoteWakeupEnabled() {
		pkg.LogWarn(pkg.ComponentUSB, "remote wakeup skipped", "error", pkg.ErrRemoteWakeupDisabled)
		return
	}
	if err := s.hal.RemoteWakeup(ctx); err != nil {
		pkg.LogWarn(pkg.ComponentUSB, "remote wakeup failed", "error", err)
		return
	}
	pkg.LogInfo(pkg.ComponentUSB, "remote wakeup")
	s.device.Resume()
}

func (s *Stack) configureEndpoints(eps []Endpoint) {
	if err := s.hal.ConfigureEndpoints(eps); err != nil {
		pkg.LogWarn(pkg.ComponentUSB, "configure endpoints", "error", err)
	}
}

func (s *Stack) controlLoop(ctx context.Context) error {
	for {
		if err := s.hal.ReadSetup(ctx, &s.setupBuf); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, pkg.ErrReset) {
				pkg.LogWarn(pkg.ComponentUSB, "read setup", "error", err)
			}
			continue
		}
		setup := s.setupBuf
		if err := s.handleSetup(ctx, &setup); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pkg.LogDebug(pkg.ComponentUSB, "setup stalled",
				"request", setup.String(),
				"error", err)
			if err := s.hal.StallEP0(); err != nil {
				pkg.LogWarn(pkg.ComponentUSB, "stall ep0", "error", err)
			}
		}
	}
}

// handleSetup runs one control transfer to completion.
func (s *Stack) handleSetup(ctx context.Context, setup *SetupPacket) error {
	pkg.LogTrace(pkg.ComponentUSB, "setup", "request", setup.String())

	var data []byte
	if !setup.IsDeviceToHost() && setup.Length > 0 {
		want := min(int(setup.Length), MaxControlDataSize)
		n, err := s.hal.ReadEP0(ctx, s.ep0Buf[:want])
		if err != nil {
			return err
		}
		data = s.ep0Buf[:n]
	}

	resp, err := s.dispatch(setup, data)
	if err != nil {
		return err
	}

	if setup.IsDeviceToHost() {
		if len(resp) > int(setup.Length) {
			resp = resp[:setup.Length]
		}
		return s.hal.WriteEP0(ctx, resp)
	}
	if err := s.hal.AckEP0(); err != nil {
		return err
	}

	if setup.IsStandard() && setup.Recipient() == RecipientDevice {
		switch setup.Request {
		case RequestSetAddress:
			return s.hal.SetAddress(s.device.Address())
		case RequestSetConfiguration:
			if s.device.Configuration() != 0 {
				s.configureEndpoints(s.device.Config.Endpoints)
			} else {
				s.configureEndpoints(nil)
			}
		}
	}
	return nil
}

func (s *Stack) dispatch(setup *SetupPacket, data []byte) ([]byte, error) {
	toInterface := setup.Recipient() == RecipientInterface
	switch {
	case setup.IsStandard() && toInterface && setup.Request == RequestGetDescriptor:
		return s.classSetup(setup, data)
	case setup.IsStandard():
		return s.std.handle(setup)
	case setup.IsClass() && toInterface:
		return s.classSetup(setup, data)
	default:
		return nil, pkg.ErrInvalidRequest
	}
}

func (s *Stack) classSetup(setup *SetupPacket, data []byte) ([]byte, error) {
	if s.class == nil || setup.InterfaceNumber() != 0 {
		return nil, pkg.ErrInvalidRequest
	}
	return s.class.HandleSetup(setup, data)
}
