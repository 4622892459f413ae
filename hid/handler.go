package hid

import (
	"sync/atomic"

	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/usb"
)

// DeviceHandler receives the device's lifecycle callbacks. It owns the
// suspended flag the keyboard task reads before sending a report.
type DeviceHandler struct {
	suspended  atomic.Bool
	configured atomic.Bool
}

// NewDeviceHandler creates a handler for a device that is not suspended.
func NewDeviceHandler() *DeviceHandler {
	return &DeviceHandler{}
}

// IsSuspended reports whether the bus is suspended.
func (h *DeviceHandler) IsSuspended() bool {
	return h.suspended.Load()
}

// IsConfigured reports whether the host has selected the configuration.
func (h *DeviceHandler) IsConfigured() bool {
	return h.configured.Load()
}

// Enabled implements usb.Handler.
func (h *DeviceHandler) Enabled(enabled bool) {
	h.configured.Store(false)
	h.suspended.Store(false)
	if enabled {
		pkg.LogInfo(pkg.ComponentHID, "device enabled")
	} else {
		pkg.LogInfo(pkg.ComponentHID, "device disabled")
	}
}

// Reset implements usb.Handler.
func (h *DeviceHandler) Reset() {
	h.configured.Store(false)
	h.suspended.Store(false)
	pkg.LogInfo(pkg.ComponentHID, "bus reset", "currentLimitMA", 100)
}

// Addressed implements usb.Handler.
func (h *DeviceHandler) Addressed(addr uint8) {
	h.configured.Store(false)
	pkg.LogInfo(pkg.ComponentHID, "address set", "address", addr)
}

// Configured implements usb.Handler.
func (h *DeviceHandler) Configured(configured bool) {
	h.configured.Store(configured)
	if configured {
		pkg.LogInfo(pkg.ComponentHID, "device configured", "currentLimit", "configured")
	} else {
		pkg.LogInfo(pkg.ComponentHID, "device no longer configured", "currentLimitMA", 100)
	}
}

// Suspended implements usb.Handler.
func (h *DeviceHandler) Suspended(suspended bool) {
	h.suspended.Store(suspended)
	switch {
	case suspended:
		pkg.LogInfo(pkg.ComponentHID, "device suspended", "currentLimitUA", 500)
	case h.configured.Load():
		pkg.LogInfo(pkg.ComponentHID, "device resumed", "currentLimit", "configured")
	default:
		pkg.LogInfo(pkg.ComponentHID, "device resumed", "currentLimitMA", 100)
	}
}

var _ usb.Handler = (*DeviceHandler)(nil)
