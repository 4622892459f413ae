package hid

import (
	"sync"

	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/usb"
)

// MaxReportSize is the maximum HID report size.
const MaxReportSize = 64

// RequestHandler answers the report requests the class forwards.
type RequestHandler interface {
	// GetReport writes the current report of the given type and ID into
	// buf and returns its length. Zero rejects the request.
	GetReport(reportType, reportID uint8, buf []byte) int

	// SetReport accepts a report from the host, through SET_REPORT or the
	// interrupt OUT endpoint.
	SetReport(reportType, reportID uint8, data []byte) error
}

// Class implements the HID class driver for the keyboard interface.
type Class struct {
	reportDescriptor []byte
	hidDescriptor    HIDDescriptor

	mutex    sync.RWMutex
	handler  RequestHandler
	protocol uint8
	idleRate uint8 // 4 ms units, 0 = indefinite

	responseBuf [MaxReportSize]byte
}

// New creates a HID class driver with the given report descriptor. The
// report descriptor is stored by reference. handler may be nil, in which
// case GET_REPORT is rejected and SET_REPORT is only logged.
func New(reportDescriptor []byte, handler RequestHandler) *Class {
	return &Class{
		reportDescriptor: reportDescriptor,
		hidDescriptor: HIDDescriptor{
			HIDVersion:     0x0111,
			CountryCode:    CountryNone,
			NumDescriptors: 1,
			ReportDescLen:  uint16(len(reportDescriptor)),
		},
		handler:  handler,
		protocol: ProtocolReport,
	}
}

// SetHandler replaces the report request handler.
func (c *Class) SetHandler(h RequestHandler) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.handler = h
}

func (c *Class) requestHandler() RequestHandler {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.handler
}

// Descriptor returns the encoded HID class descriptor, to be placed after
// the interface descriptor.
func (c *Class) Descriptor() []byte {
	buf := make([]byte, HIDDescriptorSize)
	c.hidDescriptor.MarshalTo(buf)
	return buf
}

// ReportDescriptor returns the report descriptor.
func (c *Class) ReportDescriptor() []byte {
	return c.reportDescriptor
}

// Protocol returns the current protocol (boot or report).
func (c *Class) Protocol() uint8 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.protocol
}

// IdleRate returns the current idle rate in 4 ms units.
func (c *Class) IdleRate() uint8 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.idleRate
}

// HandleSetup implements usb.ClassDriver.
func (c *Class) HandleSetup(setup *usb.SetupPacket, data []byte) ([]byte, error) {
	if setup.IsStandard() {
		if setup.Request != usb.RequestGetDescriptor {
			return nil, pkg.ErrInvalidRequest
		}
		return c.getDescriptor(setup)
	}

	switch setup.Request {
	case RequestGetReport:
		return c.getReport(setup)
	case RequestSetReport:
		return nil, c.setReport(setup, data)
	case RequestGetIdle:
		return []byte{c.IdleRate()}, nil
	case RequestSetIdle:
		c.setIdle(setup)
		return nil, nil
	case RequestGetProtocol:
		return []byte{c.Protocol()}, nil
	case RequestSetProtocol:
		c.setProtocol(setup)
		return nil, nil
	default:
		return nil, pkg.ErrInvalidRequest
	}
}

func (c *Class) getDescriptor(setup *usb.SetupPacket) ([]byte, error) {
	switch setup.DescriptorType() {
	case DescriptorTypeHID:
		n := c.hidDescriptor.MarshalTo(c.responseBuf[:])
		return c.responseBuf[:n], nil
	case DescriptorTypeReport:
		return c.reportDescriptor, nil
	default:
		return nil, pkg.ErrInvalidRequest
	}
}

func (c *Class) getReport(setup *usb.SetupPacket) ([]byte, error) {
	reportType := uint8(setup.Value >> 8)
	reportID := uint8(setup.Value)

	pkg.LogDebug(pkg.ComponentHID, "GET_REPORT",
		"type", reportType,
		"id", reportID)

	h := c.requestHandler()
	if h == nil {
		return nil, pkg.ErrInvalidRequest
	}
	n := h.GetReport(reportType, reportID, c.responseBuf[:])
	if n == 0 {
		return nil, pkg.ErrInvalidRequest
	}
	return c.responseBuf[:n], nil
}

func (c *Class) setReport(setup *usb.SetupPacket, data []byte) error {
	reportType := uint8(setup.Value >> 8)
	reportID := uint8(setup.Value)

	pkg.LogDebug(pkg.ComponentHID, "SET_REPORT",
		"type", reportType,
		"id", reportID,
		"len", len(data))

	h := c.requestHandler()
	if h == nil {
		return nil
	}
	return h.SetReport(reportType, reportID, data)
}

func (c *Class) setIdle(setup *usb.SetupPacket) {
	rate := uint8(setup.Value >> 8)
	reportID := uint8(setup.Value)

	c.mutex.Lock()
	c.idleRate = rate
	c.mutex.Unlock()

	pkg.LogInfo(pkg.ComponentHID, "set idle",
		"ms", int(rate)*4,
		"reportID", reportID)
}

func (c *Class) setProtocol(setup *usb.SetupPacket) {
	protocol := uint8(setup.Value)

	c.mutex.Lock()
	c.protocol = protocol
	c.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentHID, "SET_PROTOCOL", "protocol", protocol)
}

// Configuration returns the single configuration exposing this class as a
// boot keyboard interface with interrupt IN and OUT endpoints polled every
// pollMs milliseconds.
func (c *Class) Configuration(pollMs uint8, maxPowerMA uint16, remoteWakeup bool) usb.Configuration {
	var attrs uint8
	if remoteWakeup {
		attrs |= usb.ConfigAttrRemoteWakeup
	}
	return usb.Configuration{
		Value:             1,
		Attributes:        attrs,
		MaxPowerMA:        maxPowerMA,
		InterfaceClass:    ClassHID,
		InterfaceSubClass: SubclassBoot,
		InterfaceProtocol: ProtocolKeyboard,
		ClassDescriptor:   c.Descriptor(),
		Endpoints: []usb.Endpoint{
			{Address: EndpointIn, Attributes: usb.EndpointTypeInterrupt, MaxPacketSize: MaxPacketSize, Interval: pollMs},
			{Address: EndpointOut, Attributes: usb.EndpointTypeInterrupt, MaxPacketSize: MaxPacketSize, Interval: pollMs},
		},
	}
}

var _ usb.ClassDriver = (*Class)(nil)
