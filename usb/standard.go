package usb

import (
	"encoding/binary"

	"github.com/ardnew/maghand/pkg"
)

// MaxDescriptorResponseSize bounds standard request responses.
const MaxDescriptorResponseSize = 256

// Device status bits returned by GET_STATUS.
const (
	StatusSelfPowered  = 1 << 0
	StatusRemoteWakeup = 1 << 1
)

// standardHandler answers chapter 9 requests for a Device.
type standardHandler struct {
	device *Device
	buf    [MaxDescriptorResponseSize]byte
}

// handle returns the IN data stage, if any.
func (h *standardHandler) handle(setup *SetupPacket) ([]byte, error) {
	switch setup.Recipient() {
	case RecipientDevice:
		return h.forDevice(setup)
	case RecipientInterface:
		return h.forInterface(setup)
	case RecipientEndpoint:
		return h.forEndpoint(setup)
	default:
		return nil, pkg.ErrInvalidRequest
	}
}

func (h *standardHandler) forDevice(setup *SetupPacket) ([]byte, error) {
	d := h.device
	switch setup.Request {
	case RequestGetStatus:
		var status uint16
		if d.Config.Attributes&ConfigAttrSelfPowered != 0 {
			status |= StatusSelfPowered
		}
		if d.RemoteWakeupEnabled() {
			status |= StatusRemoteWakeup
		}
		binary.LittleEndian.PutUint16(h.buf[:2], status)
		return h.buf[:2], nil

	case RequestClearFeature, RequestSetFeature:
		if setup.Value != FeatureDeviceRemoteWakeup {
			return nil, pkg.ErrInvalidRequest
		}
		enable := setup.Request == RequestSetFeature
		if err := d.SetRemoteWakeup(enable); err != nil {
			return nil, err
		}
		pkg.LogDebug(pkg.ComponentUSB, "remote wakeup feature", "enabled", enable)
		return nil, nil

	case RequestSetAddress:
		return nil, d.SetAddress(uint8(setup.Value & 0x7F))

	case RequestGetDescriptor:
		return h.descriptor(setup)

	case RequestGetConfiguration:
		h.buf[0] = d.Configuration()
		return h.buf[:1], nil

	case RequestSetConfiguration:
		return nil, d.SetConfiguration(uint8(setup.Value))

	default:
		return nil, pkg.ErrInvalidRequest
	}
}

func (h *standardHandler) descriptor(setup *SetupPacket) ([]byte, error) {
	var n int
	switch setup.DescriptorType() {
	case DescriptorTypeDevice:
		n = h.device.Descriptor.MarshalTo(h.buf[:])
	case DescriptorTypeConfiguration:
		if setup.DescriptorIndex() != 0 {
			return nil, pkg.ErrInvalidRequest
		}
		n = h.device.Config.MarshalTo(h.buf[:])
	case DescriptorTypeString:
		s := h.device.String(setup.DescriptorIndex())
		if s == nil {
			return nil, pkg.ErrInvalidRequest
		}
		n = copy(h.buf[:], s)
	default:
		return nil, pkg.ErrInvalidRequest
	}
	if n == 0 {
		return nil, pkg.ErrBufferTooSmall
	}
	return h.buf[:n], nil
}

func (h *standardHandler) forInterface(setup *SetupPacket) ([]byte, error) {
	if setup.InterfaceNumber() != 0 || h.device.Configuration() == 0 {
		return nil, pkg.ErrInvalidRequest
	}
	switch setup.Request {
	case RequestGetStatus:
		h.buf[0], h.buf[1] = 0, 0
		return h.buf[:2], nil
	case RequestGetInterface:
		h.buf[0] = 0
		return h.buf[:1], nil
	case RequestSetInterface:
		if setup.Value != 0 {
			return nil, pkg.ErrInvalidRequest
		}
		return nil, nil
	default:
		return nil, pkg.ErrInvalidRequest
	}
}

func (h *standardHandler) forEndpoint(setup *SetupPacket) ([]byte, error) {
	addr := setup.EndpointAddress()
	switch setup.Request {
	case RequestGetStatus:
		if !h.device.endpointKnown(addr) {
			return nil, pkg.ErrInvalidEndpoint
		}
		var status uint16
		if h.device.Halted(addr) {
			status = 1
		}
		binary.LittleEndian.PutUint16(h.buf[:2], status)
		return h.buf[:2], nil
	case RequestClearFeature, RequestSetFeature:
		if setup.Value != FeatureEndpointHalt {
			return nil, pkg.ErrInvalidRequest
		}
		return nil, h.device.SetHalt(addr, setup.Request == RequestSetFeature)
	default:
		return nil, pkg.ErrInvalidRequest
	}
}
