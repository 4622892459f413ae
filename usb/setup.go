package usb

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/maghand/pkg"
)

// Standard request codes (USB 2.0 Table 9-4).
const (
	RequestGetStatus        = 0x00
	RequestClearFeature     = 0x01
	RequestSetFeature       = 0x03
	RequestSetAddress       = 0x05
	RequestGetDescriptor    = 0x06
	RequestGetConfiguration = 0x08
	RequestSetConfiguration = 0x09
	RequestGetInterface     = 0x0A
	RequestSetInterface     = 0x0B
)

// Feature selectors (USB 2.0 Table 9-6).
const (
	FeatureEndpointHalt       = 0x00
	FeatureDeviceRemoteWakeup = 0x01
)

// bmRequestType fields.
const (
	DirHostToDevice = 0x00
	DirDeviceToHost = 0x80

	TypeStandard = 0x00
	TypeClass    = 0x20
	TypeVendor   = 0x40

	RecipientDevice    = 0x00
	RecipientInterface = 0x01
	RecipientEndpoint  = 0x02
)

// SetupPacket is the 8-byte SETUP stage of a control transfer.
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

// SetupPacketSize is the size of a SETUP packet in bytes.
const SetupPacketSize = 8

// ParseSetupPacket decodes data into out.
func ParseSetupPacket(data []byte, out *SetupPacket) error {
	if len(data) < SetupPacketSize {
		return pkg.ErrSetupPacketTooShort
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = binary.LittleEndian.Uint16(data[2:4])
	out.Index = binary.LittleEndian.Uint16(data[4:6])
	out.Length = binary.LittleEndian.Uint16(data[6:8])
	return nil
}

// MarshalTo encodes the packet into buf and returns 8, or 0 if buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	binary.LittleEndian.PutUint16(buf[2:4], s.Value)
	binary.LittleEndian.PutUint16(buf[4:6], s.Index)
	binary.LittleEndian.PutUint16(buf[6:8], s.Length)
	return SetupPacketSize
}

// IsDeviceToHost reports whether the data stage is IN.
func (s *SetupPacket) IsDeviceToHost() bool {
	return s.RequestType&0x80 == DirDeviceToHost
}

// Type returns the request type bits.
func (s *SetupPacket) Type() uint8 {
	return s.RequestType & 0x60
}

// Recipient returns the recipient bits.
func (s *SetupPacket) Recipient() uint8 {
	return s.RequestType & 0x1F
}

// IsStandard reports whether this is a standard request.
func (s *SetupPacket) IsStandard() bool { return s.Type() == TypeStandard }

// IsClass reports whether this is a class request.
func (s *SetupPacket) IsClass() bool { return s.Type() == TypeClass }

// DescriptorType returns the high byte of wValue.
func (s *SetupPacket) DescriptorType() uint8 {
	return uint8(s.Value >> 8)
}

// DescriptorIndex returns the low byte of wValue.
func (s *SetupPacket) DescriptorIndex() uint8 {
	return uint8(s.Value)
}

// InterfaceNumber returns the low byte of wIndex.
func (s *SetupPacket) InterfaceNumber() uint8 {
	return uint8(s.Index)
}

// EndpointAddress returns the low byte of wIndex.
func (s *SetupPacket) EndpointAddress() uint8 {
	return uint8(s.Index)
}

func (s *SetupPacket) String() string {
	dir := "OUT"
	if s.IsDeviceToHost() {
		dir = "IN"
	}
	return fmt.Sprintf("SETUP[%s type=0x%02X recip=%d] req=0x%02X value=0x%04X index=0x%04X len=%d",
		dir, s.Type(), s.Recipient(), s.Request, s.Value, s.Index, s.Length)
}
