package usb

import (
	"encoding/binary"
	"unicode/utf16"
)

// Descriptor types (USB 2.0 Table 9-5).
const (
	DescriptorTypeDevice        = 0x01
	DescriptorTypeConfiguration = 0x02
	DescriptorTypeString        = 0x03
	DescriptorTypeInterface     = 0x04
	DescriptorTypeEndpoint      = 0x05
)

// Configuration attribute bits.
const (
	ConfigAttrBusPowered   = 0x80
	ConfigAttrSelfPowered  = 0x40
	ConfigAttrRemoteWakeup = 0x20
)

// Endpoint transfer types.
const (
	EndpointTypeControl   = 0x00
	EndpointTypeInterrupt = 0x03
)

// LangIDUSEnglish is the language ID reported in string descriptor zero.
const LangIDUSEnglish = 0x0409

// Descriptor sizes.
const (
	DeviceDescriptorSize        = 18
	ConfigurationDescriptorSize = 9
	InterfaceDescriptorSize     = 9
	EndpointDescriptorSize      = 7
)

// String descriptor indices.
const (
	StringManufacturer = 1
	StringProduct      = 2
	StringSerial       = 3

	maxStrings = 4
)

// DeviceDescriptor is the standard device descriptor.
type DeviceDescriptor struct {
	USBVersion     uint16
	DeviceClass    uint8
	DeviceSubClass uint8
	DeviceProtocol uint8
	MaxPacketSize0 uint8
	VendorID       uint16
	ProductID      uint16
	DeviceVersion  uint16
}

// MarshalTo encodes the descriptor. The string indices are fixed to
// StringManufacturer, StringProduct and StringSerial and one configuration
// is declared.
func (d *DeviceDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < DeviceDescriptorSize {
		return 0
	}
	buf[0] = DeviceDescriptorSize
	buf[1] = DescriptorTypeDevice
	binary.LittleEndian.PutUint16(buf[2:4], d.USBVersion)
	buf[4] = d.DeviceClass
	buf[5] = d.DeviceSubClass
	buf[6] = d.DeviceProtocol
	buf[7] = d.MaxPacketSize0
	binary.LittleEndian.PutUint16(buf[8:10], d.VendorID)
	binary.LittleEndian.PutUint16(buf[10:12], d.ProductID)
	binary.LittleEndian.PutUint16(buf[12:14], d.DeviceVersion)
	buf[14] = StringManufacturer
	buf[15] = StringProduct
	buf[16] = StringSerial
	buf[17] = 1
	return DeviceDescriptorSize
}

// Endpoint describes a data endpoint.
type Endpoint struct {
	Address       uint8 // including direction bit
	Attributes    uint8
	MaxPacketSize uint16
	Interval      uint8 // frames (ms at full speed)
}

// IsIn reports whether the endpoint is device-to-host.
func (e Endpoint) IsIn() bool {
	return e.Address&0x80 != 0
}

// MarshalTo encodes the endpoint descriptor.
func (e *Endpoint) MarshalTo(buf []byte) int {
	if len(buf) < EndpointDescriptorSize {
		return 0
	}
	buf[0] = EndpointDescriptorSize
	buf[1] = DescriptorTypeEndpoint
	buf[2] = e.Address
	buf[3] = e.Attributes
	binary.LittleEndian.PutUint16(buf[4:6], e.MaxPacketSize)
	buf[6] = e.Interval
	return EndpointDescriptorSize
}

// MaxEndpoints is the number of data endpoints a configuration may declare.
const MaxEndpoints = 4

// Configuration is the device's single configuration with one interface.
type Configuration struct {
	Value      uint8
	Attributes uint8
	MaxPowerMA uint16

	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8

	// ClassDescriptor is emitted after the interface descriptor, e.g. the
	// HID descriptor.
	ClassDescriptor []byte

	Endpoints []Endpoint
}

// RemoteWakeup reports whether the configuration advertises remote wakeup.
func (c *Configuration) RemoteWakeup() bool {
	return c.Attributes&ConfigAttrRemoteWakeup != 0
}

// TotalLength returns the size of the full configuration descriptor set.
func (c *Configuration) TotalLength() int {
	return ConfigurationDescriptorSize + InterfaceDescriptorSize +
		len(c.ClassDescriptor) + len(c.Endpoints)*EndpointDescriptorSize
}

// MarshalTo encodes the configuration, interface, class and endpoint
// descriptors. It returns 0 if buf is too small.
func (c *Configuration) MarshalTo(buf []byte) int {
	total := c.TotalLength()
	if len(buf) < total {
		return 0
	}
	buf[0] = ConfigurationDescriptorSize
	buf[1] = DescriptorTypeConfiguration
	binary.LittleEndian.PutUint16(buf[2:4], uint16(total))
	buf[4] = 1 // interfaces
	buf[5] = c.Value
	buf[6] = 0
	buf[7] = c.Attributes | ConfigAttrBusPowered
	buf[8] = uint8(min(c.MaxPowerMA/2, 0xFF))
	n := ConfigurationDescriptorSize

	iface := buf[n:]
	iface[0] = InterfaceDescriptorSize
	iface[1] = DescriptorTypeInterface
	iface[2] = 0 // interface number
	iface[3] = 0 // alternate setting
	iface[4] = uint8(len(c.Endpoints))
	iface[5] = c.InterfaceClass
	iface[6] = c.InterfaceSubClass
	iface[7] = c.InterfaceProtocol
	iface[8] = 0
	n += InterfaceDescriptorSize

	n += copy(buf[n:], c.ClassDescriptor)
	for i := range c.Endpoints {
		n += c.Endpoints[i].MarshalTo(buf[n:])
	}
	return n
}

// StringDescriptorTo encodes s as a UTF-16LE string descriptor.
// The result is truncated to the 255-byte descriptor limit.
func StringDescriptorTo(buf []byte, s string) int {
	units := utf16.Encode([]rune(s))
	n := 2 + 2*len(units)
	n = min(n, 255, len(buf))
	n &^= 1
	if n < 2 {
		return 0
	}
	buf[0] = uint8(n)
	buf[1] = DescriptorTypeString
	for i := 0; 2+2*i < n; i++ {
		binary.LittleEndian.PutUint16(buf[2+2*i:], units[i])
	}
	return n
}

// LanguageDescriptorTo encodes string descriptor zero.
func LanguageDescriptorTo(buf []byte, langIDs ...uint16) int {
	n := 2 + 2*len(langIDs)
	if len(buf) < n {
		return 0
	}
	buf[0] = uint8(n)
	buf[1] = DescriptorTypeString
	for i, id := range langIDs {
		binary.LittleEndian.PutUint16(buf[2+2*i:], id)
	}
	return n
}
