package hid

// HID class codes.
const (
	ClassHID = 0x03 // Human Interface Device Class
)

// SubclassBoot is the Boot Interface Subclass.
const SubclassBoot = 0x01

// ProtocolKeyboard is the boot interface protocol code for keyboards.
const ProtocolKeyboard = 0x01

// HID descriptor types.
const (
	DescriptorTypeHID    = 0x21 // HID descriptor
	DescriptorTypeReport = 0x22 // Report descriptor
)

// HID request codes.
const (
	RequestGetReport   = 0x01
	RequestGetIdle     = 0x02
	RequestGetProtocol = 0x03
	RequestSetReport   = 0x09
	RequestSetIdle     = 0x0A
	RequestSetProtocol = 0x0B
)

// Report types (high byte of wValue in GET_REPORT/SET_REPORT).
const (
	ReportTypeInput   = 0x01
	ReportTypeOutput  = 0x02
	ReportTypeFeature = 0x03
)

// Protocol values for GET_PROTOCOL/SET_PROTOCOL.
const (
	ProtocolBoot   = 0x00
	ProtocolReport = 0x01
)

// CountryNone marks a keyboard without a localized layout.
const CountryNone = 0x00

// Keyboard LED bits carried by the output report.
const (
	LEDNumLock    = 1 << 0
	LEDCapsLock   = 1 << 1
	LEDScrollLock = 1 << 2
	LEDCompose    = 1 << 3
	LEDKana       = 1 << 4
)

var ledNames = [...]struct {
	bit  uint8
	name string
}{
	{LEDNumLock, "num"},
	{LEDCapsLock, "caps"},
	{LEDScrollLock, "scroll"},
	{LEDCompose, "compose"},
	{LEDKana, "kana"},
}

// LEDNames lists the LEDs set in bits, lowest bit first.
func LEDNames(bits uint8) []string {
	var names []string
	for _, l := range ledNames {
		if bits&l.bit != 0 {
			names = append(names, l.name)
		}
	}
	return names
}

// Interrupt endpoints of the keyboard interface.
const (
	EndpointIn  = 0x81
	EndpointOut = 0x02

	// MaxPacketSize is the interrupt endpoints' packet size.
	MaxPacketSize = 64
)

// HIDDescriptor is the HID class descriptor that follows the interface
// descriptor in the configuration.
type HIDDescriptor struct {
	HIDVersion     uint16 // BCD, 0x0111 for 1.11
	CountryCode    uint8
	NumDescriptors uint8
	ReportDescLen  uint16
}

// HIDDescriptorSize is the size of the HID descriptor.
const HIDDescriptorSize = 9

// MarshalTo writes the HID descriptor to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (d *HIDDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < HIDDescriptorSize {
		return 0
	}
	buf[0] = HIDDescriptorSize
	buf[1] = DescriptorTypeHID
	buf[2] = byte(d.HIDVersion)
	buf[3] = byte(d.HIDVersion >> 8)
	buf[4] = d.CountryCode
	buf[5] = d.NumDescriptors
	buf[6] = DescriptorTypeReport
	buf[7] = byte(d.ReportDescLen)
	buf[8] = byte(d.ReportDescLen >> 8)
	return HIDDescriptorSize
}

// KeyboardReportDescriptor describes the 8-byte boot keyboard input report
// [modifiers, reserved, key1..key6] and the 1-byte LED output report.
var KeyboardReportDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xA1, 0x01, // Collection (Application)
	0x05, 0x07, //   Usage Page (Keyboard/Keypad)
	0x19, 0xE0, //   Usage Minimum (Left Control)
	0x29, 0xE7, //   Usage Maximum (Right GUI)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x08, //   Report Count (8)
	0x81, 0x02, //   Input (Data, Variable, Absolute)
	0x95, 0x01, //   Report Count (1)
	0x75, 0x08, //   Report Size (8)
	0x81, 0x01, //   Input (Constant)
	0x95, 0x05, //   Report Count (5)
	0x75, 0x01, //   Report Size (1)
	0x05, 0x08, //   Usage Page (LEDs)
	0x19, 0x01, //   Usage Minimum (Num Lock)
	0x29, 0x05, //   Usage Maximum (Kana)
	0x91, 0x02, //   Output (Data, Variable, Absolute)
	0x95, 0x01, //   Report Count (1)
	0x75, 0x03, //   Report Size (3)
	0x91, 0x01, //   Output (Constant)
	0x95, 0x06, //   Report Count (6)
	0x75, 0x08, //   Report Size (8)
	0x15, 0x00, //   Logical Minimum (0)
	0x26, 0xFF, 0x00, //   Logical Maximum (255)
	0x05, 0x07, //   Usage Page (Keyboard/Keypad)
	0x19, 0x00, //   Usage Minimum (0)
	0x2A, 0xFF, 0x00, //   Usage Maximum (255)
	0x81, 0x00, //   Input (Data, Array)
	0xC0, // End Collection
}
