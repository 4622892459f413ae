package keys

// Usage is a keyboard usage code from the HID Keyboard/Keypad usage page.
type Usage uint8

// Keyboard usage codes (USB HID Usage Tables, page 0x07).
const (
	UsageNone          Usage = 0x00
	UsageErrorRollOver Usage = 0x01
	UsageA             Usage = 0x04
	UsageB             Usage = 0x05
	UsageC             Usage = 0x06
	UsageD             Usage = 0x07
	UsageE             Usage = 0x08
	UsageF             Usage = 0x09
	UsageG             Usage = 0x0A
	UsageH             Usage = 0x0B
	UsageI             Usage = 0x0C
	UsageJ             Usage = 0x0D
	UsageK             Usage = 0x0E
	UsageL             Usage = 0x0F
	UsageM             Usage = 0x10
	UsageN             Usage = 0x11
	UsageO             Usage = 0x12
	UsageP             Usage = 0x13
	UsageQ             Usage = 0x14
	UsageR             Usage = 0x15
	UsageS             Usage = 0x16
	UsageT             Usage = 0x17
	UsageU             Usage = 0x18
	UsageV             Usage = 0x19
	UsageW             Usage = 0x1A
	UsageX             Usage = 0x1B
	UsageY             Usage = 0x1C
	UsageZ             Usage = 0x1D
	Usage1             Usage = 0x1E
	Usage2             Usage = 0x1F
	Usage3             Usage = 0x20
	Usage4             Usage = 0x21
	Usage5             Usage = 0x22
	Usage6             Usage = 0x23
	Usage7             Usage = 0x24
	Usage8             Usage = 0x25
	Usage9             Usage = 0x26
	Usage0             Usage = 0x27
	UsageEnter         Usage = 0x28
	UsageEscape        Usage = 0x29
	UsageBackspace     Usage = 0x2A
	UsageTab           Usage = 0x2B
	UsageSpace         Usage = 0x2C
	UsageMinus         Usage = 0x2D
	UsageEqual         Usage = 0x2E
	UsageCapsLock      Usage = 0x39
	UsageF1            Usage = 0x3A
	UsageF12           Usage = 0x45
	UsageRight         Usage = 0x4F
	UsageLeft          Usage = 0x50
	UsageDown          Usage = 0x51
	UsageUp            Usage = 0x52
)

// Modifier usages. These are reported as bits of the modifier byte.
const (
	UsageLeftControl  Usage = 0xE0
	UsageLeftShift    Usage = 0xE1
	UsageLeftAlt      Usage = 0xE2
	UsageLeftGUI      Usage = 0xE3
	UsageRightControl Usage = 0xE4
	UsageRightShift   Usage = 0xE5
	UsageRightAlt     Usage = 0xE6
	UsageRightGUI     Usage = 0xE7
)

// IsModifier reports whether u is one of the eight modifier usages.
func (u Usage) IsModifier() bool {
	return u >= UsageLeftControl && u <= UsageRightGUI
}

// ModifierBit returns the modifier byte bit for u, or 0 if u is not a modifier.
func (u Usage) ModifierBit() uint8 {
	if !u.IsModifier() {
		return 0
	}
	return 1 << (u - UsageLeftControl)
}
