package hid

import "github.com/ardnew/maghand/keys"

// ReportSlots is the number of keycode slots in a boot keyboard report.
const ReportSlots = 6

// KeyboardReportSize is the size of a keyboard report in bytes.
const KeyboardReportSize = 8

// KeyboardReport is an 8-byte boot keyboard input report.
type KeyboardReport struct {
	Modifiers uint8
	Reserved  uint8
	Keys      [ReportSlots]keys.Usage
}

// MarshalTo writes the keyboard report to buf.
func (r *KeyboardReport) MarshalTo(buf []byte) int {
	if len(buf) < KeyboardReportSize {
		return 0
	}
	buf[0] = r.Modifiers
	buf[1] = r.Reserved
	for i, k := range r.Keys {
		buf[2+i] = byte(k)
	}
	return KeyboardReportSize
}

// RolledOver reports whether every slot carries the rollover error code.
func (r *KeyboardReport) RolledOver() bool {
	for _, k := range r.Keys {
		if k != keys.UsageErrorRollOver {
			return false
		}
	}
	return true
}

// KeysDown is the set of usages currently held, in press order. It holds
// at most one entry per physical key.
type KeysDown struct {
	codes [keys.MaxKeys]keys.Usage
	n     int
}

// Press adds u. It returns false if u is already down or the set is full.
func (s *KeysDown) Press(u keys.Usage) bool {
	if s.Contains(u) || s.n == len(s.codes) {
		return false
	}
	s.codes[s.n] = u
	s.n++
	return true
}

// Release removes u. It returns false if u was not down.
func (s *KeysDown) Release(u keys.Usage) bool {
	for i := 0; i < s.n; i++ {
		if s.codes[i] == u {
			copy(s.codes[i:s.n], s.codes[i+1:s.n])
			s.n--
			s.codes[s.n] = keys.UsageNone
			return true
		}
	}
	return false
}

// Contains reports whether u is down.
func (s *KeysDown) Contains(u keys.Usage) bool {
	for i := 0; i < s.n; i++ {
		if s.codes[i] == u {
			return true
		}
	}
	return false
}

// Len returns the number of usages down.
func (s *KeysDown) Len() int {
	return s.n
}

// Clear releases every usage.
func (s *KeysDown) Clear() {
	s.codes = [keys.MaxKeys]keys.Usage{}
	s.n = 0
}

// Report builds the boot report for the set. Every usage down takes a
// slot in press order; modifier usages also set their bit in the modifier
// byte. When more than ReportSlots usages are down, every slot carries the
// rollover error code.
func (s *KeysDown) Report() KeyboardReport {
	var r KeyboardReport
	for i := 0; i < s.n; i++ {
		u := s.codes[i]
		if u.IsModifier() {
			r.Modifiers |= u.ModifierBit()
		}
		if i < ReportSlots {
			r.Keys[i] = u
		}
	}
	if s.n > ReportSlots {
		for i := range r.Keys {
			r.Keys[i] = keys.UsageErrorRollOver
		}
	}
	return r
}
