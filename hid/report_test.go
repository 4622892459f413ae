package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/maghand/keys"
)

func TestKeyboardReportMarshal(t *testing.T) {
	r := KeyboardReport{
		Modifiers: 0x02,
		Keys:      [ReportSlots]keys.Usage{keys.UsageQ, keys.UsageW},
	}
	buf := make([]byte, KeyboardReportSize)
	require.Equal(t, KeyboardReportSize, r.MarshalTo(buf))
	assert.Equal(t, []byte{0x02, 0x00, 0x14, 0x1A, 0, 0, 0, 0}, buf)

	assert.Zero(t, r.MarshalTo(make([]byte, 7)))
}

func TestKeysDownPressRelease(t *testing.T) {
	var s KeysDown
	assert.True(t, s.Press(keys.UsageA))
	assert.True(t, s.Press(keys.UsageB))
	assert.False(t, s.Press(keys.UsageA), "duplicate press")
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.Release(keys.UsageA))
	assert.False(t, s.Release(keys.UsageA), "release of key not down")
	assert.False(t, s.Contains(keys.UsageA))
	assert.True(t, s.Contains(keys.UsageB))

	r := s.Report()
	assert.Equal(t, [ReportSlots]keys.Usage{keys.UsageB}, r.Keys)

	s.Clear()
	assert.Zero(t, s.Len())
}

func TestKeysDownBounded(t *testing.T) {
	var s KeysDown
	for i := 0; i < keys.MaxKeys; i++ {
		require.True(t, s.Press(keys.Usage(0x04+i)))
	}
	assert.False(t, s.Press(keys.UsageSpace+0x40))
	assert.Equal(t, keys.MaxKeys, s.Len())
}

func TestReportRollover(t *testing.T) {
	letters := []keys.Usage{
		keys.UsageA, keys.UsageB, keys.UsageC, keys.UsageD, keys.UsageE,
		keys.UsageF, keys.UsageG, keys.UsageH, keys.UsageI, keys.UsageJ,
	}
	for n := 0; n <= len(letters); n++ {
		var s KeysDown
		for _, u := range letters[:n] {
			require.True(t, s.Press(u))
		}
		r := s.Report()
		if n > ReportSlots {
			assert.True(t, r.RolledOver(), "n=%d", n)
			continue
		}
		assert.False(t, r.RolledOver(), "n=%d", n)
		for i := 0; i < ReportSlots; i++ {
			if i < n {
				assert.Equal(t, letters[i], r.Keys[i], "n=%d slot=%d", n, i)
			} else {
				assert.Equal(t, keys.UsageNone, r.Keys[i], "n=%d slot=%d", n, i)
			}
		}
	}
}

func TestReportModifiers(t *testing.T) {
	var s KeysDown
	s.Press(keys.UsageQ)
	s.Press(keys.UsageLeftShift)

	r := s.Report()
	assert.Equal(t, uint8(0x02), r.Modifiers)
	assert.Equal(t, [ReportSlots]keys.Usage{keys.UsageQ, keys.UsageLeftShift}, r.Keys)

	s.Press(keys.UsageLeftControl)
	for _, u := range []keys.Usage{keys.UsageA, keys.UsageB, keys.UsageC} {
		s.Press(u)
	}
	r = s.Report()
	assert.Equal(t, uint8(0x03), r.Modifiers)
	assert.False(t, r.RolledOver(), "six usages fit")
	assert.Equal(t, [ReportSlots]keys.Usage{
		keys.UsageQ, keys.UsageLeftShift, keys.UsageLeftControl,
		keys.UsageA, keys.UsageB, keys.UsageC,
	}, r.Keys)

	s.Press(keys.UsageD)
	r = s.Report()
	assert.True(t, r.RolledOver(), "modifiers count toward rollover")
	assert.Equal(t, uint8(0x03), r.Modifiers)
}

func TestLEDNames(t *testing.T) {
	assert.Empty(t, LEDNames(0))
	assert.Equal(t, []string{"num", "caps"}, LEDNames(LEDCapsLock|LEDNumLock))
	assert.Equal(t, []string{"scroll", "compose", "kana"}, LEDNames(LEDScrollLock|LEDCompose|LEDKana))
	assert.Equal(t, []string{"kana"}, LEDNames(0xF0))
}
