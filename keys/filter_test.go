package keys

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	changes []Change
	err     error
}

func (r *recorder) TryPublish(c Change) error {
	if r.err != nil {
		return r.err
	}
	r.changes = append(r.changes, c)
	return nil
}

func highOn() FilterOptions {
	o := DefaultFilterOptions()
	o.HighIsOn = true
	return o
}

func TestAnalogKeySeed(t *testing.T) {
	k := NewAnalogKey(12, DefaultFilterOptions(), nil)
	_, ok := k.Value()
	assert.False(t, ok)

	k.Update(250)
	v, ok := k.Value()
	require.True(t, ok)
	assert.Equal(t, float32(250), v)

	lo, hi, ok := k.Range()
	require.True(t, ok)
	assert.Equal(t, float32(250), lo)
	assert.Equal(t, float32(250), hi)
	assert.False(t, k.IsOn())
}

func TestAnalogKeyLowPass(t *testing.T) {
	k := NewAnalogKey(0, DefaultFilterOptions(), nil)
	k.Update(0)
	k.Update(100)
	v, _ := k.Value()
	assert.InDelta(t, 5.0, v, 1e-4)
	k.Update(100)
	v, _ = k.Value()
	assert.InDelta(t, 9.75, v, 1e-4)
}

func TestAnalogKeyRangeMonotonic(t *testing.T) {
	k := NewAnalogKey(0, DefaultFilterOptions(), nil)
	samples := []int16{500, 800, 200, 900, 100, 400, 600, 300, -200, 1200}
	var prevLo, prevHi float32
	for i := 0; i < 400; i++ {
		k.Update(samples[i%len(samples)])
		lo, hi, ok := k.Range()
		require.True(t, ok)
		assert.GreaterOrEqual(t, hi, lo)
		if i > 0 {
			assert.LessOrEqual(t, lo, prevLo, "min grew at sample %d", i)
			assert.GreaterOrEqual(t, hi, prevHi, "max shrank at sample %d", i)
		}
		prevLo, prevHi = lo, hi
	}
}

func TestAnalogKeyNormalizedUndefinedBelowRange(t *testing.T) {
	k := NewAnalogKey(0, DefaultFilterOptions(), nil)
	k.Update(1000)
	for i := 0; i < 200; i++ {
		k.Update(1090)
		lo, hi, _ := k.Range()
		_, ok := k.Normalized()
		if hi-lo < 100 {
			assert.False(t, ok, "span %v", hi-lo)
		}
	}
	// Span converges toward 90 and never reaches the valid range.
	_, ok := k.Normalized()
	assert.False(t, ok)
	assert.False(t, k.IsOn())
}

func TestAnalogKeyConvergence(t *testing.T) {
	k := NewAnalogKey(0, DefaultFilterOptions(), nil)
	k.Update(0)
	prev := float32(math32.Inf(1))
	for i := 0; i < 400; i++ {
		k.Update(1000)
		v, _ := k.Value()
		delta := math32.Abs(1000 - v)
		if prev > 0.01 {
			assert.LessOrEqual(t, delta, prev)
		}
		prev = delta
	}
	assert.Less(t, prev, float32(1e-3))
}

func TestAnalogKeyHysteresisThreshold(t *testing.T) {
	rec := &recorder{}
	k := NewAnalogKey(3, highOn(), rec)

	k.Update(0)
	for !k.IsOn() {
		k.Update(1000)
	}
	assert.InDelta(t, 0.4, k.Threshold(), 1e-6, "after off->on")

	for k.IsOn() {
		k.Update(0)
	}
	assert.InDelta(t, 0.6, k.Threshold(), 1e-6, "after on->off")

	require.Len(t, rec.changes, 2)
	assert.Equal(t, Change{Name: 3, On: true}, rec.changes[0])
	assert.Equal(t, Change{Name: 3, On: false}, rec.changes[1])
}

func TestAnalogKeyHysteresisHolds(t *testing.T) {
	rec := &recorder{}
	k := NewAnalogKey(0, highOn(), rec)
	k.Update(0)
	for i := 0; i < 300; i++ {
		k.Update(1000)
	}
	require.True(t, k.IsOn())
	// Drift down to just under the midpoint; the lowered threshold keeps the key on.
	for i := 0; i < 300; i++ {
		k.Update(450)
	}
	n, ok := k.Normalized()
	require.True(t, ok)
	assert.Less(t, n, float32(0.5))
	assert.True(t, k.IsOn())
	assert.Len(t, rec.changes, 1)
}

func TestAnalogKeyScenarioA(t *testing.T) {
	rec := &recorder{}
	k := NewAnalogKey(0, highOn(), rec)

	for i := 0; i < 5; i++ {
		k.Update(100)
	}
	for i := 0; i < 5; i++ {
		k.Update(300)
	}
	assert.Empty(t, rec.changes, "toggled before span reached the valid range")

	for i := 0; i < 100 && len(rec.changes) == 0; i++ {
		lo, hi, _ := k.Range()
		wasValid := hi-lo >= 100
		k.Update(300)
		if len(rec.changes) > 0 {
			lo, hi, _ = k.Range()
			assert.GreaterOrEqual(t, hi-lo, float32(100))
			n, ok := k.Normalized()
			require.True(t, ok)
			assert.GreaterOrEqual(t, n, float32(0.5))
		} else {
			assert.False(t, wasValid)
		}
	}
	require.Len(t, rec.changes, 1)
	assert.True(t, rec.changes[0].On)
}

func TestAnalogKeyLowIsOn(t *testing.T) {
	rec := &recorder{}
	k := NewAnalogKey(7, DefaultFilterOptions(), rec)

	k.Update(1000)
	for i := 0; i < 200; i++ {
		k.Update(0)
	}
	require.NotEmpty(t, rec.changes)
	assert.True(t, rec.changes[0].On)
	assert.True(t, k.IsOn())

	for k.IsOn() {
		k.Update(1000)
	}
	assert.False(t, rec.changes[len(rec.changes)-1].On)
}

func TestAnalogKeyPublishFailure(t *testing.T) {
	rec := &recorder{err: errors.New("full")}
	k := NewAnalogKey(0, highOn(), rec)
	k.Update(0)
	for i := 0; i < 200; i++ {
		k.Update(1000)
	}
	assert.True(t, k.IsOn(), "state still advances when the event is dropped")
	assert.Empty(t, rec.changes)
}

func TestAnalogKeyResetCalibration(t *testing.T) {
	k := NewAnalogKey(0, highOn(), nil)
	k.Update(0)
	for i := 0; i < 200; i++ {
		k.Update(1000)
	}
	require.True(t, k.IsOn())

	k.ResetCalibration()
	assert.False(t, k.IsOn())
	assert.Equal(t, float32(0.5), k.Threshold())
	_, ok := k.Value()
	assert.False(t, ok)
}
