package keys

import (
	"github.com/chewxy/math32"

	"github.com/ardnew/maghand/pkg"
)

// Change is a key-change event emitted when a key's on/off state flips.
type Change struct {
	Name Name
	On   bool
}

// Publisher accepts key-change events without blocking.
// TryPublish returns an error when the event could not be delivered to
// every subscriber.
type Publisher interface {
	TryPublish(Change) error
}

// FilterOptions tunes an AnalogKey.
type FilterOptions struct {
	// Alpha is the low-pass coefficient applied to each new sample.
	Alpha float32
	// Hysteresis is the offset from 0.5 the threshold moves to after a crossing.
	Hysteresis float32
	// MinValidRange is the smallest observed span for which the
	// normalized value is defined.
	MinValidRange float32
	// HighIsOn reports the key on when its normalized value is high.
	HighIsOn bool
}

// Alpha is the low-pass coefficient every key filter uses.
const Alpha = 0.05

// DefaultFilterOptions returns the board's filter tuning.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		Alpha:         Alpha,
		Hysteresis:    0.1,
		MinValidRange: 100,
	}
}

// AnalogKey smooths the raw readings of one Hall-effect switch, tracks
// the range of travel it has observed, and detects on/off transitions
// with a Schmitt trigger centered on that range.
//
// AnalogKey is not safe for concurrent use.
type AnalogKey struct {
	name Name
	opts FilterOptions
	pub  Publisher

	seeded    bool
	value     float32
	min, max  float32
	threshold float32
	high      bool
	on        bool
}

// NewAnalogKey creates a key filter. pub may be nil for a key that only
// tracks its state.
func NewAnalogKey(name Name, opts FilterOptions, pub Publisher) *AnalogKey {
	return &AnalogKey{
		name:      name,
		opts:      opts,
		pub:       pub,
		threshold: 0.5,
	}
}

// Name returns the key name.
func (k *AnalogKey) Name() Name {
	return k.name
}

// Update feeds one raw ADC sample into the filter.
func (k *AnalogKey) Update(raw int16) {
	x := float32(raw)
	if !k.seeded {
		k.seeded = true
		k.value = x
		k.min, k.max = x, x
	} else {
		k.value = (1-k.opts.Alpha)*k.value + k.opts.Alpha*x
		k.max = math32.Max(k.max, k.value)
		k.min = math32.Min(k.min, k.value)
	}

	norm, ok := k.Normalized()
	if !ok {
		return
	}

	if high := norm >= k.threshold; high != k.high {
		k.high = high
		if high {
			k.threshold = 0.5 - k.opts.Hysteresis
		} else {
			k.threshold = 0.5 + k.opts.Hysteresis
		}
	}

	if on := k.high == k.opts.HighIsOn; on != k.on {
		k.on = on
		k.toggled(on)
	}
}

func (k *AnalogKey) toggled(on bool) {
	pkg.LogDebug(pkg.ComponentFilter, "key toggled", "key", k.name, "on", on)
	if k.pub == nil {
		return
	}
	if err := k.pub.TryPublish(Change{Name: k.name, On: on}); err != nil {
		pkg.LogWarn(pkg.ComponentFilter, "dropped key change",
			"key", k.name, "on", on, "error", err)
	}
}

// Normalized returns the smoothed value scaled to the observed range.
// It is undefined until the range spans at least MinValidRange.
func (k *AnalogKey) Normalized() (float32, bool) {
	if !k.seeded || k.max <= k.min {
		return 0, false
	}
	span := k.max - k.min
	if span < k.opts.MinValidRange {
		return 0, false
	}
	return (k.value - k.min) / span, true
}

// IsOn reports the debounced key state. Uncalibrated keys are off.
func (k *AnalogKey) IsOn() bool {
	return k.on
}

// Value returns the smoothed reading.
func (k *AnalogKey) Value() (float32, bool) {
	return k.value, k.seeded
}

// Range returns the observed minimum and maximum smoothed readings.
func (k *AnalogKey) Range() (lo, hi float32, ok bool) {
	return k.min, k.max, k.seeded
}

// Threshold returns the current normalized switch threshold.
func (k *AnalogKey) Threshold() float32 {
	return k.threshold
}

// ResetCalibration forgets the observed range and state. The next sample
// seeds the filter again. No event is emitted.
func (k *AnalogKey) ResetCalibration() {
	k.seeded = false
	k.value, k.min, k.max = 0, 0, 0
	k.threshold = 0.5
	k.high = false
	k.on = false
}
