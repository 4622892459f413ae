// Package keys models the physical keys of an analog Hall-effect keyboard.
//
// Each key is an [AnalogKey]: a first-order low-pass filter over raw ADC
// readings that widens its observed travel range as it goes and switches
// on and off through a self-centering Schmitt trigger. No calibration step
// is needed; a key becomes usable once its observed span reaches
// [FilterOptions].MinValidRange.
//
// Keys are named by their wiring, channel*10 + mux phase. [Identity] maps
// names to key array indices and [Keymap] maps (name, layer) to a keyboard
// [Usage]. Both are built once at boot:
//
//	id, err := keys.DefaultIdentity()
//	km, err := keys.DefaultKeymap()
//	u, ok := km.Lookup(keys.Name(51), keys.LayerDefault) // UsageSpace
//
// State transitions leave the filter as [Change] events through a
// non-blocking [Publisher].
package keys
