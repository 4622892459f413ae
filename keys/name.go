package keys

import (
	"fmt"

	"github.com/ardnew/maghand/pkg"
)

// MaxKeys is the capacity of the static key tables.
const MaxKeys = 32

// Name identifies a physical key as channel*10 + mux phase.
type Name uint8

// NameOf returns the key name wired to ADC channel ch in mux phase ph.
func NameOf(ch, ph int) Name {
	return Name(ch*10 + ph)
}

// String renders the name as two digits, e.g. "05".
func (n Name) String() string {
	return fmt.Sprintf("%02d", uint8(n))
}

// Identity is the bijection between key names and key array indices.
// It is built once at boot and never modified.
type Identity struct {
	names [MaxKeys]Name
	index [256]uint8 // index+1, 0 = absent
	n     int
}

// NewIdentity builds an identity from names in index order.
// Returns ErrTableOverflow if there are more than MaxKeys names and
// ErrDuplicateKey if a name repeats.
func NewIdentity(names []Name) (*Identity, error) {
	if len(names) > MaxKeys {
		return nil, fmt.Errorf("%w: %d keys, capacity %d", pkg.ErrTableOverflow, len(names), MaxKeys)
	}
	id := &Identity{}
	for i, name := range names {
		if id.index[name] != 0 {
			return nil, fmt.Errorf("%w: name %s", pkg.ErrDuplicateKey, name)
		}
		id.names[i] = name
		id.index[name] = uint8(i + 1)
	}
	id.n = len(names)
	return id, nil
}

// Index returns the array index of name.
func (id *Identity) Index(name Name) (int, bool) {
	i := id.index[name]
	if i == 0 {
		return 0, false
	}
	return int(i - 1), true
}

// Name returns the key name at index i.
func (id *Identity) Name(i int) Name {
	return id.names[i]
}

// Len returns the number of keys.
func (id *Identity) Len() int {
	return id.n
}

// Names returns the key names in index order.
func (id *Identity) Names() []Name {
	return id.names[:id.n]
}

// Layer selects a keymap layer.
type Layer uint8

// Keymap layers.
const (
	LayerDefault Layer = iota

	layerCount
)

func (l Layer) String() string {
	switch l {
	case LayerDefault:
		return "default"
	default:
		return "unknown"
	}
}

// MapEntry binds a key name on a layer to a usage code.
type MapEntry struct {
	Name  Name
	Layer Layer
	Usage Usage
}

// Keymap is the partial function (name, layer) -> usage.
type Keymap struct {
	table [layerCount][256]Usage
}

// NewKeymap builds a keymap from entries.
func NewKeymap(entries []MapEntry) (*Keymap, error) {
	if len(entries) > MaxKeys*int(layerCount) {
		return nil, fmt.Errorf("%w: %d keymap entries", pkg.ErrTableOverflow, len(entries))
	}
	km := &Keymap{}
	for _, e := range entries {
		if e.Layer >= layerCount {
			return nil, fmt.Errorf("%w: layer %d", pkg.ErrInvalidParameter, e.Layer)
		}
		if e.Usage == UsageNone {
			return nil, fmt.Errorf("%w: key %s maps to no usage", pkg.ErrInvalidParameter, e.Name)
		}
		if km.table[e.Layer][e.Name] != UsageNone {
			return nil, fmt.Errorf("%w: key %s on layer %s", pkg.ErrDuplicateKey, e.Name, e.Layer)
		}
		km.table[e.Layer][e.Name] = e.Usage
	}
	return km, nil
}

// Lookup returns the usage for name on layer.
func (km *Keymap) Lookup(name Name, layer Layer) (Usage, bool) {
	if layer >= layerCount {
		return UsageNone, false
	}
	u := km.table[layer][name]
	return u, u != UsageNone
}

// Board key names, in key array order.
var boardNames = []Name{
	0, 1, 2, 3,
	10, 11, 12, 13,
	20, 21, 22, 23,
	30, 31, 32, 33,
	40, 41, 42, 43,
	50, 51, 52,
}

// Board default layer. Keys 43, 50 and 52 have no usage.
var boardKeymap = []MapEntry{
	{0, LayerDefault, UsageQ},
	{1, LayerDefault, UsageW},
	{2, LayerDefault, UsageE},
	{3, LayerDefault, UsageR},
	{10, LayerDefault, UsageT},
	{11, LayerDefault, UsageTab},
	{12, LayerDefault, UsageA},
	{13, LayerDefault, UsageS},
	{20, LayerDefault, UsageD},
	{21, LayerDefault, UsageF},
	{22, LayerDefault, UsageG},
	{23, LayerDefault, UsageLeftShift},
	{30, LayerDefault, UsageZ},
	{31, LayerDefault, UsageX},
	{32, LayerDefault, UsageC},
	{33, LayerDefault, UsageV},
	{40, LayerDefault, UsageB},
	{41, LayerDefault, UsageLeftControl},
	{42, LayerDefault, UsageLeftAlt},
	{51, LayerDefault, UsageSpace},
}

// DefaultIdentity returns the identity of the 23-key board.
func DefaultIdentity() (*Identity, error) {
	return NewIdentity(boardNames)
}

// DefaultKeymap returns the board's default-layer keymap.
func DefaultKeymap() (*Keymap, error) {
	return NewKeymap(boardKeymap)
}

// MuxSetting is one of the four two-bit mux address combinations.
type MuxSetting struct {
	A, B bool
}

// MuxSettings lists the mux phases in scan order.
var MuxSettings = [4]MuxSetting{
	{A: false, B: false},
	{A: true, B: false},
	{A: false, B: true},
	{A: true, B: true},
}

// Index returns the phase index 0..3.
func (m MuxSetting) Index() int {
	i := 0
	if m.A {
		i |= 1
	}
	if m.B {
		i |= 2
	}
	return i
}
