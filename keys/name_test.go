package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/maghand/pkg"
)

func TestNameOf(t *testing.T) {
	assert.Equal(t, Name(0), NameOf(0, 0))
	assert.Equal(t, Name(23), NameOf(2, 3))
	assert.Equal(t, Name(52), NameOf(5, 2))
	assert.Equal(t, "05", Name(5).String())
}

func TestIdentityBijection(t *testing.T) {
	id, err := DefaultIdentity()
	require.NoError(t, err)
	assert.Equal(t, 23, id.Len())

	for i := 0; i < id.Len(); i++ {
		j, ok := id.Index(id.Name(i))
		require.True(t, ok)
		assert.Equal(t, i, j)
	}
	for _, name := range id.Names() {
		i, ok := id.Index(name)
		require.True(t, ok)
		assert.Equal(t, name, id.Name(i))
	}

	_, ok := id.Index(53)
	assert.False(t, ok)
	_, ok = id.Index(4)
	assert.False(t, ok)
}

func TestIdentityErrors(t *testing.T) {
	_, err := NewIdentity([]Name{1, 2, 1})
	assert.ErrorIs(t, err, pkg.ErrDuplicateKey)

	names := make([]Name, MaxKeys+1)
	for i := range names {
		names[i] = Name(i)
	}
	_, err = NewIdentity(names)
	assert.ErrorIs(t, err, pkg.ErrTableOverflow)

	_, err = NewIdentity(names[:MaxKeys])
	assert.NoError(t, err)
}

func TestDefaultKeymap(t *testing.T) {
	km, err := DefaultKeymap()
	require.NoError(t, err)

	tests := []struct {
		name Name
		want Usage
		ok   bool
	}{
		{0, UsageQ, true},
		{11, UsageTab, true},
		{23, UsageLeftShift, true},
		{41, UsageLeftControl, true},
		{51, UsageSpace, true},
		{43, UsageNone, false},
		{50, UsageNone, false},
		{52, UsageNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name.String(), func(t *testing.T) {
			got, ok := km.Lookup(tt.name, LayerDefault)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := km.Lookup(0, Layer(9))
	assert.False(t, ok)
}

func TestKeymapErrors(t *testing.T) {
	_, err := NewKeymap([]MapEntry{{0, LayerDefault, UsageA}, {0, LayerDefault, UsageB}})
	assert.ErrorIs(t, err, pkg.ErrDuplicateKey)

	_, err = NewKeymap([]MapEntry{{0, Layer(3), UsageA}})
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)

	_, err = NewKeymap([]MapEntry{{0, LayerDefault, UsageNone}})
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestUsageModifier(t *testing.T) {
	assert.True(t, UsageLeftControl.IsModifier())
	assert.True(t, UsageRightGUI.IsModifier())
	assert.False(t, UsageSpace.IsModifier())
	assert.Equal(t, uint8(0x01), UsageLeftControl.ModifierBit())
	assert.Equal(t, uint8(0x02), UsageLeftShift.ModifierBit())
	assert.Equal(t, uint8(0x04), UsageLeftAlt.ModifierBit())
	assert.Equal(t, uint8(0), UsageA.ModifierBit())
}

func TestMuxSettings(t *testing.T) {
	for i, m := range MuxSettings {
		assert.Equal(t, i, m.Index())
	}
}
