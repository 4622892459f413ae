package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/maghand/pkg"
)

func TestSetupPacketRoundTrip(t *testing.T) {
	in := SetupPacket{RequestType: 0x81, Request: RequestGetDescriptor, Value: 0x2200, Index: 0, Length: 63}
	var buf [SetupPacketSize]byte
	require.Equal(t, SetupPacketSize, in.MarshalTo(buf[:]))

	var out SetupPacket
	require.NoError(t, ParseSetupPacket(buf[:], &out))
	assert.Equal(t, in, out)
	assert.True(t, out.IsDeviceToHost())
	assert.Equal(t, uint8(RecipientInterface), out.Recipient())

	assert.ErrorIs(t, ParseSetupPacket(buf[:7], &out), pkg.ErrSetupPacketTooShort)
}

func TestStringDescriptor(t *testing.T) {
	var buf [255]byte
	n := StringDescriptorTo(buf[:], "Hé")
	assert.Equal(t, []byte{6, DescriptorTypeString, 'H', 0, 0xE9, 0}, buf[:n])

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	n = StringDescriptorTo(buf[:], string(long))
	assert.Equal(t, 254, n)
	assert.Equal(t, uint8(254), buf[0])

	assert.Zero(t, StringDescriptorTo(buf[:1], "x"))
}

func TestConfigurationMarshal(t *testing.T) {
	cfg := Configuration{
		Value:           1,
		MaxPowerMA:      100,
		InterfaceClass:  0x03,
		ClassDescriptor: []byte{9, 0x21, 0x11, 0x01, 0, 1, 0x22, 63, 0},
		Endpoints:       []Endpoint{{Address: 0x81, Attributes: EndpointTypeInterrupt, MaxPacketSize: 8, Interval: 60}},
	}
	buf := make([]byte, 64)
	n := cfg.MarshalTo(buf)
	require.Equal(t, 9+9+9+7, n)
	assert.Equal(t, uint8(50), buf[8])
	assert.Equal(t, uint8(1), buf[9+4], "endpoint count")
	assert.Equal(t, uint8(0x21), buf[18+1])
	assert.Equal(t, uint8(0x81), buf[27+2])
	assert.Equal(t, uint8(60), buf[27+6])

	assert.Zero(t, cfg.MarshalTo(buf[:10]))
}

func TestDeviceStateErrors(t *testing.T) {
	d := testDevice()
	assert.ErrorIs(t, d.SetAddress(1), pkg.ErrInvalidState)
	d.PowerDetected()
	d.Reset()
	require.NoError(t, d.SetAddress(1))
	assert.ErrorIs(t, d.SetConfiguration(2), pkg.ErrInvalidRequest)
	require.NoError(t, d.SetConfiguration(1))
	assert.Equal(t, StateConfigured, d.State())

	d.Suspend()
	assert.Equal(t, uint8(1), d.Configuration())
	d.Resume()
	assert.Equal(t, StateConfigured, d.State())

	require.NoError(t, d.SetConfiguration(0))
	assert.Equal(t, StateAddress, d.State())
}
