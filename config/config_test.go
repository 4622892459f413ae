package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/maghand/pkg"
)

func TestDefault(t *testing.T) {
	p := Default()

	assert.Equal(t, uint16(0xc0de), p.USB.VendorID)
	assert.Equal(t, uint16(0x1983), p.USB.ProductID)
	assert.Equal(t, "maghand-keyboard", p.USB.Product)
	assert.Equal(t, "12345678", p.USB.Serial)
	assert.Equal(t, uint16(500), p.USB.MaxPowerMA)
	assert.Equal(t, uint8(60), p.USB.PollIntervalMS)
	assert.True(t, p.USB.RemoteWakeup)

	assert.Equal(t, 8, p.Scan.SamplesPerBurst)
	assert.Equal(t, time.Millisecond, p.Scan.Settle)

	assert.InDelta(t, 0.1, p.Filter.Hysteresis, 1e-6)
	assert.InDelta(t, 100, p.Filter.MinValidRange, 1e-6)
	assert.False(t, p.Filter.HighIsOn)

	assert.Equal(t, 10*time.Millisecond, p.HID.WakeupPoll)
	assert.Equal(t, 5*time.Second, p.HID.WakeupTimeout)

	require.NoError(t, p.Validate())
}

func TestDefaultIsACopy(t *testing.T) {
	a := Default()
	a.USB.Product = "changed"
	assert.Equal(t, "maghand-keyboard", Default().USB.Product)
}

func TestParseOverrides(t *testing.T) {
	p, err := Parse([]byte(`
usb:
  product: test-board
  poll_interval_ms: 10
filter:
  high_is_on: true
hid:
  wakeup_timeout: 0s
`))
	require.NoError(t, err)

	assert.Equal(t, "test-board", p.USB.Product)
	assert.Equal(t, uint8(10), p.USB.PollIntervalMS)
	assert.Equal(t, uint16(0xc0de), p.USB.VendorID, "unset fields keep defaults")
	assert.True(t, p.Filter.HighIsOn)
	assert.Zero(t, p.HID.WakeupTimeout)
	assert.Equal(t, 10*time.Millisecond, p.HID.WakeupPoll)
}

func TestParseEmpty(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestParseBackfillsZeros(t *testing.T) {
	p, err := Parse([]byte(`
scan:
  samples_per_burst: 0
bus:
  capacity: 0
`))
	require.NoError(t, err)
	assert.Equal(t, 8, p.Scan.SamplesPerBurst)
	assert.Equal(t, 8, p.Bus.Capacity)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "usb:\n  colour: red\n"},
		{"alpha is fixed", "filter:\n  alpha: 0.2\n"},
		{"bad hysteresis", "filter:\n  hysteresis: 0.5\n"},
		{"bad packet size", "usb:\n  max_packet_size_0: 12\n"},
		{"too much power", "usb:\n  max_power_ma: 900\n"},
		{"negative settle", "scan:\n  settle: -1ms\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad format", "log:\n  format: xml\n"},
		{"malformed", "usb: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("bus:\n  capacity: -1\n"))
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
	assert.ErrorContains(t, err, "bus.capacity must not be negative")
}

func TestLoad(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)

	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus:\n  capacity: 4\n"), 0o644))
	p, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Bus.Capacity)
}

func TestConversions(t *testing.T) {
	p := Default()

	opts := p.FilterOptions()
	assert.InDelta(t, 0.05, opts.Alpha, 1e-6)
	assert.Equal(t, p.Filter.Hysteresis, opts.Hysteresis)
	assert.Equal(t, p.Filter.MinValidRange, opts.MinValidRange)

	so := p.ScanOptions()
	assert.Equal(t, 8, so.SamplesPerBurst)
	assert.Equal(t, time.Millisecond, so.Settle)
}

func TestApplyLogging(t *testing.T) {
	prev := pkg.GetLogLevel()
	t.Cleanup(func() {
		pkg.SetLogLevel(prev)
		pkg.SetLogFormat(pkg.LogFormatText)
	})

	p := Default()
	p.Log.Level = "debug"
	p.Log.Format = "text"
	require.NoError(t, p.ApplyLogging())
	assert.Equal(t, slog.LevelDebug, pkg.GetLogLevel())

	p.Log.Level = "nope"
	assert.Error(t, p.ApplyLogging())
}
