package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/maghand/keys"
	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/scan"
)

//go:embed default.yaml
var defaultYAML []byte

// Profile is the board profile read once at boot.
type Profile struct {
	USB    USBConfig    `yaml:"usb"`
	Scan   ScanConfig   `yaml:"scan"`
	Filter FilterConfig `yaml:"filter"`
	Bus    BusConfig    `yaml:"bus"`
	HID    HIDConfig    `yaml:"hid"`
	Log    LogConfig    `yaml:"log"`
}

// USBConfig is the device identity and configuration descriptor content.
type USBConfig struct {
	VendorID       uint16 `yaml:"vendor_id"`
	ProductID      uint16 `yaml:"product_id"`
	Manufacturer   string `yaml:"manufacturer"`
	Product        string `yaml:"product"`
	Serial         string `yaml:"serial"`
	MaxPowerMA     uint16 `yaml:"max_power_ma"`
	MaxPacketSize0 uint8  `yaml:"max_packet_size_0"`
	PollIntervalMS uint8  `yaml:"poll_interval_ms"`
	RemoteWakeup   bool   `yaml:"remote_wakeup"`
}

// ScanConfig is the mux scan timing.
type ScanConfig struct {
	SamplesPerBurst int           `yaml:"samples_per_burst"`
	Settle          time.Duration `yaml:"settle"`
}

// FilterConfig tunes every key filter. The smoothing coefficient is fixed
// at keys.Alpha and is not part of the profile.
type FilterConfig struct {
	Hysteresis    float32 `yaml:"hysteresis"`
	MinValidRange float32 `yaml:"min_valid_range"`
	HighIsOn      bool    `yaml:"high_is_on"`
}

// BusConfig sizes the key-change bus.
type BusConfig struct {
	Capacity    int `yaml:"capacity"`
	Subscribers int `yaml:"subscribers"`
}

// HIDConfig is the keyboard task timing.
type HIDConfig struct {
	WakeupPoll    time.Duration `yaml:"wakeup_poll"`
	WakeupTimeout time.Duration `yaml:"wakeup_timeout"` // 0 waits indefinitely
	SendTimeout   time.Duration `yaml:"send_timeout"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

var embedded = sync.OnceValue(func() Profile {
	var p Profile
	if err := yaml.Unmarshal(defaultYAML, &p); err != nil {
		panic(fmt.Sprintf("config: embedded profile: %v", err))
	}
	return p
})

// Default returns the embedded board profile.
func Default() *Profile {
	p := embedded()
	return &p
}

// Parse reads a profile from YAML. Fields absent from data keep their
// default values. Unknown fields are rejected.
func Parse(data []byte) (*Profile, error) {
	p := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	p.ensureDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads a profile from a file. A missing file yields the defaults.
func Load(filename string) (*Profile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	return Parse(data)
}

// ensureDefaults back-fills zero values that have no meaning.
func (p *Profile) ensureDefaults() {
	def := Default()

	if p.USB.MaxPacketSize0 == 0 {
		p.USB.MaxPacketSize0 = def.USB.MaxPacketSize0
	}
	if p.USB.PollIntervalMS == 0 {
		p.USB.PollIntervalMS = def.USB.PollIntervalMS
	}
	if p.USB.MaxPowerMA == 0 {
		p.USB.MaxPowerMA = def.USB.MaxPowerMA
	}

	if p.Scan.SamplesPerBurst == 0 {
		p.Scan.SamplesPerBurst = def.Scan.SamplesPerBurst
	}

	if p.Filter.MinValidRange == 0 {
		p.Filter.MinValidRange = def.Filter.MinValidRange
	}

	if p.Bus.Capacity == 0 {
		p.Bus.Capacity = def.Bus.Capacity
	}
	if p.Bus.Subscribers == 0 {
		p.Bus.Subscribers = def.Bus.Subscribers
	}

	if p.HID.WakeupPoll == 0 {
		p.HID.WakeupPoll = def.HID.WakeupPoll
	}

	if p.Log.Level == "" {
		p.Log.Level = def.Log.Level
	}
	if p.Log.Format == "" {
		p.Log.Format = def.Log.Format
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), pkg.ErrInvalidParameter)
}

// Validate checks the profile's invariants.
func (p *Profile) Validate() error {
	switch p.USB.MaxPacketSize0 {
	case 8, 16, 32, 64:
	default:
		return invalid("usb.max_packet_size_0 must be 8, 16, 32 or 64, got %d", p.USB.MaxPacketSize0)
	}
	if p.USB.MaxPowerMA > 500 {
		return invalid("usb.max_power_ma must be <= 500, got %d", p.USB.MaxPowerMA)
	}

	if p.Scan.SamplesPerBurst < 0 {
		return invalid("scan.samples_per_burst must not be negative")
	}
	if p.Scan.Settle < 0 {
		return invalid("scan.settle must not be negative")
	}

	if p.Filter.Hysteresis < 0 || p.Filter.Hysteresis >= 0.5 {
		return invalid("filter.hysteresis must be in [0, 0.5), got %v", p.Filter.Hysteresis)
	}
	if p.Filter.MinValidRange < 0 {
		return invalid("filter.min_valid_range must not be negative")
	}

	if p.Bus.Capacity < 0 {
		return invalid("bus.capacity must not be negative")
	}
	if p.Bus.Subscribers < 0 {
		return invalid("bus.subscribers must not be negative")
	}

	if p.HID.WakeupPoll < 0 || p.HID.WakeupTimeout < 0 || p.HID.SendTimeout < 0 {
		return invalid("hid timings must not be negative")
	}

	if _, err := pkg.ParseLevel(p.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := pkg.ParseFormat(p.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}

// FilterOptions returns the key filter tuning.
func (p *Profile) FilterOptions() keys.FilterOptions {
	return keys.FilterOptions{
		Alpha:         keys.Alpha,
		Hysteresis:    p.Filter.Hysteresis,
		MinValidRange: p.Filter.MinValidRange,
		HighIsOn:      p.Filter.HighIsOn,
	}
}

// ScanOptions returns the scan scheduler timing.
func (p *Profile) ScanOptions() scan.Options {
	return scan.Options{
		SamplesPerBurst: p.Scan.SamplesPerBurst,
		Settle:          p.Scan.Settle,
	}
}

// ApplyLogging sets the process logger's level and format.
func (p *Profile) ApplyLogging() error {
	level, err := pkg.ParseLevel(p.Log.Level)
	if err != nil {
		return err
	}
	format, err := pkg.ParseFormat(p.Log.Format)
	if err != nil {
		return err
	}
	pkg.SetLogFormat(format)
	pkg.SetLogLevel(level)
	return nil
}
