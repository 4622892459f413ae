// Package sim simulates the board's analog front end so the firmware can
// run on a desktop and in tests.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/ardnew/maghand/keys"
	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/scan"
)

// Config describes the simulated sensors.
type Config struct {
	// Rest and Pressed are the ADC readings at either end of travel.
	Rest    float32
	Pressed float32
	// Noise is the peak-to-peak uniform noise added to each reading.
	Noise float32
	// TravelTau is the time constant of key travel, in samples.
	TravelTau float32
	// SampleInterval paces each frame of a burst. Zero returns at once.
	SampleInterval time.Duration
	// Seed makes the noise reproducible.
	Seed uint64
}

// DefaultConfig returns a sensor that reads lower when pressed, like the
// board's Hall-effect switches with the magnet approaching.
func DefaultConfig() Config {
	return Config{
		Rest:      2400,
		Pressed:   900,
		Noise:     8,
		TravelTau: 4,
		Seed:      1983,
	}
}

// Bank simulates the board's Hall-effect switches behind the analog mux.
// It implements scan.Sampler and scan.Mux.
type Bank struct {
	cfg Config

	mutex    sync.Mutex
	rng      *rand.Rand
	setting  keys.MuxSetting
	selected bool
	target   [256]float32 // 0 released, 1 pressed
	travel   [256]float32
	selects  uint64
	bursts   uint64
}

// NewBank creates a bank with every key released.
func NewBank(cfg Config) *Bank {
	if cfg.TravelTau < 1 {
		cfg.TravelTau = 1
	}
	return &Bank{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Press moves name towards the pressed or released end of travel.
func (b *Bank) Press(name keys.Name, down bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if down {
		b.target[name] = 1
	} else {
		b.target[name] = 0
	}
	pkg.LogDebug(pkg.ComponentBoard, "simulated key", "key", name, "down", down)
}

// Travel returns name's position, 0 released to 1 pressed.
func (b *Bank) Travel(name keys.Name) float32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.travel[name]
}

// Select implements scan.Mux.
func (b *Bank) Select(ctx context.Context, setting keys.MuxSetting) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.setting = setting
	b.selected = true
	b.selects++
	return nil
}

// Sample implements scan.Sampler. Keys on the selected phase move one
// step of travel per frame.
func (b *Bank) Sample(ctx context.Context, buf []scan.Frame) (int, error) {
	b.mutex.Lock()
	selected := b.selected
	ph := b.setting.Index()
	b.mutex.Unlock()
	if !selected {
		return 0, fmt.Errorf("sample before mux select: %w", pkg.ErrInvalidState)
	}

	for i := range buf {
		if b.cfg.SampleInterval > 0 {
			select {
			case <-ctx.Done():
				return i, ctx.Err()
			case <-time.After(b.cfg.SampleInterval):
			}
		} else if err := ctx.Err(); err != nil {
			return i, err
		}
		b.frame(ph, &buf[i])
	}

	b.mutex.Lock()
	b.bursts++
	b.mutex.Unlock()
	return len(buf), nil
}

func (b *Bank) frame(ph int, f *scan.Frame) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	step := 1 / b.cfg.TravelTau
	for ch := range f {
		name := keys.NameOf(ch, ph)
		pos := b.travel[name] + (b.target[name]-b.travel[name])*step
		b.travel[name] = pos
		f[ch] = b.reading(pos)
	}
}

func (b *Bank) reading(pos float32) int16 {
	v := b.cfg.Rest + (b.cfg.Pressed-b.cfg.Rest)*pos
	if b.cfg.Noise > 0 {
		v += (b.rng.Float32() - 0.5) * b.cfg.Noise
	}
	v = math32.Max(math32.Min(math32.Floor(v+0.5), 32767), -32768)
	return int16(v)
}

// Stats returns the number of mux selections and completed bursts.
func (b *Bank) Stats() (selects, bursts uint64) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.selects, b.bursts
}

var (
	_ scan.Sampler = (*Bank)(nil)
	_ scan.Mux     = (*Bank)(nil)
)
