// Command maghand-sim runs the keyboard firmware on a desktop.
//
// The analog front end is simulated by sim.Bank and the USB host by an
// in-memory loopback controller. The command enumerates the device, types
// a script of key names and prints every boot keyboard report the host
// receives.
//
// Usage:
//
//	maghand-sim [options]
//
// Options:
//
//	-config string             board profile (default: embedded profile)
//	-keys string               comma-separated key names to type (default: 00,01,02,03)
//	-hold duration             how long each key is held (default: 50ms)
//	-gap duration              pause between keys (default: 50ms)
//	-sample-interval duration  pacing of simulated ADC frames (default: 100µs)
//	-suspend                   suspend the bus first so the first key wakes the host
//	-cpuprofile string         write a CPU profile (needs -tags profile)
//	-memprofile string         write a heap profile on exit (needs -tags profile)
//	-v                         enable verbose (debug) logging
//	-json                      use JSON log format
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ardnew/maghand/config"
	"github.com/ardnew/maghand/firmware"
	"github.com/ardnew/maghand/hid"
	"github.com/ardnew/maghand/keys"
	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/pkg/prof"
	"github.com/ardnew/maghand/sim"
	"github.com/ardnew/maghand/usb"
)

const component = pkg.ComponentBoard

func main() {
	configPath := flag.String("config", "", "board profile (default: embedded profile)")
	script := flag.String("keys", "00,01,02,03", "comma-separated key names to type")
	hold := flag.Duration("hold", 50*time.Millisecond, "how long each key is held")
	gap := flag.Duration("gap", 50*time.Millisecond, "pause between keys")
	interval := flag.Duration("sample-interval", 100*time.Microsecond, "pacing of simulated ADC frames")
	suspend := flag.Bool("suspend", false, "suspend the bus first so the first key wakes the host")
	verbose := flag.Bool("v", false, "enable verbose (debug) logging")
	jsonLog := flag.Bool("json", false, "use JSON log format")
	cpuProfile := flag.String("cpuprofile", "", "write a CPU profile (needs -tags profile)")
	memProfile := flag.String("memprofile", "", "write a heap profile on exit (needs -tags profile)")
	flag.Parse()

	profile := config.Default()
	if *configPath != "" {
		var err error
		if profile, err = config.Load(*configPath); err != nil {
			pkg.LogError(component, "failed to load profile", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if err := profile.ApplyLogging(); err != nil {
		pkg.LogError(component, "bad log settings", "error", err)
		os.Exit(1)
	}
	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if *jsonLog {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	names, err := parseScript(*script)
	if err != nil {
		pkg.LogError(component, "bad key script", "error", err)
		os.Exit(1)
	}

	session, err := prof.Start(prof.Options{CPU: *cpuProfile, Heap: *memProfile})
	if err != nil {
		pkg.LogError(component, "failed to start profiling", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := sim.DefaultConfig()
	cfg.SampleInterval = *interval
	err = run(ctx, profile, cfg, names, *hold, *gap, *suspend)
	if perr := session.Stop(); perr != nil {
		pkg.LogError(component, "failed to write profiles", "error", perr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		pkg.LogError(component, "simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, profile *config.Profile, cfg sim.Config, names []keys.Name, hold, gap time.Duration, suspend bool) error {
	bank := sim.NewBank(cfg)
	lb := usb.NewLoopback(16)

	fw, err := firmware.New(profile, bank, bank, lb)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	enumCtx, enumCancel := context.WithTimeout(ctx, 5*time.Second)
	err = lb.Enumerate(enumCtx, fw.Device(), 1)
	enumCancel()
	if err != nil {
		return fmt.Errorf("enumerate: %w", err)
	}
	pkg.LogInfo(component, "host enumerated device", "address", lb.Address())

	go printReports(ctx, lb)

	if suspend {
		lb.Signal(usb.EventSuspend)
		pkg.LogInfo(component, "bus suspended")
	}

	for _, name := range names {
		bank.Press(name, true)
		if err := sleep(ctx, hold); err != nil {
			return err
		}
		bank.Press(name, false)
		if err := sleep(ctx, gap); err != nil {
			return err
		}
	}

	// Let the last release reach the host.
	if err := sleep(ctx, 5*gap); err != nil {
		return err
	}

	st := fw.Keyboard().Stats()
	sch := fw.Scheduler().Stats()
	pkg.LogInfo(component, "done",
		"sent", st.Sent, "failed", st.Failed, "unmapped", st.Unmapped,
		"cycles", sch.Cycles, "wakeups", lb.Wakeups())

	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printReports(ctx context.Context, lb *usb.Loopback) {
	for {
		data, err := lb.Receive(ctx)
		if err != nil {
			return
		}
		fmt.Println(formatReport(data))
	}
}

// formatReport renders a boot keyboard report for the console.
func formatReport(data []byte) string {
	if len(data) < hid.KeyboardReportSize {
		return fmt.Sprintf("short report % x", data)
	}
	var codes []string
	for _, c := range data[2:hid.KeyboardReportSize] {
		if c != 0 {
			codes = append(codes, fmt.Sprintf("%02x", c))
		}
	}
	return fmt.Sprintf("report mods=%08b keys=[%s]", data[0], strings.Join(codes, " "))
}

// parseScript turns "00,01,21" into key names.
func parseScript(s string) ([]keys.Name, error) {
	var names []keys.Name
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", f, pkg.ErrInvalidParameter)
		}
		names = append(names, keys.Name(n))
	}
	return names, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
