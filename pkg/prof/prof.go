//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/ardnew/maghand/pkg"
)

// ErrActive indicates a session is already running.
var ErrActive = errors.New("profiling session already active")

// Compiled reports whether profiling support is built in.
const Compiled = true

var (
	activeMutex sync.Mutex
	active      bool
)

// Session is a running profiling session.
type Session struct {
	opts    Options
	cpuFile *os.File
	once    sync.Once
	err     error
}

// Start begins a session. Only one session may run at a time.
func Start(opts Options) (*Session, error) {
	activeMutex.Lock()
	defer activeMutex.Unlock()
	if active {
		return nil, ErrActive
	}

	s := &Session{opts: opts}
	if opts.Block != "" {
		runtime.SetBlockProfileRate(1)
	}
	if opts.Mutex != "" {
		runtime.SetMutexProfileFraction(1)
	}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpuFile = f
	}
	active = true
	pkg.LogInfo(pkg.ComponentBoard, "profiling started",
		"cpu", opts.CPU, "heap", opts.Heap, "block", opts.Block, "mutex", opts.Mutex)
	return s, nil
}

// Stop ends the CPU profile and writes the snapshot profiles. Later calls
// return the first call's result.
func (s *Session) Stop() error {
	s.once.Do(func() {
		var errs []error
		if s.cpuFile != nil {
			pprof.StopCPUProfile()
			errs = append(errs, s.cpuFile.Close())
		}
		errs = append(errs,
			snapshot("heap", s.opts.Heap),
			snapshot("block", s.opts.Block),
			snapshot("mutex", s.opts.Mutex))
		if s.opts.Block != "" {
			runtime.SetBlockProfileRate(0)
		}
		if s.opts.Mutex != "" {
			runtime.SetMutexProfileFraction(0)
		}
		s.err = errors.Join(errs...)

		activeMutex.Lock()
		active = false
		activeMutex.Unlock()
		pkg.LogInfo(pkg.ComponentBoard, "profiling stopped", "error", s.err)
	})
	return s.err
}

func snapshot(name, path string) error {
	if path == "" {
		return nil
	}
	if name == "heap" {
		runtime.GC()
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s profile: %w", name, err)
	}
	defer f.Close()
	if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
		return fmt.Errorf("%s profile: %w", name, err)
	}
	return nil
}
