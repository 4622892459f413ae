// Package prof captures runtime profiles of the simulator.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/maghand-sim
//
// Without the tag, [Start] returns a session that records nothing, so
// callers can leave profiling flags in place.
//
// A session streams a CPU profile while it runs and writes snapshot
// profiles (heap, block, mutex) when stopped:
//
//	s, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//		return err
//	}
//	defer s.Stop()
package prof

// Options names the output file of each profile. Empty paths are skipped.
type Options struct {
	CPU   string
	Heap  string
	Block string
	Mutex string
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Block != "" || o.Mutex != ""
}
