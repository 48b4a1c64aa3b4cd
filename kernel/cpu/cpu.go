// Package cpu provides the small set of CPU primitives the allocator
// consumes directly: halting, a logical CPU identifier, and a scoped
// pinning primitive for the per-CPU cache fast path.
package cpu

import "runtime"

// haltFn is swapped out by tests; in a freestanding build it would be wired
// to the architecture's HLT-loop, the way the teacher's kernel/cpu package
// does for amd64.
var haltFn = func() { select {} }

// Halt stops the calling logical CPU. It never returns.
func Halt() {
	haltFn()
}

// Count returns the number of logical CPUs the allocator should size its
// per-CPU caches for.
func Count() int {
	registry.mu.Lock()
	n := registry.configured
	registry.mu.Unlock()
	if n == 0 {
		n = runtime.NumCPU()
	}
	return n
}

// Configure fixes the number of logical CPUs the simulation presents. It
// exists because the allocator's per-segment cache array is sized once, when
// boot's Setup builds the segments, and a hosted test run wants deterministic control over
// how many simulated CPUs are contending for a segment, independent of
// runtime.NumCPU() on the machine actually running the test. It must be
// called, if at all, before the first call to PinSelf.
func Configure(numCPU int) {
	registry.mu.Lock()
	registry.configured = numCPU
	registry.mu.Unlock()
}
