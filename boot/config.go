// Package boot orchestrates the pre-VM bootstrap sequence: it takes the raw
// firmware memory map and boot-artifact locations and drives them through
// the firmware normalizer, the boot-data locator, the bump heap, the
// segment planner, and the descriptor table, ending with a steady-state
// Allocator façade ready to serve alloc/free/lookup.
package boot

import (
	"pgalloc/kernel/mem/bootheap"
	"pgalloc/kernel/mem/segment"
)

// Config parameterizes Bootstrap, replacing the global mutable state the
// teacher's pmm.Init(kernelStart, kernelEnd) pattern relied on with an
// explicit struct, since this spec's segment/cache/policy surface is
// richer than a pair of bounds.
type Config struct {
	// Limits bounds the DMA/DMA32/DIRECTMAP addressability classes; see
	// segment.Limits.
	Limits segment.Limits

	// HeapPolicy selects the bump heap's allocation direction: TopDown on
	// BIOS platforms, BottomUp on hypervisor platforms (spec.md §4.C).
	HeapPolicy bootheap.Policy

	// HeapLowerBound/HeapUpperBound bound the search for the bump heap's
	// backing gap, typically [BIOSMEM_END, directmap limit).
	HeapLowerBound uintptr
	HeapUpperBound uintptr

	// NumCPU sizes every segment's per-CPU cache array. It must agree
	// with whatever cpu.Configure (or runtime.NumCPU, if never called)
	// will later hand PinSelf, since the cache array length is fixed at
	// segment-construction time.
	NumCPU int
}
