// Package pmap declares the minimal interface the page allocator consumes
// from the MMU layer. The MMU/pmap subsystem itself is out of scope for
// this module (spec.md §1); production kernels satisfy this interface with
// their real page-table code, while pmap/hostpmap satisfies it for tests
// and the simulation CLI.
package pmap

// Interface is the consumed surface of the MMU layer: a one-shot
// "steal me some virtually mapped, zeroed memory" call used to back the
// page descriptor table, and a translation call used to tag the table's
// own pages as TABLE once it exists.
type Interface interface {
	// StealMemory returns a virtually mapped, zero-initialized range of at
	// least size bytes. It may only be called once per boot, before the
	// page allocator is otherwise usable.
	StealMemory(size uintptr) (virtAddr uintptr, ok bool)

	// Extract translates a virtual address previously returned by
	// StealMemory back to its physical address.
	Extract(virtAddr uintptr) (physAddr uintptr, ok bool)
}
