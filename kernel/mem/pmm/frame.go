// Package pmm contains the physical page allocator: the page descriptor
// table, the per-segment buddy cores, the per-CPU order-0 caches, and the
// allocator façade that ties them together.
package pmm

import (
	"math"

	"pgalloc/kernel/mem"
)

// Frame identifies a physical page by its page-aligned index, not its byte
// address.
type Frame uintptr

// InvalidFrame is returned by operations that fail to produce a frame.
const InvalidFrame = Frame(math.MaxUint64)

// Valid reports whether f is a real frame rather than the sentinel.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical byte address of the start of this frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the frame containing the given physical address.
func FrameFromAddress(addr uintptr) Frame {
	return Frame(addr >> mem.PageShift)
}
