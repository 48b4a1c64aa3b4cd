package pmm

import "pgalloc/kernel/mem"

// Type tags what a page is currently being used for. FREE pages sit in a
// segment's buddy free lists or a per-CPU cache; every other type is a
// caller-assigned tag applied at alloc time and cleared back to FREE on
// free.
type Type uint8

const (
	// Reserved marks a descriptor that has never been handed to the buddy
	// allocator: boot artifacts, the gap prefix before a segment's first
	// managed page, or memory the firmware map never called available.
	Reserved Type = iota
	// Free marks a page sitting in a free list or per-CPU cache.
	Free
	// TablePage marks a page backing the descriptor table itself.
	TablePage
	// PMap marks a page handed out for MMU page-table use. Allocation
	// failures for this type are unrecoverable (spec.md §4.H).
	PMap
	// Kernel marks a page handed out for generic kernel use.
	Kernel
)

func (t Type) String() string {
	switch t {
	case Reserved:
		return "RESERVED"
	case Free:
		return "FREE"
	case TablePage:
		return "TABLE"
	case PMap:
		return "PMAP"
	case Kernel:
		return "KERNEL"
	default:
		return "UNKNOWN"
	}
}

// Unlisted is the sentinel Order value carried by every page that is not
// itself the head of a free block: non-head pages within a free run, and
// any page that is not currently free at all.
const Unlisted = mem.Order(0xff)

// Descriptor describes exactly one managed physical page. Descriptors
// compose their own free-list linkage (Next/Prev) so that the buddy
// allocator never needs to allocate a list node to track a free page —
// the page's own descriptor is the node.
type Descriptor struct {
	PhysAddr uintptr
	SegIndex int
	Order    mem.Order
	Type     Type
	Next     *Descriptor
	Prev     *Descriptor

	// Private is reserved for the page's owner (e.g. a slab allocator) and
	// is never inspected by this package.
	Private uintptr
}

// Frame returns the page frame this descriptor describes.
func (d *Descriptor) Frame() Frame {
	return FrameFromAddress(d.PhysAddr)
}

// unlink removes d from whatever intrusive list it currently participates
// in. It does not touch d.Order or d.Type; callers update those
// separately.
func (d *Descriptor) unlink() {
	if d.Prev != nil {
		d.Prev.Next = d.Next
	}
	if d.Next != nil {
		d.Next.Prev = d.Prev
	}
	d.Next, d.Prev = nil, nil
}
