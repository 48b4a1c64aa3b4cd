package pmm

import (
	"pgalloc/kernel"
	"pgalloc/kernel/cpu"
	"pgalloc/kernel/klog"
	"pgalloc/kernel/mem"
	"pgalloc/kernel/mem/segment"
)

// errPMapExhausted is the fixed panic used when a PMap-typed allocation
// cannot be satisfied: consumers need a page table to make forward
// progress, so there is no way to recover (spec.md §4.H, §7).
var errPMapExhausted = &kernel.Error{Module: "pmm", Message: "out of memory for page-table allocation"}

// Allocator is the steady-state page allocator façade (spec.md §4.H /
// §6): alloc/free/lookup/manage/set_type/seg_name/info_all/mem_size/
// mem_free, dispatching order 0 through the per-CPU cache and order >= 1
// straight to the buddy core.
type Allocator struct {
	table *Table
	segs  []*Seg // ordered ascending by segment.Class, one entry per loaded class
	ready bool
}

// NewAllocator wires a descriptor table to its loaded segments. Segments
// must already be populated (descriptors carrying PhysAddr/SegIndex) and
// ordered ascending by Class.
func NewAllocator(table *Table, segs []*Seg) *Allocator {
	return &Allocator{table: table, segs: segs, ready: true}
}

// Ready reports whether the allocator has completed bootstrap and can
// serve alloc/free requests.
func (a *Allocator) Ready() bool { return a.ready }

func (a *Allocator) classes() []segment.Class {
	cs := make([]segment.Class, len(a.segs))
	for i, s := range a.segs {
		cs[i] = s.Class
	}
	return cs
}

// asSegments adapts the loaded Segs into segment.Segment values so the
// selector-resolution logic in package segment can be reused verbatim.
func (a *Allocator) asSegments() []segment.Segment {
	out := make([]segment.Segment, len(a.segs))
	for i, s := range a.segs {
		out[i] = segment.Segment{Class: s.Class, Start: s.Start, End: s.End}
	}
	return out
}

// Alloc resolves selector to a starting loaded segment with segment.Resolve,
// then walks from it toward progressively more restrictive loaded segments
// (lower indices) until one succeeds (spec.md §4.H). On success every descriptor in the
// returned 2^order block is tagged typ. A PMap allocation failure panics;
// every other failure returns ok=false.
func (a *Allocator) Alloc(order mem.Order, selector segment.Class, typ Type) (*Descriptor, bool) {
	start, ok := segment.Resolve(a.asSegments(), selector)
	if !ok {
		return a.exhausted(typ)
	}

	for i := start; i >= 0; i-- {
		seg := a.segs[i]

		var d *Descriptor
		var allocated bool
		if order == 0 {
			pin := cpu.PinSelf()
			d, allocated = seg.AllocOrder0(pin.ID())
			pin.Release()
		} else {
			d, allocated = seg.Alloc(order)
		}

		if !allocated {
			continue
		}

		a.tagBlock(seg, d, order, typ)
		return d, true
	}

	return a.exhausted(typ)
}

func (a *Allocator) exhausted(typ Type) (*Descriptor, bool) {
	if typ == PMap {
		klog.Fatalf(errPMapExhausted)
	}
	return nil, false
}

// tagBlock tags every descriptor in the 2^order block headed by head with
// typ. Non-head pages of a multi-page block carry Unlisted order and the
// same type as the head.
func (a *Allocator) tagBlock(seg *Seg, head *Descriptor, order mem.Order, typ Type) {
	n := order.Pages()
	for i := uint64(0); i < n; i++ {
		addr := head.PhysAddr + uintptr(i)*uintptr(mem.PageSize)
		seg.DescriptorAt(addr).Type = typ
	}
}

// Free returns a 2^order block to its owning segment, dispatching order 0
// through the per-CPU cache and order >= 1 straight to the buddy core.
func (a *Allocator) Free(d *Descriptor, order mem.Order) {
	seg := a.segs[d.SegIndex]
	a.tagBlock(seg, d, order, Free)

	if order == 0 {
		pin := cpu.PinSelf()
		seg.FreeOrder0(pin.ID(), d)
		pin.Release()
		return
	}

	seg.Free(d, order)
}

// Lookup returns the descriptor for the page containing pa, scanning the
// (at most four) loaded segments.
func (a *Allocator) Lookup(pa uintptr) (*Descriptor, bool) {
	for _, seg := range a.segs {
		if seg.Contains(pa) {
			return seg.DescriptorAt(pa), true
		}
	}
	return nil, false
}

// Manage transitions a descriptor from Reserved to Free and inserts it
// into its owning segment's buddy core.
func (a *Allocator) Manage(d *Descriptor) {
	a.segs[d.SegIndex].Manage(d)
}

// SetType retags every descriptor in the 2^order block headed by d.
func (a *Allocator) SetType(d *Descriptor, order mem.Order, typ Type) {
	seg := a.segs[d.SegIndex]
	a.tagBlock(seg, d, order, typ)
}

// SegName returns the canonical name of the index-th loaded segment.
func (a *Allocator) SegName(index int) string {
	if index < 0 || index >= len(a.segs) {
		return "UNKNOWN"
	}
	return a.segs[index].Class.String()
}

// MemSize returns the total bytes managed by every segment up to and
// including DIRECTMAP; HIGHMEM is excluded from "directly usable" totals
// (spec.md §6, §9 "known source quirk").
func (a *Allocator) MemSize() mem.Size {
	var total mem.Size
	for _, s := range a.segs {
		if s.Class > segment.DIRECTMAP {
			continue
		}
		total += mem.Size(s.TotalPages()) * mem.PageSize
	}
	return total
}

// MemFree returns the free bytes across every segment up to and including
// DIRECTMAP.
func (a *Allocator) MemFree() mem.Size {
	var total mem.Size
	for _, s := range a.segs {
		if s.Class > segment.DIRECTMAP {
			continue
		}
		total += mem.Size(s.NrFreePages()) * mem.PageSize
	}
	return total
}

// NewTestAllocator builds a single-segment Allocator over a freshly
// Reserved, not-Table-backed segment, with every page already handed to
// the buddy core via Manage. It exists for package tests and for the
// diagnostics package's tests, where standing up a real descriptor Table
// and pmap simulator is more machinery than the test needs.
func NewTestAllocator(class segment.Class, start uintptr, numPages int, numCPU int) *Allocator {
	seg := NewStandaloneSegment(class, start, numPages, numCPU)
	for i := range seg.descs {
		seg.Manage(&seg.descs[i])
	}
	return NewAllocator(&Table{}, []*Seg{seg})
}

// Segments exposes the loaded segments for diagnostics (kernel/mem/pmm/diag)
// and for the bootstrap orchestration package.
func (a *Allocator) Segments() []*Seg { return a.segs }

// OrderCounts returns, per loaded segment, the current free-list entry
// count indexed by order. It backs the diag package's pprof export.
func (a *Allocator) OrderCounts() [][mem.MaxOrder]int {
	out := make([][mem.MaxOrder]int, len(a.segs))
	for i, s := range a.segs {
		out[i] = s.FreeListCounts()
	}
	return out
}
