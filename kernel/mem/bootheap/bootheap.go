// Package bootheap implements the page-aligned bump allocator that bridges
// the gap between "firmware handed us a memory map" and "the page
// allocator exists". It carves its backing region out of the largest
// available gap that contains no boot artifact, then serves requests,
// each rounded up to whole pages, from that gap until the real allocator
// takes over.
package bootheap

import (
	"pgalloc/kernel"
	"pgalloc/kernel/mem"
	"pgalloc/kernel/mem/bootdata"
	"pgalloc/kernel/mem/firmware"
)

// Policy selects which end of the backing region bump allocation starts
// from. BIOS platforms bump top-down to preserve low DMA-capable pages for
// drivers that need them; hypervisor platforms bump bottom-up because only
// a small prefix of RAM is mapped early on, and the top of the region may
// not be addressable yet.
type Policy uint8

const (
	// TopDown hands out the highest-addressed unused bytes of the region
	// first.
	TopDown Policy = iota
	// BottomUp hands out the lowest-addressed unused bytes first.
	BottomUp
)

// ErrOutOfMemory is returned by Alloc once the backing region is exhausted.
var ErrOutOfMemory = &kernel.Error{Module: "bootheap", Message: "backing region exhausted"}

// ErrNoRegion is the fixed panic message for "no gap big enough was found",
// a boot-tier failure per the allocator's error taxonomy.
var ErrNoRegion = &kernel.Error{Module: "bootheap", Message: "no usable region found for bootstrap heap"}

// Heap is a page-aligned bump allocator over a single contiguous physical
// range.
type Heap struct {
	policy     Policy
	regionBase uintptr
	regionEnd  uintptr
	// cursor marks the boundary between allocated and unallocated bytes:
	// under TopDown it is the lowest address allocated so far (starts at
	// regionEnd); under BottomUp it is the address of the next allocation
	// (starts at regionBase).
	cursor uintptr
}

// New constructs a Heap over [regionBase, regionEnd) using the given
// policy. regionBase and regionEnd are assumed already page-aligned;
// callers obtain them from FindLargestGap.
func New(policy Policy, regionBase, regionEnd uintptr) *Heap {
	h := &Heap{policy: policy, regionBase: regionBase, regionEnd: regionEnd}
	if policy == TopDown {
		h.cursor = regionEnd
	} else {
		h.cursor = regionBase
	}
	return h
}

// Alloc returns a page-aligned physical address for a block of at least
// size bytes, rounded up to mem.PageSize, or ErrOutOfMemory if the backing
// region cannot satisfy the request.
func (h *Heap) Alloc(size mem.Size) (uintptr, *kernel.Error) {
	pages := mem.PagesForSize(size)
	if pages == 0 {
		pages = 1
	}
	need := uintptr(pages) << mem.PageShift

	if h.policy == TopDown {
		if h.cursor < need || h.cursor-need < h.regionBase {
			return 0, ErrOutOfMemory
		}
		h.cursor -= need
		return h.cursor, nil
	}

	if h.cursor+need > h.regionEnd || h.cursor+need < h.cursor {
		return 0, ErrOutOfMemory
	}
	start := h.cursor
	h.cursor += need
	return start, nil
}

// Remaining returns the number of unallocated bytes left in the region.
func (h *Heap) Remaining() mem.Size {
	if h.policy == TopDown {
		return mem.Size(h.cursor - h.regionBase)
	}
	return mem.Size(h.regionEnd - h.cursor)
}

// FindLargestGap scans the normalized, available entries of m, subtracts
// every boot-artifact range recorded in bd, and returns the largest
// resulting sub-range of [lowerBound, upperBound). It is used once at boot
// to pick the bootstrap heap's backing region.
func FindLargestGap(entries []firmware.Entry, bd *bootdata.Set, lowerBound, upperBound uintptr) (base, end uintptr, ok bool) {
	var bestBase, bestEnd uintptr
	found := false

	for _, e := range entries {
		if e.Type != firmware.Available {
			continue
		}
		lo := maxUintptr(lowerBound, uintptr(e.Base))
		hi := minUintptr(upperBound, uintptr(e.End()))
		if lo >= hi {
			continue
		}

		for _, sub := range subtractBootData(lo, hi, bd) {
			if !found || sub.end-sub.base > bestEnd-bestBase {
				bestBase, bestEnd, found = sub.base, sub.end, true
			}
		}
	}

	return bestBase, bestEnd, found
}

type gap struct{ base, end uintptr }

// subtractBootData splits [lo, hi) around every boot-artifact range that
// intersects it, returning the surviving sub-ranges in ascending order.
func subtractBootData(lo, hi uintptr, bd *bootdata.Set) []gap {
	pieces := []gap{{lo, hi}}
	for _, r := range bd.Ranges() {
		var next []gap
		for _, p := range pieces {
			if r.End <= p.base || r.Start >= p.end {
				next = append(next, p)
				continue
			}
			if r.Start > p.base {
				next = append(next, gap{p.base, r.Start})
			}
			if r.End < p.end {
				next = append(next, gap{r.End, p.end})
			}
		}
		pieces = next
	}
	return pieces
}

func maxUintptr(a, b uintptr) uintptr {
	if a > b {
		return a
	}
	return b
}

func minUintptr(a, b uintptr) uintptr {
	if a < b {
		return a
	}
	return b
}
