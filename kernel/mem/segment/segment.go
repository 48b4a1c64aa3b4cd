// Package segment carves the normalized firmware memory map into
// addressability classes — DMA, DMA32, DIRECTMAP, HIGHMEM — and resolves a
// caller's class request to one of the classes that actually got loaded on
// this machine.
package segment

import "pgalloc/kernel/mem/firmware"

// Class is an addressability restriction. Classes are numbered by
// decreasing restriction: DMA is the most restrictive, HIGHMEM the least.
type Class uint8

const (
	DMA Class = iota
	DMA32
	DIRECTMAP
	HIGHMEM

	numClasses
)

// classOrder orders the classes used by Plan.
var classOrder = [numClasses]Class{DMA, DMA32, DIRECTMAP, HIGHMEM}

// String returns the class's canonical name, matching the allocator
// façade's seg_name operation.
func (c Class) String() string {
	switch c {
	case DMA:
		return "DMA"
	case DMA32:
		return "DMA32"
	case DIRECTMAP:
		return "DIRECTMAP"
	case HIGHMEM:
		return "HIGHMEM"
	default:
		return "UNKNOWN"
	}
}

// Limits gives the exclusive upper physical address bound for each of
// DMA, DMA32 and DIRECTMAP; HIGHMEM has no upper bound and always runs to
// the end of the map.
type Limits struct {
	DMALimit       uintptr
	DMA32Limit     uintptr
	DirectMapLimit uintptr
}

func (l Limits) upperBound(c Class) uintptr {
	switch c {
	case DMA:
		return l.DMALimit
	case DMA32:
		return l.DMA32Limit
	case DIRECTMAP:
		return l.DirectMapLimit
	default:
		return ^uintptr(0)
	}
}

// Segment is a contiguous physical range loaded under one addressability
// class.
type Segment struct {
	Class Class
	Start uintptr
	End   uintptr
}

// Len returns the length of this segment in bytes; callers divide by their
// own page size to get a page count, since this package stays independent
// of mem.PageSize.
func (s Segment) Len() uintptr { return s.End - s.Start }

// Plan walks the addressability classes in ascending order and, for each,
// finds the first available sub-range of the normalized map within
// [prevLimit, classLimit). Classes whose candidate range is empty are
// elided entirely (aliasing): callers must use Resolve to map a selector
// to a loaded segment.
func Plan(entries []firmware.Entry, limits Limits) []Segment {
	var segments []Segment
	prevLimit := uintptr(0)

	for _, class := range classOrder {
		upper := limits.upperBound(class)
		if start, end, ok := firstAvailableWithin(entries, prevLimit, upper); ok {
			segments = append(segments, Segment{Class: class, Start: start, End: end})
		}
		prevLimit = upper
	}

	return segments
}

// firstAvailableWithin returns the bounds of the first available firmware
// entry intersecting [lo, hi), clipped to that window.
func firstAvailableWithin(entries []firmware.Entry, lo, hi uintptr) (start, end uintptr, ok bool) {
	for _, e := range entries {
		if e.Type != firmware.Available {
			continue
		}
		eStart, eEnd := uintptr(e.Base), uintptr(e.End())
		clippedStart := maxUintptr(eStart, lo)
		clippedEnd := minUintptr(eEnd, hi)
		if clippedStart >= clippedEnd {
			continue
		}
		return clippedStart, clippedEnd, true
	}
	return 0, 0, false
}

// Resolve maps a selector to the index, within loaded, of the segment that
// should service a request for that class: the highest-numbered loaded
// segment whose Class is <= selector. If no loaded segment is that
// restrictive (the selector is more restrictive than anything loaded), it
// saturates to the most restrictive loaded segment instead, since classes
// more restrictive than the request were elided by Plan precisely because
// they aliased into it (spec.md §4.D's selector aliasing). HIGHMEM is never
// an eligible saturation target: unlike DMA/DMA32/DIRECTMAP it is not
// directly mapped, so it cannot transparently stand in for a more
// restrictive request.
func Resolve(loaded []Segment, selector Class) (index int, ok bool) {
	best := -1
	for i, seg := range loaded {
		if seg.Class <= selector && (best == -1 || loaded[i].Class > loaded[best].Class) {
			best = i
		}
	}
	if best != -1 {
		return best, true
	}

	for i, seg := range loaded {
		if seg.Class == HIGHMEM {
			continue
		}
		if best == -1 || loaded[i].Class < loaded[best].Class {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
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
