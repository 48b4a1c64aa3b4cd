// Package firmware normalizes the raw memory map handed to the kernel by
// BIOS/UEFI firmware at boot: it filters degenerate entries, resolves
// overlaps by type precedence, and sorts the survivors by base address.
// The result is what the segment planner and the rest of the bootstrap
// allocator consume; nothing downstream ever looks at the raw map again.
package firmware

import "pgalloc/kernel"

// EntryType classifies a memory map record. Numerically larger values are
// more restrictive; when two records overlap, the intersection inherits
// the larger (more restrictive) of the two types.
type EntryType uint8

const (
	// Available memory may be handed to the page allocator.
	Available EntryType = iota
	Reserved
	AcpiReclaimable
	Nvs
	Unusable
	Disabled
)

// String implements fmt.Stringer-like formatting without importing "fmt",
// since firmware normalization runs before klog's sink is wired in some
// boot sequences.
func (t EntryType) String() string {
	switch t {
	case Available:
		return "available"
	case Reserved:
		return "reserved"
	case AcpiReclaimable:
		return "ACPI (reclaimable)"
	case Nvs:
		return "NVS"
	case Unusable:
		return "unusable"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Entry describes a single memory region: its physical base, its length in
// bytes, and its type.
type Entry struct {
	Base   uint64
	Length uint64
	Type   EntryType
}

// End returns the exclusive end address of the entry.
func (e Entry) End() uint64 { return e.Base + e.Length }

// maxInputEntries bounds the raw map accepted by Normalize; the working
// buffer is sized at 2x to accommodate splits introduced by overlap
// resolution, per the normalizer's capacity contract.
const maxInputEntries = 128

// ErrMapOverflow is returned when overlap resolution would need more than
// 2*maxInputEntries working slots to represent the disjoint result.
var ErrMapOverflow = &kernel.Error{Module: "firmware", Message: "memory map exceeds normalizer capacity"}

// ErrTooManyEntries is returned when the raw input itself exceeds
// maxInputEntries records.
var ErrTooManyEntries = &kernel.Error{Module: "firmware", Message: "raw memory map has too many entries"}

// Normalize filters, de-overlaps and sorts raw into a disjoint,
// ascending-by-base list of entries. raw is never mutated.
func Normalize(raw []Entry) ([]Entry, *kernel.Error) {
	if len(raw) > maxInputEntries {
		return nil, ErrTooManyEntries
	}

	work := make([]Entry, 0, 2*maxInputEntries)
	for _, e := range raw {
		// Filter: drop overflow/zero-length records.
		if e.Base+e.Length <= e.Base {
			continue
		}
		work = append(work, e)
	}

	var err *kernel.Error
	work, err = resolveOverlaps(work)
	if err != nil {
		return nil, err
	}

	insertionSortByBase(work)
	return work, nil
}

// resolveOverlaps repeatedly scans the working set for the first overlapping
// pair, splits/shrinks the two originals so the intersection is represented
// exactly once (tagged with the more restrictive type), and repeats until no
// pair overlaps. The scan is quadratic in the (small, capacity-bounded)
// entry count, matching the normalizer's stated capacity of <=128 inputs.
func resolveOverlaps(entries []Entry) ([]Entry, *kernel.Error) {
	for {
		i, j, ok := findOverlap(entries)
		if !ok {
			return entries, nil
		}

		split, err := splitOverlap(entries[i], entries[j])
		if err != nil {
			return nil, err
		}

		entries = append(entries[:i], entries[i+1:]...)
		if j > i {
			j--
		}
		entries = append(entries[:j], entries[j+1:]...)
		entries = append(entries, split...)

		if len(entries) > 2*maxInputEntries {
			return nil, ErrMapOverflow
		}
	}
}

func findOverlap(entries []Entry) (i, j int, ok bool) {
	for a := 0; a < len(entries); a++ {
		for b := a + 1; b < len(entries); b++ {
			if entries[a].Base < entries[b].End() && entries[b].Base < entries[a].End() {
				return a, b, true
			}
		}
	}
	return 0, 0, false
}

// splitOverlap returns the set of disjoint entries that replace a and b:
// the non-overlapping remainders of each (if any) plus one intersection
// entry tagged with the more restrictive type.
func splitOverlap(a, b Entry) ([]Entry, *kernel.Error) {
	lo, hi := a, b
	if lo.Base > hi.Base {
		lo, hi = hi, lo
	}

	interBase := hi.Base
	interEnd := min64(lo.End(), hi.End())
	interType := a.Type
	if b.Type > interType {
		interType = b.Type
	}

	var out []Entry
	if lo.Base < interBase {
		out = append(out, Entry{Base: lo.Base, Length: interBase - lo.Base, Type: lo.Type})
	}
	out = append(out, Entry{Base: interBase, Length: interEnd - interBase, Type: interType})
	if lo.End() > interEnd {
		out = append(out, Entry{Base: interEnd, Length: lo.End() - interEnd, Type: lo.Type})
	}
	if hi.End() > interEnd {
		out = append(out, Entry{Base: interEnd, Length: hi.End() - interEnd, Type: hi.Type})
	}

	return mergeAdjacentSameType(out), nil
}

// mergeAdjacentSameType collapses consecutive entries of the same type that
// abut exactly, so that splitting never leaves behind artificial seams.
func mergeAdjacentSameType(entries []Entry) []Entry {
	insertionSortByBase(entries)
	out := entries[:0:0]
	for _, e := range entries {
		if n := len(out); n > 0 && out[n-1].Type == e.Type && out[n-1].End() == e.Base {
			out[n-1].Length += e.Length
			continue
		}
		out = append(out, e)
	}
	return out
}

func insertionSortByBase(entries []Entry) {
	for i := 1; i < len(entries); i++ {
		key := entries[i]
		j := i - 1
		for j >= 0 && entries[j].Base > key.Base {
			entries[j+1] = entries[j]
			j--
		}
		entries[j+1] = key
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
