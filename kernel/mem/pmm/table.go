package pmm

import (
	"unsafe"

	"pgalloc/kernel"
	"pgalloc/kernel/mem"
	"pgalloc/pmap"
)

// ErrTableAlloc is the fixed boot-tier panic for "the descriptor table
// itself could not be allocated" (spec.md §4.E / §7).
var ErrTableAlloc = &kernel.Error{Module: "pmm", Message: "failed to allocate page descriptor table"}

type physRange struct{ start, end uintptr }

// Table is the single contiguous array of page descriptors covering every
// loaded segment. Each segment owns a disjoint sub-slice, handed out by
// Slice when the segment is registered.
type Table struct {
	descriptors []Descriptor
	ownPhys     []physRange
}

// NewTable allocates a descriptor table sized for nrPages pages by
// stealing memory through pm and initializes every descriptor as Reserved.
// The table's own backing pages are recorded but not yet tagged Table,
// since descriptors don't carry real physical addresses until segments
// are registered; call TagOwnPages once registration is complete.
func NewTable(pm pmap.Interface, nrPages uint64) (*Table, *kernel.Error) {
	if nrPages == 0 {
		return &Table{}, nil
	}

	descSize := uintptr(unsafe.Sizeof(Descriptor{}))
	byteLen := uintptr(nrPages) * descSize
	allocLen := uintptr(mem.PagesForSize(mem.Size(byteLen))) << mem.PageShift

	virt, ok := pm.StealMemory(allocLen)
	if !ok {
		return nil, ErrTableAlloc
	}

	t := &Table{
		descriptors: unsafe.Slice((*Descriptor)(unsafe.Pointer(virt)), nrPages),
	}
	for i := range t.descriptors {
		t.descriptors[i] = Descriptor{Type: Reserved, Order: Unlisted, SegIndex: -1}
	}

	for off := uintptr(0); off < allocLen; off += uintptr(mem.PageSize) {
		if phys, ok := pm.Extract(virt + off); ok {
			t.ownPhys = append(t.ownPhys, physRange{phys, phys + uintptr(mem.PageSize)})
		}
	}

	return t, nil
}

// TagOwnPages walks every descriptor and flips to TablePage any whose physical
// address falls inside the range stolen for the table itself. It must be
// called after every segment has assigned PhysAddr to its descriptor
// sub-slice (spec.md §4.E: "mark every page of the table itself as TABLE
// after creation").
func (t *Table) TagOwnPages() {
	for i := range t.descriptors {
		addr := t.descriptors[i].PhysAddr
		for _, r := range t.ownPhys {
			if addr >= r.start && addr < r.end {
				t.descriptors[i].Type = TablePage
				break
			}
		}
	}
}

// Slice returns the sub-slice of descriptors starting at base spanning n
// entries. Used by segment registration to bind a contiguous run of
// descriptors to a segment's physical range.
func (t *Table) Slice(base int, n int) []Descriptor {
	return t.descriptors[base : base+n]
}

// Len returns the total number of descriptors in the table.
func (t *Table) Len() int { return len(t.descriptors) }
