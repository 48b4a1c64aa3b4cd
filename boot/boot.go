package boot

import (
	"pgalloc/kernel"
	"pgalloc/kernel/cpu"
	"pgalloc/kernel/klog"
	"pgalloc/kernel/mem"
	"pgalloc/kernel/mem/bootdata"
	"pgalloc/kernel/mem/bootheap"
	"pgalloc/kernel/mem/firmware"
	"pgalloc/kernel/mem/pmm"
	"pgalloc/kernel/mem/segment"
	"pgalloc/pmap"
)

func init() {
	klog.SetHaltFunc(cpu.Halt)
}

// ErrNoSegments is the fixed boot-tier panic for "the segment planner
// loaded nothing to manage" (spec.md §7).
var ErrNoSegments = &kernel.Error{Module: "boot", Message: "no addressability segments could be loaded"}

// Bootstrapper drives the pre-VM sequence described by spec.md §6's
// bootstrap API (bootstrap/bootalloc/directmap_size/setup/free_usable) and
// hands back a steady-state Allocator once Setup succeeds.
type Bootstrapper struct {
	cfg Config

	entries  []firmware.Entry
	bootData *bootdata.Set
	heap     *bootheap.Heap

	table *pmm.Table
	segs  []*pmm.Seg
	a     *pmm.Allocator
}

// New constructs a Bootstrapper for the given configuration. Bootstrap must
// be called before BootAlloc, Setup before FreeUsable.
func New(cfg Config) *Bootstrapper {
	return &Bootstrapper{cfg: cfg}
}

// Bootstrap implements spec.md §6's bootstrap(raw_firmware_info): it
// normalizes the raw memory map, records boot-artifact ranges, and carves
// the bootstrap bump heap out of the largest artifact-free gap within the
// configured bounds.
func (b *Bootstrapper) Bootstrap(raw []firmware.Entry, artifacts []bootdata.Range) *kernel.Error {
	entries, err := firmware.Normalize(raw)
	if err != nil {
		return err
	}
	b.entries = entries

	bd := &bootdata.Set{}
	for _, r := range artifacts {
		bd.Add(r.Start, r.End)
	}
	b.bootData = bd

	base, end, ok := bootheap.FindLargestGap(entries, bd, b.cfg.HeapLowerBound, b.cfg.HeapUpperBound)
	if !ok {
		return bootheap.ErrNoRegion
	}
	b.heap = bootheap.New(b.cfg.HeapPolicy, base, end)

	return nil
}

// BootAlloc implements spec.md §6's bootalloc(nr_pages): a page-aligned
// allocation from the bootstrap heap, for use before the page allocator
// itself is ready.
func (b *Bootstrapper) BootAlloc(nrPages uint64) (uintptr, *kernel.Error) {
	return b.heap.Alloc(mem.Size(nrPages) * mem.PageSize)
}

// DirectMapSize implements spec.md §6's directmap_size(): the upper bound
// of memory directly mappable by the kernel.
func (b *Bootstrapper) DirectMapSize() uintptr {
	return b.cfg.Limits.DirectMapLimit
}

// Setup implements spec.md §6's setup(): plan addressability segments from
// the normalized map, allocate the page descriptor table through pm, bind
// each segment to its descriptor sub-slice, and tag the table's own pages.
// On return, Allocator is ready to serve alloc/free/lookup, though every
// managed page is still RESERVED until FreeUsable runs.
func (b *Bootstrapper) Setup(pm pmap.Interface) *kernel.Error {
	planned := segment.Plan(b.entries, b.cfg.Limits)
	if len(planned) == 0 {
		return ErrNoSegments
	}

	var totalPages uint64
	for _, p := range planned {
		totalPages += uint64(p.Len()) >> mem.PageShift
	}

	table, err := pmm.NewTable(pm, totalPages)
	if err != nil {
		return err
	}
	b.table = table

	segs := make([]*pmm.Seg, len(planned))
	base := 0
	for i, p := range planned {
		nrPages := int(p.Len() >> mem.PageShift)
		descs := table.Slice(base, nrPages)
		for j := range descs {
			descs[j].PhysAddr = p.Start + uintptr(j)*uintptr(mem.PageSize)
			descs[j].SegIndex = i
		}
		segs[i] = pmm.NewSeg(p.Class, p.Start, p.End, descs, b.cfg.NumCPU)
		base += nrPages
	}
	b.segs = segs

	table.TagOwnPages()
	b.a = pmm.NewAllocator(table, segs)
	return nil
}

// FreeUsable implements spec.md §6's free_usable(): for every page of every
// loaded segment that the firmware map marked available and that is not
// occupied by a boot artifact or by the descriptor table itself, call
// manage(page). Table pages were already tagged TABLE by Setup, so they are
// skipped by the Type check rather than a second artifact lookup.
func (b *Bootstrapper) FreeUsable() {
	for _, seg := range b.segs {
		for addr := seg.Start; addr < seg.End; addr += uintptr(mem.PageSize) {
			d := seg.DescriptorAt(addr)
			if d.Type != pmm.Reserved {
				continue
			}
			if b.bootData.Contains(addr, addr+uintptr(mem.PageSize)) {
				continue
			}
			b.a.Manage(d)
		}
	}
}

// Allocator returns the steady-state façade. It is usable for alloc/free/
// lookup immediately after Setup, though pages remain RESERVED until
// FreeUsable runs.
func (b *Bootstrapper) Allocator() *pmm.Allocator {
	return b.a
}
