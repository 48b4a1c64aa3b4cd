package pmm

import (
	"pgalloc/kernel/mem"
	"pgalloc/kernel/mem/segment"
	ksync "pgalloc/kernel/sync"
)

// Seg is the runtime state of one loaded addressability segment: its
// physical range, the sub-slice of the descriptor table it owns, its
// buddy free lists, and its per-CPU order-0 caches. One Seg exists per
// entry returned by segment.Plan.
type Seg struct {
	Class segment.Class
	Start uintptr
	End   uintptr

	descs []Descriptor // index i describes frame (Start>>PageShift)+i

	lock        ksync.Spinlock
	freeHead    [mem.MaxOrder]*Descriptor
	freeCount   [mem.MaxOrder]int
	nrFreePages uint64

	caches []*cpuCache
}

// NewSeg wires a Seg to its descriptor sub-slice and sizes its per-CPU
// caches. Every descriptor in descs is expected to already carry its
// PhysAddr and SegIndex (set by the caller during registration); NewSeg
// only initializes the free-list/cache bookkeeping. Production bootstrap
// obtains descs from a Table's sub-slice; standalone tests and diagnostics
// can use NewStandaloneSegment instead.
func NewSeg(class segment.Class, start, end uintptr, descs []Descriptor, numCPU int) *Seg {
	s := &Seg{Class: class, Start: start, End: end, descs: descs}

	capacity := cacheCapacity(len(descs))
	s.caches = make([]*cpuCache, numCPU)
	for i := range s.caches {
		s.caches[i] = newCPUCache(capacity)
	}

	return s
}

// NewStandaloneSegment builds a Seg with its own freshly Reserved
// descriptor slice, not backed by any Table. It is meant for tests, the
// diagnostics package, and cmd/pgsim, where a real descriptor table and
// pmap simulator are more machinery than the caller needs.
func NewStandaloneSegment(class segment.Class, start uintptr, numPages int, numCPU int) *Seg {
	descs := make([]Descriptor, numPages)
	for i := range descs {
		descs[i] = Descriptor{
			PhysAddr: start + uintptr(i)*uintptr(mem.PageSize),
			Order:    Unlisted,
			Type:     Reserved,
		}
	}
	return NewSeg(class, start, start+uintptr(numPages)*uintptr(mem.PageSize), descs, numCPU)
}

// cacheCapacity implements the per-CPU cache sizing rule from spec.md §3:
// ceil(seg_pages / 1024), clamped to [1, 128].
func cacheCapacity(segPages int) int {
	c := (segPages + 1023) / 1024
	if c < 1 {
		c = 1
	}
	if c > 128 {
		c = 128
	}
	return c
}

func (s *Seg) descAt(index int) *Descriptor { return &s.descs[index] }

// DescriptorAt returns the descriptor for the page containing addr, which
// must lie inside [s.Start, s.End).
func (s *Seg) DescriptorAt(addr uintptr) *Descriptor {
	return s.descAt(int((addr - s.Start) >> mem.PageShift))
}

// Contains reports whether addr falls inside this segment's range.
func (s *Seg) Contains(addr uintptr) bool {
	return addr >= s.Start && addr < s.End
}

// buddyOf returns the descriptor that is d's buddy at order k, using the
// absolute physical frame number for the XOR so that buddy pairing is
// correct regardless of where this segment's range happens to start. ok is
// false if the buddy address falls outside the segment (spec.md §4.F:
// "Merge iff the buddy lies inside the segment").
func (s *Seg) buddyOf(d *Descriptor, k mem.Order) (*Descriptor, bool) {
	buddyFrame := Frame(uint64(d.Frame()) ^ (uint64(1) << k))
	buddyAddr := buddyFrame.Address()
	if buddyAddr < s.Start || buddyAddr >= s.End {
		return nil, false
	}
	return s.descAt(int((buddyAddr - s.Start) >> mem.PageShift)), true
}

// allocOrderLocked implements spec.md §4.F "allocate order k": scan free
// lists k..MAX-1, pop the first non-empty one, and split down to k. The
// caller must hold s.lock.
func (s *Seg) allocOrderLocked(order mem.Order) (*Descriptor, bool) {
	var j mem.Order
	var head *Descriptor
	for j = order; j < mem.MaxOrder; j++ {
		if s.freeHead[j] != nil {
			head = s.freeHead[j]
			break
		}
	}
	if head == nil {
		return nil, false
	}

	s.popFreeList(j, head)

	for j > order {
		j--
		buddy, ok := s.buddyOf(head, j)
		if !ok {
			// A misconfigured segment range could in principle make the
			// upper half's buddy fall outside the segment; the block was
			// already tracked as fitting entirely inside the segment when
			// it was inserted, so this should not happen.
			break
		}
		buddy.Order = j
		s.pushFreeList(j, buddy)
	}

	head.Order = Unlisted
	s.nrFreePages -= order.Pages()
	return head, true
}

// freeOrderLocked implements spec.md §4.F "free block of order k at base
// p": merge with the buddy while it is itself a same-order free head
// inside this segment, then insert the (possibly grown) block. The caller
// must hold s.lock.
func (s *Seg) freeOrderLocked(d *Descriptor, order mem.Order) {
	originalPages := order.Pages()
	k := order
	cur := d
	d.Type = Free

	for k < mem.MaxOrder-1 {
		buddy, ok := s.buddyOf(cur, k)
		if !ok || buddy.Order != k {
			break
		}

		s.popFreeList(k, buddy)
		if buddy.PhysAddr < cur.PhysAddr {
			cur.Order = Unlisted
			cur = buddy
		} else {
			buddy.Order = Unlisted
		}
		k++
	}

	cur.Order = k
	cur.Type = Free
	s.pushFreeList(k, cur)
	s.nrFreePages += originalPages
}

// pushFreeList inserts d at the head of free list k (LIFO, per spec.md
// §4.F's cache-reuse tie-break).
func (s *Seg) pushFreeList(k mem.Order, d *Descriptor) {
	d.Order = k
	d.Next = s.freeHead[k]
	d.Prev = nil
	if s.freeHead[k] != nil {
		s.freeHead[k].Prev = d
	}
	s.freeHead[k] = d
	s.freeCount[k]++
}

// popFreeList removes d from free list k. d must currently be linked in
// that list (either because it is the list's tracked head, passed in by a
// scan, or because the caller already knows its position).
func (s *Seg) popFreeList(k mem.Order, d *Descriptor) {
	if s.freeHead[k] == d {
		s.freeHead[k] = d.Next
	}
	d.unlink()
	s.freeCount[k]--
}

// Alloc serves an order-k request directly from the buddy core, bypassing
// the per-CPU cache. Order 0 callers should prefer the per-CPU cache path
// (AllocOrder0); the façade uses Alloc directly for order >= 1.
func (s *Seg) Alloc(order mem.Order) (*Descriptor, bool) {
	s.lock.Acquire()
	d, ok := s.allocOrderLocked(order)
	s.lock.Release()
	return d, ok
}

// Free returns a block of order k directly to the buddy core.
func (s *Seg) Free(d *Descriptor, order mem.Order) {
	s.lock.Acquire()
	s.freeOrderLocked(d, order)
	s.lock.Release()
}

// Manage transitions a descriptor from Reserved to Free and inserts it
// into the buddy core as an order-0 block, per spec.md's manage()
// operation. It is used during free_usable() to hand every available page
// to the allocator one frame at a time, in ascending address order, which
// is what lets the same merge logic used by Free coalesce adjacent pages
// back into the large blocks a fresh segment should start with.
func (s *Seg) Manage(d *Descriptor) {
	s.lock.Acquire()
	s.freeOrderLocked(d, 0)
	s.lock.Release()
}

// NrFreePages returns the segment's current free-page accounting,
// including pages parked in per-CPU caches (spec.md §3 invariant).
func (s *Seg) NrFreePages() uint64 {
	s.lock.Acquire()
	total := s.nrFreePages
	s.lock.Release()
	for _, c := range s.caches {
		c.lock.Acquire()
		total += uint64(c.count)
		c.lock.Release()
	}
	return total
}

// TotalPages returns the number of pages this segment manages.
func (s *Seg) TotalPages() uint64 {
	return uint64(len(s.descs))
}

// FreeListCounts returns the current entry count of every free list,
// indexed by order. It exists for diagnostics (kernel/mem/pmm/diag) and
// property tests that need to inspect free-list shape directly.
func (s *Seg) FreeListCounts() [mem.MaxOrder]int {
	s.lock.Acquire()
	counts := s.freeCount
	s.lock.Release()
	return counts
}
