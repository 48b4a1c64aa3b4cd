package pmm

import (
	ksync "pgalloc/kernel/sync"
)

// cpuCache is a per-logical-CPU reservoir of order-0 pages. It exists to
// take the single-page alloc/free path off the segment lock in the common
// case; only fill and drain ever touch the segment underneath.
type cpuCache struct {
	lock     ksync.Spinlock
	capacity int
	transfer int
	count    int
	head     *Descriptor
}

func newCPUCache(capacity int) *cpuCache {
	transfer := (capacity + 1) / 2
	if transfer < 1 {
		transfer = 1
	}
	return &cpuCache{capacity: capacity, transfer: transfer}
}

// pop removes and returns the head of the cache's list. The caller must
// hold c.lock and have verified count > 0.
func (c *cpuCache) pop() *Descriptor {
	d := c.head
	c.head = d.Next
	d.Next, d.Prev = nil, nil
	c.count--
	return d
}

// push inserts d at the head of the cache's list. The caller must hold
// c.lock and have verified count < capacity.
func (c *cpuCache) push(d *Descriptor) {
	d.Next = c.head
	d.Prev = nil
	c.head = d
	c.count++
}

// AllocOrder0 serves a single-page request from CPU cpuID's cache,
// refilling from the segment's buddy core if the cache is empty. Lock
// order is cache-then-segment: the cache lock is held for the cache's
// entire critical section, and fill acquires the segment lock only while
// the cache lock is already held, matching spec.md §5's required order.
func (s *Seg) AllocOrder0(cpuID int) (*Descriptor, bool) {
	c := s.caches[cpuID]
	c.lock.Acquire()
	defer c.lock.Release()

	if c.count == 0 {
		if moved := s.fillLocked(c, c.transfer); moved == 0 {
			return nil, false
		}
	}

	d := c.pop()
	d.Type = Free // caller (façade) retags immediately after
	return d, true
}

// FreeOrder0 returns a single page to CPU cpuID's cache, draining to the
// segment's buddy core first if the cache is already full.
func (s *Seg) FreeOrder0(cpuID int, d *Descriptor) {
	c := s.caches[cpuID]
	c.lock.Acquire()
	defer c.lock.Release()

	if c.count >= c.capacity {
		s.drainLocked(c, c.transfer)
	}

	d.Type = Free
	c.push(d)
}

// fillLocked moves up to n order-0 pages from the segment's buddy core
// into the cache, returning the number actually moved. The caller must
// hold c.lock; fillLocked acquires and releases s.lock internally.
func (s *Seg) fillLocked(c *cpuCache, n int) int {
	s.lock.Acquire()
	defer s.lock.Release()

	moved := 0
	for moved < n && c.count < c.capacity {
		d, ok := s.allocOrderLocked(0)
		if !ok {
			break
		}
		d.Type = Free
		c.push(d)
		moved++
	}
	return moved
}

// drainLocked moves up to n order-0 pages from the cache back into the
// segment's buddy core. The caller must hold c.lock; drainLocked acquires
// and releases s.lock internally.
func (s *Seg) drainLocked(c *cpuCache, n int) int {
	s.lock.Acquire()
	defer s.lock.Release()

	moved := 0
	for moved < n && c.count > 0 {
		d := c.pop()
		s.freeOrderLocked(d, 0)
		moved++
	}
	return moved
}

// CacheCount returns the current occupancy of CPU cpuID's cache. It is
// exposed for diagnostics and tests (spec.md S4).
func (s *Seg) CacheCount(cpuID int) int {
	c := s.caches[cpuID]
	c.lock.Acquire()
	n := c.count
	c.lock.Release()
	return n
}
