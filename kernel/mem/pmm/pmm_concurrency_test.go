package pmm

import (
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"pgalloc/kernel/cpu"
	"pgalloc/kernel/mem"
	"pgalloc/kernel/mem/segment"
)

// TestConcurrentAllocFreeNeverOverlaps drives many goroutines through
// alloc/free round trips against a single shared segment and checks, on
// every allocation, that the returned physical range does not overlap any
// range currently held live by another goroutine. A buddy-merge bug that
// hands out the same block twice, or a lock-ordering bug that lets a free
// race a concurrent split, would show up here as an overlap rather than as
// a crash.
func TestConcurrentAllocFreeNeverOverlaps(t *testing.T) {
	const numWorkers = 8
	const itersPerWorker = 500

	cpu.Configure(numWorkers)
	seg := newTestSegment(0, 2048, numWorkers)
	for i := range seg.descs {
		seg.Manage(&seg.descs[i])
	}
	a := NewAllocator(&Table{}, []*Seg{seg})

	var (
		mu   sync.Mutex
		live = make(map[uintptr]mem.Order)
	)

	checkOut := func(pa uintptr, order mem.Order) error {
		mu.Lock()
		defer mu.Unlock()
		newStart, newEnd := pa, pa+uintptr(mem.PageSize)<<order
		for livePA, liveOrder := range live {
			liveStart, liveEnd := livePA, livePA+uintptr(mem.PageSize)<<liveOrder
			if newStart < liveEnd && liveStart < newEnd {
				return errOverlap(newStart, newEnd, liveStart, liveEnd)
			}
		}
		live[pa] = order
		return nil
	}

	checkIn := func(pa uintptr) {
		mu.Lock()
		delete(live, pa)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	for w := 0; w < numWorkers; w++ {
		g.Go(func() error {
			for i := 0; i < itersPerWorker; i++ {
				order := mem.Order(i % 3)
				d, ok := a.Alloc(order, segment.DIRECTMAP, Kernel)
				if !ok {
					return nil
				}
				if err := checkOut(d.PhysAddr, order); err != nil {
					return err
				}
				checkIn(d.PhysAddr)
				a.Free(d, order)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

type overlapError struct {
	newStart, newEnd, liveStart, liveEnd uintptr
}

func (e *overlapError) Error() string {
	return "overlapping allocation detected"
}

func errOverlap(newStart, newEnd, liveStart, liveEnd uintptr) error {
	return &overlapError{newStart, newEnd, liveStart, liveEnd}
}
