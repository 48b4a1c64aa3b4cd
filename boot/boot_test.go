package boot

import (
	"testing"

	"pgalloc/kernel/cpu"
	"pgalloc/kernel/mem"
	"pgalloc/kernel/mem/bootdata"
	"pgalloc/kernel/mem/bootheap"
	"pgalloc/kernel/mem/firmware"
	"pgalloc/kernel/mem/pmm"
	"pgalloc/kernel/mem/segment"
	"pgalloc/pmap/hostpmap"
)

// spec.md S1: a single DIRECTMAP segment, after bootstrap + free_usable,
// has nr_free_pages == total segment pages minus the reserved prefix
// (excluded here by never being part of the segment in the first place,
// since the planner only loads the available sub-range), the kernel image
// boot artifact, and the descriptor table's own pages.
func TestBootstrapFreeUsableMatchesS1Accounting(t *testing.T) {
	cpu.Configure(1)

	raw := []firmware.Entry{
		{Base: 0x00000, Length: 0x10000, Type: firmware.Reserved},
		{Base: 0x10000, Length: 0x1F0000, Type: firmware.Available}, // [0x10000, 0x200000)
	}
	kernelImage := bootdata.Range{Start: 0x1F0000, End: 0x200000} // tail 16 pages

	cfg := Config{
		Limits:         segment.Limits{DirectMapLimit: 0x200000},
		HeapPolicy:     bootheap.TopDown,
		HeapLowerBound: 0x10000,
		HeapUpperBound: 0x200000,
		NumCPU:         1,
	}

	b := New(cfg)
	if err := b.Bootstrap(raw, []bootdata.Range{kernelImage}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	pm := hostpmap.New(1 << 20)
	if err := b.Setup(pm); err != nil {
		t.Fatalf("setup: %v", err)
	}
	b.FreeUsable()

	a := b.Allocator()
	if !a.Ready() {
		t.Fatal("expected allocator to be ready after setup")
	}
	if got := a.SegName(0); got != "DIRECTMAP" {
		t.Fatalf("expected single loaded segment to be DIRECTMAP; got %s", got)
	}

	const totalPages = 496
	const kernelImagePages = 16
	const tablePages = 6 // ceil(496 * sizeof(Descriptor=48) / PageSize)
	wantFree := mem.Size(totalPages-kernelImagePages-tablePages) * mem.PageSize

	if got := a.MemFree(); got != wantFree {
		t.Fatalf("nr_free_pages mismatch: got %d bytes free, want %d", got, wantFree)
	}

	d, ok := a.Lookup(0x1F0000)
	if !ok || d.Type != pmm.Reserved {
		t.Fatalf("expected the kernel image page to remain RESERVED; found=%v type=%v", ok, d.Type)
	}

	if got := b.DirectMapSize(); got != 0x200000 {
		t.Fatalf("expected directmap_size to report the configured limit; got %#x", got)
	}
}

func TestBootAllocServesFromTheBootstrapHeap(t *testing.T) {
	cpu.Configure(1)

	raw := []firmware.Entry{
		{Base: 0, Length: 0x100000, Type: firmware.Available},
	}
	cfg := Config{
		Limits:         segment.Limits{DirectMapLimit: 0x100000},
		HeapPolicy:     bootheap.BottomUp,
		HeapLowerBound: 0,
		HeapUpperBound: 0x100000,
		NumCPU:         1,
	}

	b := New(cfg)
	if err := b.Bootstrap(raw, nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	addr1, err := b.BootAlloc(1)
	if err != nil {
		t.Fatalf("bootalloc: %v", err)
	}
	addr2, err := b.BootAlloc(1)
	if err != nil {
		t.Fatalf("bootalloc: %v", err)
	}
	if addr2 != addr1+uintptr(mem.PageSize) {
		t.Fatalf("expected bottom-up bump allocation to be contiguous: addr1=%#x addr2=%#x", addr1, addr2)
	}
}

func TestBootstrapRejectsOverflowingMap(t *testing.T) {
	raw := make([]firmware.Entry, 200)
	for i := range raw {
		raw[i] = firmware.Entry{Base: uint64(i) * 0x1000, Length: 0x1000, Type: firmware.Available}
	}

	b := New(Config{NumCPU: 1})
	if err := b.Bootstrap(raw, nil); err == nil {
		t.Fatal("expected bootstrap to reject a raw map exceeding the normalizer's capacity")
	}
}
