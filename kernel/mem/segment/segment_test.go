package segment

import (
	"testing"

	"pgalloc/kernel/mem/firmware"
)

func TestPlanElidesEmptyClasses(t *testing.T) {
	// Only one large available region spanning the DIRECTMAP range; DMA and
	// DMA32 should be elided since nothing is available below DirectMapLimit
	// except what DIRECTMAP itself claims first... to isolate DMA we put the
	// region strictly above the DMA/DMA32 limits.
	entries := []firmware.Entry{
		{Base: 0x200000, Length: 0x100000, Type: firmware.Available},
	}
	limits := Limits{DMALimit: 0x10000, DMA32Limit: 0x100000, DirectMapLimit: 0x400000}

	segs := Plan(entries, limits)
	if len(segs) != 1 {
		t.Fatalf("expected exactly one loaded segment; got %+v", segs)
	}
	if segs[0].Class != DIRECTMAP {
		t.Fatalf("expected the sole segment to be DIRECTMAP; got %v", segs[0].Class)
	}
}

func TestPlanLoadsAllClasses(t *testing.T) {
	entries := []firmware.Entry{
		{Base: 0, Length: 0x8000, Type: firmware.Available},        // DMA
		{Base: 0x10000, Length: 0x80000, Type: firmware.Available}, // DMA32
		{Base: 0x200000, Length: 0x200000, Type: firmware.Available},
		{Base: 0x1000000, Length: 0x1000000, Type: firmware.Available}, // HIGHMEM
	}
	limits := Limits{DMALimit: 0x10000, DMA32Limit: 0x100000, DirectMapLimit: 0x400000}

	segs := Plan(entries, limits)
	if len(segs) != 4 {
		t.Fatalf("expected all four classes loaded; got %+v", segs)
	}
	for i, want := range []Class{DMA, DMA32, DIRECTMAP, HIGHMEM} {
		if segs[i].Class != want {
			t.Fatalf("segment %d: expected class %v; got %v", i, want, segs[i].Class)
		}
	}
}

func TestResolveSaturatesToHighestLoadedLE(t *testing.T) {
	// Only DIRECTMAP loaded; a DMA32 request must saturate up to DIRECTMAP
	// since more restrictive segments were elided (spec.md S5).
	loaded := []Segment{{Class: DIRECTMAP, Start: 0, End: 0x1000}}

	idx, ok := Resolve(loaded, DMA32)
	if !ok {
		t.Fatal("expected a resolvable segment")
	}
	if loaded[idx].Class != DIRECTMAP {
		t.Fatalf("expected fallback to DIRECTMAP; got %v", loaded[idx].Class)
	}
}

func TestResolveNoneLoaded(t *testing.T) {
	loaded := []Segment{{Class: HIGHMEM, Start: 0, End: 0x1000}}

	if _, ok := Resolve(loaded, DMA); ok {
		t.Fatal("expected no resolvable segment when only a less restrictive class is loaded")
	}
}

func TestResolvePrefersMostRestrictiveSatisfying(t *testing.T) {
	loaded := []Segment{
		{Class: DMA, Start: 0, End: 0x1000},
		{Class: DIRECTMAP, Start: 0x1000, End: 0x2000},
	}

	idx, ok := Resolve(loaded, DIRECTMAP)
	if !ok || loaded[idx].Class != DIRECTMAP {
		t.Fatalf("expected DIRECTMAP to resolve to itself; got idx=%d ok=%v", idx, ok)
	}

	idx, ok = Resolve(loaded, DMA)
	if !ok || loaded[idx].Class != DMA {
		t.Fatalf("expected DMA to resolve to DMA; got idx=%d ok=%v", idx, ok)
	}
}
