// Package diag turns a live Allocator's state into two offline-inspectable
// forms: a locale-aware human-readable table (what info_all() renders) and
// a pprof profile keyed by free-block order, so fragmentation can be
// inspected with "go tool pprof" the same way a heap profile would be.
package diag

import (
	"bytes"
	"time"

	"github.com/google/pprof/profile"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"pgalloc/kernel/mem"
	"pgalloc/kernel/mem/pmm"
)

// SegmentSnapshot is a read-only summary of one loaded segment's capacity
// and free-page accounting at the moment Snapshot was called.
type SegmentSnapshot struct {
	Name       string
	TotalPages uint64
	FreePages  uint64
}

// Snapshot is the data backing both info_all() and the pprof export: one
// SegmentSnapshot per loaded segment, plus the allocator-wide totals
// info_all() reports.
type Snapshot struct {
	Segments []SegmentSnapshot
	MemSize  mem.Size
	MemFree  mem.Size
}

// TakeSnapshot reads a's current state. It does not freeze the allocator;
// concurrent alloc/free calls may race with the read, which is acceptable
// for a diagnostics tool.
func TakeSnapshot(a *pmm.Allocator) Snapshot {
	segs := a.Segments()
	snap := Snapshot{
		Segments: make([]SegmentSnapshot, len(segs)),
		MemSize:  a.MemSize(),
		MemFree:  a.MemFree(),
	}
	for i, s := range segs {
		snap.Segments[i] = SegmentSnapshot{
			Name:       a.SegName(i),
			TotalPages: s.TotalPages(),
			FreePages:  s.NrFreePages(),
		}
	}
	return snap
}

// RenderTable implements the allocator façade's info_all() operation: an
// aligned per-segment table with a running free-byte total, modeled on the
// teacher's bootMemAllocator.printMemoryMap column layout. Counts are
// grouped with locale-aware thousands separators via golang.org/x/text.
func RenderTable(snap Snapshot) string {
	p := message.NewPrinter(language.English)
	var buf bytes.Buffer

	p.Fprintf(&buf, "%-12s %18s %18s %8s\n", "SEGMENT", "TOTAL PAGES", "FREE PAGES", "FREE %")
	for _, seg := range snap.Segments {
		pct := 0.0
		if seg.TotalPages > 0 {
			pct = 100 * float64(seg.FreePages) / float64(seg.TotalPages)
		}
		p.Fprintf(&buf, "%-12s %18d %18d %7.1f%%\n", seg.Name, seg.TotalPages, seg.FreePages, pct)
	}
	p.Fprintf(&buf, "\ntotal managed: %d bytes, free: %d bytes\n", snap.MemSize, snap.MemFree)

	return buf.String()
}

// BuildProfile encodes, per segment, a's current free-block-size
// histogram as a pprof profile sample set keyed by block order, so
// fragmentation can be inspected offline with "go tool pprof".
func BuildProfile(a *pmm.Allocator, snap Snapshot, sampledAt time.Time) *profile.Profile {
	orderCounts := a.OrderCounts()
	blockCountType := &profile.ValueType{Type: "blocks", Unit: "count"}
	pprof := &profile.Profile{
		SampleType: []*profile.ValueType{blockCountType},
		TimeNanos:  sampledAt.UnixNano(),
	}

	orderLoc := make(map[mem.Order]*profile.Location, mem.MaxOrder)
	for order := mem.Order(0); order < mem.MaxOrder; order++ {
		loc := &profile.Location{
			ID: uint64(order) + 1,
			Line: []profile.Line{{
				Function: &profile.Function{
					ID:   uint64(order) + 1,
					Name: orderLabel(order),
				},
			}},
		}
		orderLoc[order] = loc
		pprof.Function = append(pprof.Function, loc.Line[0].Function)
		pprof.Location = append(pprof.Location, loc)
	}

	for segIdx, counts := range orderCounts {
		if segIdx >= len(snap.Segments) {
			break
		}
		segName := snap.Segments[segIdx].Name
		for order := mem.Order(0); order < mem.MaxOrder; order++ {
			if counts[order] == 0 {
				continue
			}
			pprof.Sample = append(pprof.Sample, &profile.Sample{
				Location: []*profile.Location{orderLoc[order]},
				Value:    []int64{int64(counts[order])},
				Label:    map[string][]string{"segment": {segName}},
			})
		}
	}

	return pprof
}

func orderLabel(order mem.Order) string {
	names := [...]string{
		"order0", "order1", "order2", "order3", "order4",
		"order5", "order6", "order7", "order8", "order9", "order10",
	}
	if int(order) < len(names) {
		return names[order]
	}
	return "order?"
}
