package bootdata

import "testing"

func TestFindGapReportsFirstIntersecting(t *testing.T) {
	var s Set
	s.Add(0x2000, 0x3000)
	s.Add(0x1000, 0x1500)
	s.Add(0x5000, 0x6000)

	got, ok := s.FindGap(0x1200, 0x2500)
	if !ok {
		t.Fatal("expected a boot-data range to intersect the query window")
	}
	if got != (Range{Start: 0x1000, End: 0x1500}) {
		t.Fatalf("expected the earliest intersecting range; got %+v", got)
	}
}

func TestFindGapNoIntersection(t *testing.T) {
	var s Set
	s.Add(0x1000, 0x2000)

	if _, ok := s.FindGap(0x3000, 0x4000); ok {
		t.Fatal("expected no intersection outside recorded ranges")
	}
}

func TestContains(t *testing.T) {
	var s Set
	s.Add(0x1000, 0x2000)

	if !s.Contains(0x1800, 0x1900) {
		t.Fatal("expected range fully inside a recorded artifact to be reported as contained")
	}
	if s.Contains(0x2000, 0x3000) {
		t.Fatal("half-open range boundary must not be treated as overlapping")
	}
}

func TestAddIgnoresEmptyRanges(t *testing.T) {
	var s Set
	s.Add(0x1000, 0x1000)
	s.Add(0x2000, 0x1fff)

	if len(s.Ranges()) != 0 {
		t.Fatalf("expected zero-length/inverted ranges to be dropped; got %+v", s.Ranges())
	}
}

func TestRangesSortedByStart(t *testing.T) {
	var s Set
	s.Add(0x3000, 0x3100)
	s.Add(0x1000, 0x1100)
	s.Add(0x2000, 0x2100)

	ranges := s.Ranges()
	for i := 1; i < len(ranges); i++ {
		if ranges[i-1].Start >= ranges[i].Start {
			t.Fatalf("ranges not sorted: %+v", ranges)
		}
	}
}
