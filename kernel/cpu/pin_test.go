package cpu

import "testing"

func TestPinSelfUniqueIDs(t *testing.T) {
	reset()
	Configure(4)

	seen := map[int]bool{}
	pins := make([]*Pin, 0, 4)
	for i := 0; i < 4; i++ {
		p := PinSelf()
		if seen[p.ID()] {
			t.Fatalf("logical CPU %d handed out twice concurrently", p.ID())
		}
		seen[p.ID()] = true
		pins = append(pins, p)
	}

	for _, p := range pins {
		p.Release()
	}

	// the pool must be fully returned: another full round should succeed
	// without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 4; i++ {
			PinSelf().Release()
		}
		close(done)
	}()
	<-done
}

func TestPinReleaseIdempotent(t *testing.T) {
	reset()
	Configure(1)
	p := PinSelf()
	p.Release()
	p.Release() // must not double-return the slot or panic
}
