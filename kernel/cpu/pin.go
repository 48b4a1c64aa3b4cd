package cpu

import (
	"runtime"
	"sync"
)

type cpuRegistry struct {
	mu         sync.Mutex
	configured int
	slots      chan int
}

// registry hands out logical CPU ids to goroutines that call PinSelf. A real
// freestanding kernel would read the id straight out of a per-CPU register;
// here, where "CPUs" are simulated by goroutines for testing and the demo
// CLI, a slot is instead leased for the duration of the pin so that no two
// goroutines ever believe they are the same logical CPU at once.
var registry cpuRegistry

func (r *cpuRegistry) ensureSlots() chan int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots == nil {
		n := r.configured
		if n == 0 {
			n = runtime.NumCPU()
		}
		slots := make(chan int, n)
		for i := 0; i < n; i++ {
			slots <- i
		}
		r.slots = slots
	}
	return r.slots
}

// Pin represents a scoped claim that the calling goroutine is the only one
// running as the logical CPU returned by ID, until Release is called.
type Pin struct {
	id      int
	restore func()
	done    bool
}

// ID returns the logical CPU number this pin claims.
func (p *Pin) ID() int { return p.id }

// Release returns the logical CPU id to the pool. It is safe to call
// Release more than once; only the first call has an effect, which makes it
// safe to pair with defer on every exit path including error returns.
func (p *Pin) Release() {
	if p == nil || p.done {
		return
	}
	p.done = true
	p.restore()
	runtime.UnlockOSThread()
	registry.ensureSlots() <- p.id
}

// PinSelf pins the calling goroutine to a logical CPU for the duration of a
// per-CPU cache operation and returns a Pin whose Release the caller must
// call on every exit path. PinSelf blocks until a logical CPU becomes available,
// mirroring how a real kernel's current CPU is always available but never
// shared with another task mid-operation.
func PinSelf() *Pin {
	runtime.LockOSThread()
	id := <-registry.ensureSlots()
	return &Pin{id: id, restore: narrowAffinity(id)}
}

// reset clears any previously leased slot pool so a later Configure call
// takes effect. Production code configures the CPU count exactly once at
// boot; this is only used by tests that need a specific count per case.
func reset() {
	registry.mu.Lock()
	registry.slots = nil
	registry.mu.Unlock()
}
