//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// narrowAffinity additionally restricts the calling OS thread to a single
// hardware CPU for the duration of the pin, on top of the goroutine-level
// slot leased by PinSelf. This is belt-and-suspenders on a hosted Linux
// build: it cannot simulate true per-CPU hardware state, but it does stop
// the Go scheduler from migrating the locked OS thread mid-operation, which
// is the property PinSelf is trying to approximate in the absence of real
// per-CPU registers.
func narrowAffinity(id int) (restore func()) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return func() {}
	}

	hw := id % runtime.NumCPU()
	var want unix.CPUSet
	want.Zero()
	want.Set(hw)
	if unix.SchedSetaffinity(0, &want) != nil {
		return func() {}
	}

	return func() {
		unix.SchedSetaffinity(0, &prev)
	}
}
