package klog

import "pgalloc/kernel"

// haltFn is overridden by tests so that Fatalf does not actually stop the
// process; in a freestanding build it is wired to cpu.Halt.
var haltFn = func() {}

// SetHaltFunc installs the function invoked after a Fatalf message has been
// printed. The boot package wires this to cpu.Halt; tests wire it to a
// function that records the call instead of halting the test binary.
func SetHaltFunc(fn func()) {
	haltFn = fn
}

// Fatalf prints err (boot-tier failures always carry a *kernel.Error so the
// message can be built without a new allocation) and then halts, matching
// the "panic with a fixed message" requirement for unrecoverable boot
// failures.
func Fatalf(err *kernel.Error) {
	Printf("\n-----------------------------------\n")
	Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	Printf("*** page allocator halted ***\n")
	Printf("-----------------------------------\n")
	haltFn()
}
