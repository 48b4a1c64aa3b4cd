//go:build !linux

package cpu

// narrowAffinity has no OS-level affinity mechanism to call on non-Linux
// hosts; runtime.LockOSThread (done unconditionally in PinSelf) is the only
// guarantee available there.
func narrowAffinity(id int) (restore func()) {
	return func() {}
}
