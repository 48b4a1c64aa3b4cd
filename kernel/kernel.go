// Package kernel contains the types and helpers shared by every subsystem
// of the page allocator. It exists (instead of folding its contents into
// one of the leaf packages) because the error type and the memory-copy
// primitives below are needed by almost every other package, including
// ones that must not import each other.
package kernel

import (
	"unsafe"
)

// Error describes a kernel error. Kernel errors are defined as global
// variables that are pointers to Error so that raising one never calls into
// the Go allocator; several of the call sites in this repository run before
// a page allocator exists to service errors.New/fmt.Errorf.
type Error struct {
	// Module names the subsystem that raised the error.
	Module string

	// Message describes what went wrong.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "[" + e.Module + "] " + e.Message
}

// Memset sets size bytes starting at addr to value, taking a raw address
// rather than a Go slice over the destination.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	target[0] = value
	for index := uintptr(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// Memcopy copies size bytes from src to dst.
func Memcopy(src, dst uintptr, size uintptr) {
	if size == 0 {
		return
	}

	srcSlice := unsafe.Slice((*byte)(unsafe.Pointer(src)), size)
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstSlice, srcSlice)
}
