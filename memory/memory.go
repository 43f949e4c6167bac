// Package memory implements the allocator v-table of spec.md §3/§4.4: a
// small interface of alloc/free/map/unmap operations that every other
// component goes through to acquire and release backing storage, plus a
// heap-backed implementation of it.
//
// The contract every Allocator implementation must uphold: a call returns a
// non-nil info value if and only if its returned status is non-negative
// (status.Success or a positive condition). A negative (error) status always
// pairs with a nil info.
package memory

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ivanp7/archipelago-sub002/refcount"
	"github.com/ivanp7/archipelago-sub002/status"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

// refCountFor builds the single-owner refcount.Handle attached to a freshly
// allocated or mapped region; its destructor drops the Go-side reference
// (for Heap) or is otherwise a no-op, since Unmap already released the OS
// mapping by the time the count reaches zero.
func refCountFor(handle any) *refcount.Handle {
	return refcount.Alloc(func(data any) {
		if hh, ok := data.(*heapHandle); ok {
			hh.buf = nil
		}
	}, handle)
}

// Info describes a region handed out by an Allocator: the typed pointer
// view of it, and an opaque handle the same Allocator needs back to free or
// unmap it.
type Info struct {
	Pointer typedptr.Pointer
	handle  any
}

// Allocator is the v-table every memory-owning component (contexts,
// registries, the input loader) allocates through. Implementations must
// honour the package's non-nil-info-iff-non-negative-status contract.
type Allocator interface {
	// Alloc reserves a heap region sized for layout and returns it tagged
	// with a fresh refcount.Handle whose destructor frees it.
	Alloc(layout typedptr.Layout) (*Info, status.Code)
	// Free releases a region previously returned by Alloc. Passing an Info
	// not obtained from this Allocator is a misuse.
	Free(info *Info) status.Code
	// Map exposes an externally-backed region (e.g. a file) as a Pointer,
	// tagged writable per the writable argument.
	Map(fd int, offset int64, length uintptr, writable bool) (*Info, status.Code)
	// Unmap releases a region previously returned by Map.
	Unmap(info *Info) status.Code
}

// Heap is the default Allocator: Alloc/Free use Go-managed memory (so
// "freeing" is really just dropping the last reference for the GC), and
// Map/Unmap shell out to mmap/munmap for file-backed regions.
type Heap struct{}

// NewHeap constructs the default heap-backed Allocator.
func NewHeap() Heap { return Heap{} }

type heapHandle struct {
	buf []byte
}

// Alloc implements Allocator.
func (Heap) Alloc(layout typedptr.Layout) (*Info, status.Code) {
	if !layout.Valid() {
		return nil, status.Make(status.ModuleMemory, status.ValueErr)
	}
	total := layout.Count * layout.Size
	if total == 0 {
		return nil, status.Make(status.ModuleMemory, status.Misuse)
	}
	buf := make([]byte, total)
	hh := &heapHandle{buf: buf}
	ptr := typedptr.Pointer{
		Data:    unsafe.Pointer(unsafe.SliceData(buf)),
		Element: layout,
	}
	ptr = ptr.WithRefCount(refCountFor(hh))
	return &Info{Pointer: ptr, handle: hh}, status.Success
}

// Free implements Allocator.
func (Heap) Free(info *Info) status.Code {
	if info == nil {
		return status.Make(status.ModuleMemory, status.Misuse)
	}
	if _, ok := info.handle.(*heapHandle); !ok {
		return status.Make(status.ModuleMemory, status.Misuse)
	}
	info.Pointer.Decrement()
	return status.Success
}

type mmapHandle struct {
	data []byte
}

// Map implements Allocator using golang.org/x/sys/unix.Mmap, the same
// primitive the input loader's memory-mapped file header relies on.
func (Heap) Map(fd int, offset int64, length uintptr, writable bool) (*Info, status.Code) {
	if length == 0 {
		return nil, status.Make(status.ModuleMemory, status.Misuse)
	}
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(fd, offset, int(length), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, status.Make(status.ModuleMemory, status.Resource)
	}
	mh := &mmapHandle{data: data}
	flags := typedptr.Flags(0)
	if writable {
		flags |= typedptr.Writable
	}
	ptr := typedptr.Pointer{
		Data:    unsafe.Pointer(unsafe.SliceData(data)),
		Element: typedptr.Layout{Count: 1, Size: length},
		Flags:   flags,
	}
	ptr = ptr.WithRefCount(refCountFor(mh))
	return &Info{Pointer: ptr, handle: mh}, status.Success
}

// Unmap implements Allocator.
func (Heap) Unmap(info *Info) status.Code {
	if info == nil {
		return status.Make(status.ModuleMemory, status.Misuse)
	}
	mh, ok := info.handle.(*mmapHandle)
	if !ok {
		return status.Make(status.ModuleMemory, status.Misuse)
	}
	if err := unix.Munmap(mh.data); err != nil {
		return status.Make(status.ModuleMemory, status.Resource)
	}
	info.Pointer.Decrement()
	return status.Success
}
