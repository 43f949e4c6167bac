// Package typedptr implements Pointer, the universal ref-counted typed-value
// carrier of spec.md §3/§4.2: a payload (data or function), a flags bitset,
// an element layout descriptor, and an optional reference-count handle
// describing who owns the payload.
package typedptr

import (
	"unsafe"

	"github.com/ivanp7/archipelago-sub002/refcount"
)

// Flags is a bitset describing a Pointer's payload. Bits above
// reservedFlagBits are free for user-defined tagging.
type Flags uint32

const (
	// Function marks payload as a function pointer; the data-pointer view
	// is undefined for such a Pointer.
	Function Flags = 1 << iota
	// Writable is advisory: contexts that expose a mapped region may set it
	// to indicate the mapping tolerates writes.
	Writable
)

// reservedFlagBits is the number of low bits reserved by this package;
// callers may freely set any bit at or above this offset.
const reservedFlagBits = 8

// UserFlag returns the Flags bit for user-defined flag index n (0-based),
// placed above the package-reserved range.
func UserFlag(n uint) Flags {
	return 1 << (reservedFlagBits + n)
}

// Layout describes the shape of the elements a Pointer's payload addresses.
type Layout struct {
	// Count is the number of elements.
	Count uintptr
	// Size is the size in bytes of a single element.
	Size uintptr
	// Align is the required alignment of each element; must be 0 (meaning
	// "natural alignment of the widest scalar") or a power of two.
	Align uintptr
}

// Valid reports whether the layout's Align field is legal (0 or a power of
// two).
func (l Layout) Valid() bool {
	return l.Align == 0 || (l.Align&(l.Align-1)) == 0
}

// naturalAlign is the alignment substituted for Layout.Align == 0.
const naturalAlign = unsafe.Sizeof(uint64(0))

// ResolvedAlign returns l.Align, substituting the natural alignment of the
// widest scalar when l.Align is 0.
func (l Layout) ResolvedAlign() uintptr {
	if l.Align == 0 {
		return naturalAlign
	}
	return l.Align
}

// Pointer is the universal typed-value carrier: a payload, its flags, its
// element layout, and an optional shared reference count describing payload
// ownership.
//
// Pointer is a plain value; copying it does not implicitly adjust RefCount.
// Callers that retain a copy beyond the scope that produced it must call
// Increment, and must call Decrement exactly once when done with that copy.
type Pointer struct {
	// Data holds the data-pointer view of payload. Valid only when
	// Flags&Function == 0.
	Data unsafe.Pointer
	// Func holds the function-pointer view of payload. Valid only when
	// Flags&Function != 0. Stored as an opaque value (typically a Go
	// func value boxed in an interface) since Go cannot name a single
	// concrete function-pointer type.
	Func any

	Flags   Flags
	Element Layout

	// RefCount is the optional reference count describing ownership of the
	// payload. May be nil for Pointers that do not own their payload (e.g.
	// values that alias caller-owned memory).
	RefCount *refcount.Handle
}

// IsNull reports whether p is the zero Pointer (all fields zero/nil).
func (p Pointer) IsNull() bool {
	return p.Data == nil && p.Func == nil && p.Flags == 0 &&
		p.Element == Layout{} && p.RefCount == nil
}

// IsFunction reports whether p carries a function-pointer payload.
func (p Pointer) IsFunction() bool {
	return p.Flags&Function != 0
}

// IsWritable reports whether p's Writable advisory flag is set.
func (p Pointer) IsWritable() bool {
	return p.Flags&Writable != 0
}

// HasUserFlag reports whether the user-defined flag at index n is set.
func (p Pointer) HasUserFlag(n uint) bool {
	return p.Flags&UserFlag(n) != 0
}

// Increment increments p's reference count, if any. No-op for a nil
// RefCount, matching refcount's null-handle rule.
func (p Pointer) Increment() {
	p.RefCount.Increment()
}

// Decrement decrements p's reference count, if any.
func (p Pointer) Decrement() {
	p.RefCount.Decrement()
}

// WithRefCount returns a copy of p with RefCount replaced. It does not touch
// either the old or new reference count; callers remain responsible for
// Increment/Decrement bookkeeping.
func (p Pointer) WithRefCount(h *refcount.Handle) Pointer {
	p.RefCount = h
	return p
}

// Data1 wraps a single data pointer of the given byte size as a Pointer with
// a one-element layout, natural alignment, and no Function flag.
func Data1(ptr unsafe.Pointer, size uintptr) Pointer {
	return Pointer{
		Data:    ptr,
		Element: Layout{Count: 1, Size: size},
	}
}

// FuncPointer wraps fn (any Go function value) as a function-flagged
// Pointer.
func FuncPointer(fn any) Pointer {
	return Pointer{
		Func:  fn,
		Flags: Function,
	}
}
