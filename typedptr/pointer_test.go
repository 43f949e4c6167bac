package typedptr

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/ivanp7/archipelago-sub002/refcount"
)

func TestNullPointer(t *testing.T) {
	var p Pointer
	assert.True(t, p.IsNull())
	assert.False(t, p.IsFunction())
	assert.False(t, p.IsWritable())
}

func TestData1NotNull(t *testing.T) {
	var x int64 = 42
	p := Data1(unsafe.Pointer(&x), unsafe.Sizeof(x))
	assert.False(t, p.IsNull())
	assert.Equal(t, uintptr(1), p.Element.Count)
	assert.Equal(t, unsafe.Sizeof(x), p.Element.Size)
	assert.Equal(t, int64(42), *(*int64)(p.Data))
}

func TestFuncPointer(t *testing.T) {
	called := false
	p := FuncPointer(func() { called = true })
	assert.True(t, p.IsFunction())
	fn, ok := p.Func.(func())
	assert.True(t, ok)
	fn()
	assert.True(t, called)
}

func TestLayoutValid(t *testing.T) {
	assert.True(t, Layout{Align: 0}.Valid())
	assert.True(t, Layout{Align: 1}.Valid())
	assert.True(t, Layout{Align: 16}.Valid())
	assert.False(t, Layout{Align: 3}.Valid())
	assert.False(t, Layout{Align: 6}.Valid())
}

func TestResolvedAlign(t *testing.T) {
	assert.Equal(t, naturalAlign, Layout{}.ResolvedAlign())
	assert.Equal(t, uintptr(32), Layout{Align: 32}.ResolvedAlign())
}

func TestUserFlagsDoNotCollideWithReserved(t *testing.T) {
	assert.NotEqual(t, Function, UserFlag(0))
	assert.NotEqual(t, Writable, UserFlag(0))
	assert.NotEqual(t, UserFlag(0), UserFlag(1))
}

func TestRefCountWiring(t *testing.T) {
	var freed bool
	h := refcount.Alloc(func(any) { freed = true }, nil)
	p := Pointer{RefCount: h}

	p.Increment()
	assert.Equal(t, int64(2), h.Count())

	p.Decrement()
	p.Decrement()
	assert.True(t, freed)
}

func TestWithRefCountDoesNotTouchCounts(t *testing.T) {
	h1 := refcount.Alloc(nil, "a")
	h2 := refcount.Alloc(nil, "b")
	p := Pointer{RefCount: h1}
	p2 := p.WithRefCount(h2)

	assert.Equal(t, int64(1), h1.Count())
	assert.Equal(t, int64(1), h2.Count())
	assert.Same(t, h2, p2.RefCount)
}

func TestHasUserFlag(t *testing.T) {
	p := Pointer{Flags: UserFlag(2)}
	assert.True(t, p.HasUserFlag(2))
	assert.False(t, p.HasUserFlag(0))
}
