package archctx

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanp7/archipelago-sub002/paramlist"
	"github.com/ivanp7/archipelago-sub002/refcount"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

func dataOf[T any](v *T) typedptr.Pointer {
	return typedptr.Data1(unsafe.Pointer(v), unsafe.Sizeof(*v))
}

func TestMemoryInterfaceAllocAct(t *testing.T) {
	c, code := Initialize(MemoryInterface, refcount.Alloc(nil, nil), paramlist.List{})
	require.True(t, code.IsSuccess())
	defer c.Finalize()

	count := uintptr(4)
	size := uintptr(8)
	params := paramlist.List{}.
		Prepend("count", dataOf(&count)).
		Prepend("size", dataOf(&size))

	actCode := c.Act("alloc", nil, params)
	assert.True(t, actCode.IsSuccess())

	region, getCode := c.GetSlot(Slot{Indices: []uintptr{0}})
	require.True(t, getCode.IsSuccess())
	assert.False(t, region.IsNull())
	assert.Equal(t, count, region.Element.Count)
	assert.Equal(t, size, region.Element.Size)

	assert.True(t, c.Act("free", nil, paramlist.List{}).IsError())

	freeCode := c.Act("free", []uintptr{0}, paramlist.List{})
	assert.True(t, freeCode.IsSuccess())

	_, getCode = c.GetSlot(Slot{Indices: []uintptr{0}})
	assert.True(t, getCode.IsError())
}

func TestMemoryMappingInterface(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "mapping-*")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(4096))

	fd := int(f.Fd())
	length := uintptr(4096)
	params := paramlist.List{}.
		Prepend("fd", dataOf(&fd)).
		Prepend("length", dataOf(&length))

	c, code := Initialize(MemoryMappingInterface, refcount.Alloc(nil, nil), params)
	require.True(t, code.IsSuccess())

	assert.False(t, c.Public().IsNull())
	c.Finalize()
}
