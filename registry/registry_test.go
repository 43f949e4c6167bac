package registry

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanp7/archipelago-sub002/archctx"
	"github.com/ivanp7/archipelago-sub002/paramlist"
	"github.com/ivanp7/archipelago-sub002/status"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

func intPointer(v int64) typedptr.Pointer {
	x := v
	return typedptr.Data1(unsafe.Pointer(&x), unsafe.Sizeof(x))
}

func intVal(p typedptr.Pointer) int64 { return *(*int64)(p.Data) }

func TestInitPointerGetDelete(t *testing.T) {
	r := New()

	code := r.InitPointer("answer", intPointer(42))
	require.True(t, code.IsSuccess())

	v, code := r.Get("answer")
	require.True(t, code.IsSuccess())
	assert.Equal(t, int64(42), intVal(v))

	code = r.Delete("answer")
	assert.True(t, code.IsSuccess())

	_, code = r.Get("answer")
	assert.Equal(t, status.KeyMissing, code)
}

func TestInitKeyExists(t *testing.T) {
	r := New()
	require.True(t, r.InitPointer("x", intPointer(1)).IsSuccess())

	code := r.InitPointer("x", intPointer(2))
	assert.Equal(t, status.KeyExists, code)
}

func TestDeleteMissingKey(t *testing.T) {
	r := New()
	code := r.Delete("nope")
	assert.Equal(t, status.KeyMissing, code)
}

func TestCopy(t *testing.T) {
	r := New()
	require.True(t, r.InitPointer("a", intPointer(7)).IsSuccess())

	code := r.Copy("b", "a")
	require.True(t, code.IsSuccess())

	v, _ := r.Get("b")
	assert.Equal(t, int64(7), intVal(v))

	code = r.Copy("b", "a")
	assert.Equal(t, status.KeyExists, code)

	code = r.Copy("c", "missing")
	assert.Equal(t, status.KeyMissing, code)
}

// TestCopyIndependentTeardown guards against a double-Finalize of the
// shared underlying *archctx.Context: "a" and "b" name the same context, so
// Teardown must release each name's own share rather than running Final
// twice (or decrementing the shared ref count past zero on the second
// name).
func TestCopyIndependentTeardown(t *testing.T) {
	r := New()
	var finalCalls int
	iface := archctx.Interface{
		Init: func(paramlist.List) (typedptr.Pointer, typedptr.Pointer, status.Code) {
			return typedptr.Pointer{}, typedptr.Pointer{}, status.Success
		},
		Final: func(typedptr.Pointer, typedptr.Pointer) { finalCalls++ },
	}
	c, code := archctx.Initialize(iface, nil, paramlist.List{})
	require.True(t, code.IsSuccess())
	require.True(t, r.insert("orig", c).IsSuccess())
	require.True(t, r.Copy("alias", "orig").IsSuccess())

	r.Teardown()
	assert.Equal(t, 1, finalCalls)
}

func TestInitParametersAndSetToValue(t *testing.T) {
	r := New()
	params := paramlist.List{}.Prepend("count", intPointer(3))
	require.True(t, r.InitParameters("cfg", params).IsSuccess())

	require.True(t, r.InitArray("arr", 4, 0).IsSuccess())

	code := r.SetToValue("arr", archctx.Slot{Indices: []uintptr{0}}, intPointer(9))
	require.True(t, code.IsSuccess())
}

func TestSetToContextDataAndSlot(t *testing.T) {
	r := New()
	require.True(t, r.InitPointer("src", intPointer(5)).IsSuccess())
	require.True(t, r.InitArray("dst", 2, 0).IsSuccess())

	code := r.SetToContextSlot("dst", archctx.Slot{Indices: []uintptr{0}}, "src", archctx.Slot{})
	require.True(t, code.IsSuccess())

	c, _ := r.Context("dst")
	v, _ := c.GetSlot(archctx.Slot{Indices: []uintptr{0}})
	assert.Equal(t, int64(5), intVal(v))

	code = r.SetToContextData("dst", "src", archctx.Slot{Indices: []uintptr{1}})
	require.True(t, code.IsSuccess())

	v, _ = c.GetSlot(archctx.Slot{Indices: []uintptr{1}})
	assert.Equal(t, int64(5), intVal(v))
}

func TestSetToContextSlotMissingKeys(t *testing.T) {
	r := New()
	code := r.SetToContextSlot("dst", archctx.Slot{}, "src", archctx.Slot{})
	assert.Equal(t, status.KeyMissing, code)
}

func TestTeardownReverseOrder(t *testing.T) {
	r := New()
	var order []string
	mk := func(name string) archctx.Interface {
		return archctx.Interface{
			Init: func(paramlist.List) (typedptr.Pointer, typedptr.Pointer, status.Code) {
				return typedptr.Pointer{}, typedptr.Pointer{}, status.Success
			},
			Final: func(typedptr.Pointer, typedptr.Pointer) { order = append(order, name) },
		}
	}

	for _, name := range []string{"a", "b", "c"} {
		c, code := archctx.Initialize(mk(name), nil, paramlist.List{})
		require.True(t, code.IsSuccess())
		require.True(t, r.insert(name, c).IsSuccess())
	}

	r.Teardown()
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestActForwardsToContext(t *testing.T) {
	r := New()
	var gotAction string
	iface := archctx.Interface{
		Init: func(paramlist.List) (typedptr.Pointer, typedptr.Pointer, status.Code) {
			return typedptr.Pointer{}, typedptr.Pointer{}, status.Success
		},
		Act: func(_, _ typedptr.Pointer, action string, _ []uintptr, _ paramlist.List) status.Code {
			gotAction = action
			return status.Success
		},
	}
	c, code := archctx.Initialize(iface, nil, paramlist.List{})
	require.True(t, code.IsSuccess())
	require.True(t, r.insert("svc", c).IsSuccess())

	code = r.Act("svc", "ping", paramlist.List{})
	require.True(t, code.IsSuccess())
	assert.Equal(t, "ping", gotAction)

	code = r.Act("missing", "ping", paramlist.List{})
	assert.Equal(t, status.KeyMissing, code)
}
