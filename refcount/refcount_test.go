package refcount

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocInitialCount(t *testing.T) {
	h := Alloc(nil, "payload")
	assert.Equal(t, int64(1), h.Count())
	assert.Equal(t, "payload", h.Data())
}

func TestDestructorRunsExactlyOnce(t *testing.T) {
	var runs int32
	h := Alloc(func(data any) {
		atomic.AddInt32(&runs, 1)
	}, nil)

	h.Increment()
	h.Increment()
	require.Equal(t, int64(3), h.Count())

	h.Decrement()
	h.Decrement()
	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))

	h.Decrement()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Equal(t, int64(0), h.Count())
}

func TestNilHandleIsNoOp(t *testing.T) {
	var h *Handle
	assert.NotPanics(t, func() {
		h.Increment()
		h.Decrement()
	})
	assert.Equal(t, int64(0), h.Count())
	assert.Nil(t, h.Data())
}

func TestConcurrentDecrement(t *testing.T) {
	var runs int32
	h := Alloc(func(any) { atomic.AddInt32(&runs, 1) }, nil)

	const n = 1000
	h.count.Add(n) // pre-account for n extra long-lived references

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Decrement()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&runs))
	assert.Equal(t, int64(1), h.Count())

	h.Decrement()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}
