package lfqueue

import (
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanp7/archipelago-sub002/typedptr"
)

func ptrOf(v int64) typedptr.Pointer {
	x := v
	return typedptr.Data1(unsafe.Pointer(&x), unsafe.Sizeof(x))
}

func valOf(p typedptr.Pointer) int64 { return *(*int64)(p.Data) }

func TestNewRejectsBadCapacity(t *testing.T) {
	_, code := New(0, false)
	assert.True(t, code.IsError())

	_, code = New(MaxCapacityLog2Large+1, false)
	assert.True(t, code.IsError())
}

func TestPushPopFIFO(t *testing.T) {
	q, code := New(4, false)
	require.True(t, code.IsSuccess())

	for i := int64(0); i < 10; i++ {
		require.True(t, q.Push(ptrOf(i)).IsSuccess())
	}
	for i := int64(0); i < 10; i++ {
		v, code := q.Pop()
		require.True(t, code.IsSuccess())
		assert.Equal(t, i, valOf(v))
	}
}

func TestPushPopOrderWithinCapacity(t *testing.T) {
	q, _ := New(4, false)
	require.True(t, q.Push(ptrOf(1)).IsSuccess())
	require.True(t, q.Push(ptrOf(2)).IsSuccess())
	require.True(t, q.Push(ptrOf(3)).IsSuccess())

	v, code := q.Pop()
	require.True(t, code.IsSuccess())
	assert.Equal(t, int64(1), valOf(v))

	v, code = q.Pop()
	require.True(t, code.IsSuccess())
	assert.Equal(t, int64(2), valOf(v))
}

func TestPopEmptyIsKeyMissing(t *testing.T) {
	q, _ := New(2, false)
	_, code := q.Pop()
	assert.Equal(t, 0, int(code.Module()))
	assert.True(t, code.IsCondition())
}

func TestPushFullIsResourceError(t *testing.T) {
	q, _ := New(1, false) // capacity 2
	require.True(t, q.Push(ptrOf(1)).IsSuccess())
	require.True(t, q.Push(ptrOf(2)).IsSuccess())

	code := q.Push(ptrOf(3))
	assert.True(t, code.IsError())
}

func TestCapacity(t *testing.T) {
	q, _ := New(5, false)
	assert.Equal(t, uint64(32), q.Capacity())
}

func TestCountingOnlyModeDropsPayload(t *testing.T) {
	q, _ := New(2, true)
	require.True(t, q.CountingOnly())

	require.True(t, q.Push(ptrOf(99)).IsSuccess())
	v, code := q.Pop()
	require.True(t, code.IsSuccess())
	assert.True(t, v.IsNull())
}

// TestConcurrentPingPong mirrors spec.md's queue ping-pong scenario: one
// goroutine pushes 10,000 sequential values while another pops them,
// confirming FIFO order is preserved even though both sides race the ring.
func TestConcurrentPingPong(t *testing.T) {
	const n = 10000
	q, _ := New(8, false) // small capacity forces backpressure both ways

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := int64(0); i < n; i++ {
			for !q.Push(ptrOf(i)).IsSuccess() {
				// full; spin until the consumer drains a slot
			}
		}
	}()

	var mismatches int32
	go func() {
		defer wg.Done()
		for i := int64(0); i < n; i++ {
			var v typedptr.Pointer
			for {
				popped, code := q.Pop()
				if code.IsSuccess() {
					v = popped
					break
				}
			}
			if valOf(v) != i {
				atomic.AddInt32(&mismatches, 1)
			}
		}
	}()

	wg.Wait()
	assert.Equal(t, int32(0), mismatches)
}

// TestConcurrentMultiProducerMultiConsumer exercises the true MPMC path: 4
// producers and 4 consumers racing the same ring, checked only for total
// accounting (every pushed value popped exactly once) since cross-producer
// ordering is not guaranteed.
func TestConcurrentMultiProducerMultiConsumer(t *testing.T) {
	const (
		producers   = 4
		perProducer = 2000
		total       = producers * perProducer
	)
	q, _ := New(10, false)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < perProducer; i++ {
				for !q.Push(ptrOf(base + i)).IsSuccess() {
				}
			}
		}(int64(p * perProducer))
	}

	var popped int64
	done := make(chan struct{})
	var consumerWG sync.WaitGroup
	consumerWG.Add(producers)
	for c := 0; c < producers; c++ {
		go func() {
			defer consumerWG.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if _, code := q.Pop(); code.IsSuccess() {
					atomic.AddInt64(&popped, 1)
				}
			}
		}()
	}

	wg.Wait()
	for atomic.LoadInt64(&popped) < total {
	}
	close(done)
	consumerWG.Wait()

	assert.Equal(t, int64(total), atomic.LoadInt64(&popped))
}
