// Package lfqueue implements the lock-free bounded MPMC queue of spec.md
// §3/§4.5: a power-of-two-capacity ring buffer where any number of producer
// and consumer goroutines may call Push/Pop concurrently, neither call ever
// blocks, and the queue is linearisable.
//
// The algorithm is Dmitry Vyukov's bounded MPMC queue: each slot carries its
// own sequence number, and a producer/consumer only claims a slot once that
// slot's sequence confirms it is the claimant's turn. It is grounded on the
// teacher's MicrotaskRing (a single-producer ring keyed the same way), here
// generalised so both Push and Pop CAS their own cursor instead of assuming
// a single writer.
package lfqueue

import (
	"sync/atomic"

	"github.com/ivanp7/archipelago-sub002/status"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

// MaxCapacityLog2 is the largest capacity exponent accepted without large
// queue mode; New still accepts exponents up to MaxCapacityLog2Large, per
// spec.md's "large queue mode", with the same atomic.Uint64 slot sequence
// for both ranges.
const (
	MaxCapacityLog2      = 16
	MaxCapacityLog2Large = 32
)

type slot struct {
	// seq is the slot's turn marker: a slot is ready for a producer when
	// seq == index, and ready for a consumer when seq == index+1.
	seq   atomic.Uint64
	value typedptr.Pointer
}

// Queue is a bounded, lock-free, multi-producer multi-consumer ring buffer
// of typedptr.Pointer values.
//
// A Queue constructed with countingOnly set (see CountingOnly) drops
// the payload and behaves as a pure capacity-counting queue: Push/Pop still
// enforce the bounded-slot protocol but move no data, matching spec.md's
// "zero-element-size counting-only mode".
type Queue struct {
	mask         uint64
	countingOnly bool
	slots        []slot

	// head and tail are hot under independent goroutine sets (consumers,
	// producers); padding keeps their cache lines from bouncing between
	// cores the way a single false-shared line would.
	head atomic.Uint64
	_    [7]uint64 // betteralign:ignore
	tail atomic.Uint64
	_    [7]uint64 // betteralign:ignore
}

// New constructs a Queue with 2^capacityLog2 slots. capacityLog2 must be in
// [1, MaxCapacityLog2Large]; values above MaxCapacityLog2 put the queue in
// "large queue mode" per spec.md, which in this implementation only affects
// the documented capacity ceiling since Go's atomic.Uint64 already spans the
// full range.
func New(capacityLog2 uint, countingOnly bool) (*Queue, status.Code) {
	if capacityLog2 == 0 || capacityLog2 > MaxCapacityLog2Large {
		return nil, status.Make(status.ModuleQueue, status.Misuse)
	}
	capacity := uint64(1) << capacityLog2
	q := &Queue{
		mask:         capacity - 1,
		countingOnly: countingOnly,
		slots:        make([]slot, capacity),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q, status.Success
}

// Capacity returns the number of slots in q.
func (q *Queue) Capacity() uint64 { return q.mask + 1 }

// CountingOnly reports whether q discards payloads (spec.md's
// zero-element-size mode).
func (q *Queue) CountingOnly() bool { return q.countingOnly }

// Push enqueues value. Returns status.Make(ModuleQueue, Resource) if the
// queue is full; never blocks.
func (q *Queue) Push(value typedptr.Pointer) status.Code {
	var s *slot
	pos := q.tail.Load()
	for {
		s = &q.slots[pos&q.mask]
		seq := s.seq.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				goto claimed
			}
			pos = q.tail.Load()
		case diff < 0:
			return status.Make(status.ModuleQueue, status.Resource)
		default:
			pos = q.tail.Load()
		}
	}
claimed:
	if !q.countingOnly {
		s.value = value
	}
	s.seq.Store(pos + 1)
	return status.Success
}

// Pop dequeues the oldest value. Returns status.KeyMissing (a positive
// condition, not an error) if the queue is empty; never blocks.
func (q *Queue) Pop() (typedptr.Pointer, status.Code) {
	var s *slot
	pos := q.head.Load()
	for {
		s = &q.slots[pos&q.mask]
		seq := s.seq.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				goto claimed
			}
			pos = q.head.Load()
		case diff < 0:
			return typedptr.Pointer{}, status.KeyMissing
		default:
			pos = q.head.Load()
		}
	}
claimed:
	var value typedptr.Pointer
	if !q.countingOnly {
		value = s.value
		s.value = typedptr.Pointer{}
	}
	s.seq.Store(pos + q.mask + 1)
	return value, status.Success
}
