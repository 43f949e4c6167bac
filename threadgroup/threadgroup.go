// Package threadgroup implements the fixed-size worker pool of spec.md
// §3/§4.5: N workers, a ping/pong flip-flop barrier pair, and a batched
// work-dispatch protocol with a single "finisher" thread per round.
//
// The barrier shape (flag + sense + condvar + mutex, toggled each round) is
// the textbook sense-reversing barrier; it is grounded on the teacher's
// FastState/tick() wakeup pattern (loop.go) generalised from a single
// waiter to N.
package threadgroup

import (
	"sync"
	"sync/atomic"

	"github.com/ivanp7/archipelago-sub002/status"
)

// WorkFunc is invoked once per index in [0, Work.Size) with the thread index
// of the worker (or 0 under inline/num_threads==0 execution) that claimed it.
type WorkFunc func(data any, index, threadIdx int)

// CallbackFunc runs once, on the finisher thread, after every index has been
// processed.
type CallbackFunc func(data any)

// Work describes one dispatch round.
type Work struct {
	Fn   WorkFunc
	Data any
	Size int
}

// Callback optionally runs on the finisher thread instead of waking the
// caller.
type Callback struct {
	Fn   CallbackFunc
	Data any
}

// Dispatch is one unit of work handed to Group.Dispatch.
type Dispatch struct {
	Work      Work
	Callback  *Callback
	BatchSize int
}

type barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	flag  bool
	sense bool
}

func newBarrier() *barrier {
	b := &barrier{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Group owns N worker goroutines coordinated by a ping/pong barrier pair, per
// spec.md §4.5. A zero-size Group (NumThreads == 0) runs all dispatches
// inline on the caller.
type Group struct {
	numThreads int
	ping       *barrier
	pong       *barrier

	mu              sync.Mutex // guards dispatch and current/callback bookkeeping
	dispatch        Dispatch
	stopped         bool
	callerPongSense bool

	workItemsDone atomic.Int64
	threadsDone   atomic.Int64

	wg sync.WaitGroup
}

// Start allocates a Group and spawns numThreads workers. numThreads == 0 is
// legal and makes every Dispatch run inline.
func Start(numThreads int) (*Group, status.Code) {
	if numThreads < 0 {
		return nil, status.Make(status.ModuleThreadGroup, status.Misuse)
	}
	g := &Group{
		numThreads: numThreads,
		ping:       newBarrier(),
		pong:       newBarrier(),
	}
	if numThreads == 0 {
		return g, status.Success
	}
	g.wg.Add(numThreads)
	for i := 0; i < numThreads; i++ {
		go g.workerLoop(i)
	}
	return g, status.Success
}

// Stop broadcasts a stop sentinel (a Dispatch with a nil Work.Fn) on ping and
// waits for every worker to observe it and return. Stop is idempotent; a
// zero-thread Group's Stop is a no-op.
func (g *Group) Stop() status.Code {
	if g == nil {
		return status.Make(status.ModuleThreadGroup, status.Misuse)
	}
	if g.numThreads == 0 {
		return status.Success
	}

	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return status.Success
	}
	g.stopped = true
	g.mu.Unlock()

	g.ping.mu.Lock()
	g.dispatch = Dispatch{}
	g.ping.sense = !g.ping.sense
	g.ping.flag = g.ping.sense
	g.ping.cond.Broadcast()
	g.ping.mu.Unlock()

	g.wg.Wait()
	return status.Success
}

func (g *Group) workerLoop(threadIdx int) {
	defer g.wg.Done()
	localPingSense := false
	for {
		g.ping.mu.Lock()
		localPingSense = !localPingSense
		for g.ping.flag != localPingSense {
			g.ping.cond.Wait()
		}
		d := g.dispatch
		g.ping.mu.Unlock()

		if d.Work.Fn == nil {
			return
		}

		batchSize := d.BatchSize
		if batchSize <= 0 {
			batchSize = ceilDiv(d.Work.Size, g.numThreads)
			if batchSize <= 0 {
				batchSize = 1
			}
		}

		for {
			start := int(g.workItemsDone.Add(int64(batchSize))) - batchSize
			if start >= d.Work.Size {
				break
			}
			end := start + batchSize
			if end > d.Work.Size {
				end = d.Work.Size
			}
			for i := start; i < end; i++ {
				d.Work.Fn(d.Work.Data, i, threadIdx)
			}
		}

		if g.threadsDone.Add(1) == int64(g.numThreads) {
			// Finisher: an acquire-fence-equivalent happens automatically
			// because threadsDone's own CAS already synchronises with every
			// prior release from the other workers' fetch-adds.
			if d.Callback != nil {
				d.Callback.Fn(d.Callback.Data)
			} else {
				g.pong.mu.Lock()
				g.pong.sense = !g.pong.sense
				g.pong.flag = g.pong.sense
				g.pong.cond.Broadcast()
				g.pong.mu.Unlock()
			}
		}
	}
}

// Dispatch runs d.Work.Fn over [0, d.Work.Size), batched, across the group's
// workers, then runs d.Callback (if set) or blocks until the round
// completes. work.Size == 0 is a no-op success. Returns MISUSE if
// d.Work.Fn is nil.
func (g *Group) Dispatch(d Dispatch) status.Code {
	if g == nil {
		return status.Make(status.ModuleThreadGroup, status.Misuse)
	}
	if d.Work.Fn == nil {
		return status.Make(status.ModuleThreadGroup, status.Misuse)
	}
	if d.Work.Size == 0 {
		if d.Callback != nil {
			d.Callback.Fn(d.Callback.Data)
		}
		return status.Success
	}

	if g.numThreads == 0 {
		for i := 0; i < d.Work.Size; i++ {
			d.Work.Fn(d.Work.Data, i, 0)
		}
		if d.Callback != nil {
			d.Callback.Fn(d.Callback.Data)
		}
		return status.Success
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.workItemsDone.Store(0)
	g.threadsDone.Store(0)

	g.ping.mu.Lock()
	g.dispatch = d
	g.ping.sense = !g.ping.sense
	g.ping.flag = g.ping.sense
	g.ping.cond.Broadcast()
	g.ping.mu.Unlock()

	if d.Callback != nil {
		return status.Success
	}

	g.pong.mu.Lock()
	g.callerPongSense = !g.callerPongSense
	local := g.callerPongSense
	for g.pong.flag != local {
		g.pong.cond.Wait()
	}
	g.pong.mu.Unlock()
	return status.Success
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
