// Package appsignal implements the signal facet of spec.md §4.10's "Logging
// & signal facade" component: a dedicated goroutine spawned before any
// thread-group workers exist, watching a fixed POSIX signal set, dispatching
// each received signal to a swappable handler, and recording delivery in a
// shared Flags struct of atomic booleans.
//
// Grounded on spec.md §9's redesign note ("POSIX-signal thread → dedicated
// blocking thread + atomic flags") and original_source/include/archi/
// ipc_signal/api/signal.typ.h for the exact watched-signal groupings and the
// "flags start clear, are set on delivery, and are reset by user code to
// catch the same signal again" contract. golang.org/x/sys/unix supplies the
// real-time signal range (SIGRTMIN/SIGRTMAX), the same package the teacher
// already depends on for its own OS-level plumbing.
package appsignal

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// WatchSet selects which signals a Facade watches, grouped exactly as
// original_source/include/archi/ipc_signal/api/signal.typ.h groups them.
// A zero-value WatchSet watches nothing.
type WatchSet struct {
	// Interruption events.
	SIGINT, SIGQUIT, SIGTERM bool
	// Process events.
	SIGCHLD, SIGCONT, SIGTSTP bool
	// Limit-exceeding events.
	SIGXCPU, SIGXFSZ bool
	// I/O events.
	SIGPIPE, SIGPOLL, SIGURG bool
	// Timer events.
	SIGALRM, SIGVTALRM, SIGPROF bool
	// Terminal events.
	SIGHUP, SIGTTIN, SIGTTOU, SIGWINCH bool
	// User-defined events.
	SIGUSR1, SIGUSR2 bool
	// RealTime watches SIGRTMIN+i for every i in [0, len(RealTime)) with
	// RealTime[i] true.
	RealTime []bool
}

// All returns a WatchSet watching every signal group of spec.md §4.10,
// including the full real-time range.
func All() WatchSet {
	n := numRTSignals()
	rt := make([]bool, n)
	for i := range rt {
		rt[i] = true
	}
	return WatchSet{
		SIGINT: true, SIGQUIT: true, SIGTERM: true,
		SIGCHLD: true, SIGCONT: true, SIGTSTP: true,
		SIGXCPU: true, SIGXFSZ: true,
		SIGPIPE: true, SIGPOLL: true, SIGURG: true,
		SIGALRM: true, SIGVTALRM: true, SIGPROF: true,
		SIGHUP: true, SIGTTIN: true, SIGTTOU: true, SIGWINCH: true,
		SIGUSR1: true, SIGUSR2: true,
		RealTime: rt,
	}
}

func numRTSignals() int {
	n := int(unix.SIGRTMAX() - unix.SIGRTMIN() + 1)
	if n < 0 {
		return 0
	}
	return n
}

// signals returns the concrete os/signal-watchable list for ws, in group
// order.
func (ws WatchSet) signals() []os.Signal {
	var sigs []os.Signal
	add := func(watch bool, s os.Signal) {
		if watch {
			sigs = append(sigs, s)
		}
	}
	add(ws.SIGINT, syscall.SIGINT)
	add(ws.SIGQUIT, syscall.SIGQUIT)
	add(ws.SIGTERM, syscall.SIGTERM)
	add(ws.SIGCHLD, syscall.SIGCHLD)
	add(ws.SIGCONT, syscall.SIGCONT)
	add(ws.SIGTSTP, syscall.SIGTSTP)
	add(ws.SIGXCPU, syscall.SIGXCPU)
	add(ws.SIGXFSZ, syscall.SIGXFSZ)
	add(ws.SIGPIPE, syscall.SIGPIPE)
	add(ws.SIGPOLL, syscall.SIGIO) // SIGPOLL/SIGIO alias on Linux
	add(ws.SIGURG, syscall.SIGURG)
	add(ws.SIGALRM, syscall.SIGALRM)
	add(ws.SIGVTALRM, syscall.SIGVTALRM)
	add(ws.SIGPROF, syscall.SIGPROF)
	add(ws.SIGHUP, syscall.SIGHUP)
	add(ws.SIGTTIN, syscall.SIGTTIN)
	add(ws.SIGTTOU, syscall.SIGTTOU)
	add(ws.SIGWINCH, syscall.SIGWINCH)
	add(ws.SIGUSR1, syscall.SIGUSR1)
	add(ws.SIGUSR2, syscall.SIGUSR2)
	rtmin := unix.SIGRTMIN()
	for i, watch := range ws.RealTime {
		if watch {
			sigs = append(sigs, syscall.Signal(rtmin+i))
		}
	}
	return sigs
}

// Flag is a single atomic signal-delivery flag: cleared at construction,
// set true on delivery, resettable by user code to observe the signal again.
type Flag struct {
	v atomic.Bool
}

// set marks the signal as delivered.
func (f *Flag) set() { f.v.Store(true) }

// Load reports whether the signal has been delivered since the last Reset.
func (f *Flag) Load() bool { return f.v.Load() }

// Reset clears the flag so a subsequent delivery can be observed again.
func (f *Flag) Reset() { f.v.Store(false) }

// Flags mirrors original_source's archi_signal_flags_t: one Flag per watched
// signal group member, plus a slice of Flags for the real-time range. All
// flags start clear; the Facade's dispatch goroutine is the only writer.
type Flags struct {
	SIGINT, SIGQUIT, SIGTERM           Flag
	SIGCHLD, SIGCONT, SIGTSTP          Flag
	SIGXCPU, SIGXFSZ                   Flag
	SIGPIPE, SIGPOLL, SIGURG           Flag
	SIGALRM, SIGVTALRM, SIGPROF        Flag
	SIGHUP, SIGTTIN, SIGTTOU, SIGWINCH Flag
	SIGUSR1, SIGUSR2                   Flag
	RealTime                           []Flag
}

// NewFlags allocates a Flags struct with numRT real-time slots, all clear.
func NewFlags(numRT int) *Flags {
	return &Flags{RealTime: make([]Flag, numRT)}
}

func (fl *Flags) flagFor(sig os.Signal, rtmin int) *Flag {
	switch s, _ := sig.(syscall.Signal); s {
	case syscall.SIGINT:
		return &fl.SIGINT
	case syscall.SIGQUIT:
		return &fl.SIGQUIT
	case syscall.SIGTERM:
		return &fl.SIGTERM
	case syscall.SIGCHLD:
		return &fl.SIGCHLD
	case syscall.SIGCONT:
		return &fl.SIGCONT
	case syscall.SIGTSTP:
		return &fl.SIGTSTP
	case syscall.SIGXCPU:
		return &fl.SIGXCPU
	case syscall.SIGXFSZ:
		return &fl.SIGXFSZ
	case syscall.SIGPIPE:
		return &fl.SIGPIPE
	case syscall.SIGIO:
		return &fl.SIGPOLL
	case syscall.SIGURG:
		return &fl.SIGURG
	case syscall.SIGALRM:
		return &fl.SIGALRM
	case syscall.SIGVTALRM:
		return &fl.SIGVTALRM
	case syscall.SIGPROF:
		return &fl.SIGPROF
	case syscall.SIGHUP:
		return &fl.SIGHUP
	case syscall.SIGTTIN:
		return &fl.SIGTTIN
	case syscall.SIGTTOU:
		return &fl.SIGTTOU
	case syscall.SIGWINCH:
		return &fl.SIGWINCH
	case syscall.SIGUSR1:
		return &fl.SIGUSR1
	case syscall.SIGUSR2:
		return &fl.SIGUSR2
	default:
		idx := int(s) - rtmin
		if idx >= 0 && idx < len(fl.RealTime) {
			return &fl.RealTime[idx]
		}
		return nil
	}
}

// Handler is called from the signal dispatch goroutine for every delivered,
// watched signal. Returning false suppresses setting the corresponding Flags
// entry for this delivery (the signal is otherwise handled, just not latched).
type Handler func(sig os.Signal) (setFlag bool)

// Facade owns the dedicated signal-watching goroutine and the swappable
// handler, mirroring spec.md §4.10.
type Facade struct {
	flags *Flags
	ch    chan os.Signal
	done  chan struct{}

	handlerMu sync.RWMutex
	handler   Handler
}

// Start spawns the dedicated signal goroutine watching ws, delivering to
// handler (which may be nil, meaning "always set the flag"). Call before any
// thread-group workers start, per spec.md §4.10.
func Start(ws WatchSet, handler Handler) *Facade {
	sigs := ws.signals()
	f := &Facade{
		flags:   NewFlags(len(ws.RealTime)),
		ch:      make(chan os.Signal, 64),
		done:    make(chan struct{}),
		handler: handler,
	}
	if len(sigs) > 0 {
		signal.Notify(f.ch, sigs...)
	}
	go f.loop()
	return f
}

// Flags returns the shared flags struct the dispatch goroutine writes into.
func (f *Facade) Flags() *Flags { return f.flags }

// SetHandler swaps the active handler under a lock, mirroring spec.md
// §4.10's "swappable at runtime under a spinlock".
func (f *Facade) SetHandler(h Handler) {
	f.handlerMu.Lock()
	f.handler = h
	f.handlerMu.Unlock()
}

func (f *Facade) currentHandler() Handler {
	f.handlerMu.RLock()
	defer f.handlerMu.RUnlock()
	return f.handler
}

func (f *Facade) loop() {
	rtmin := unix.SIGRTMIN()
	for {
		select {
		case <-f.done:
			return
		case sig, ok := <-f.ch:
			if !ok {
				return
			}
			set := true
			if h := f.currentHandler(); h != nil {
				set = h(sig)
			}
			if set {
				if fl := f.flags.flagFor(sig, rtmin); fl != nil {
					fl.set()
				}
			}
		}
	}
}

// Stop stops watching signals and terminates the dispatch goroutine. Facade
// failures (e.g. a signal the host OS refuses to watch) are reported by the
// caller through applog, never retried, per spec.md §4.10's "facade
// failures... the core treats absent... services as acceptable silent
// no-ops".
func (f *Facade) Stop() {
	signal.Stop(f.ch)
	close(f.done)
}
