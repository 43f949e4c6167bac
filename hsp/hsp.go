// Package hsp implements the Hierarchical State Processor of spec.md
// §3/§4.9: a stack of frames of state functions, driven by a loop that
// applies a transition hook between states and honours advance/abort
// "record intent" requests a state function makes against itself.
package hsp

import "github.com/ivanp7/archipelago-sub002/status"

// State is a single unit of execution: a function plus its data and
// metadata pointers. A zero State (Function == nil) is the null state.
type State struct {
	Function StateFunc
	Data     any
	Metadata any
}

// IsNull reports whether s is the null state.
func (s State) IsNull() bool { return s.Function == nil }

// StateFunc is called once per state dispatch. It may call HSP.Advance or
// HSP.Abort to record intent for what happens after it returns; it must not
// expect those calls to transfer control.
type StateFunc func(h *HSP)

// Frame is a contiguous sequence of states sharing a default metadata
// pointer (used by states within the frame whose own Metadata is nil).
type Frame struct {
	states          []State
	defaultMetadata any
}

// NewFrame builds a Frame from states in execution order (states[0] runs
// first). Any state with a nil Metadata inherits defaultMetadata.
//
// Internally states are stored top-of-stack last-to-run-first-popped, i.e.
// reversed relative to the execution order callers think in, since popOne
// pops from the end of the slice.
func NewFrame(defaultMetadata any, states ...State) Frame {
	f := Frame{defaultMetadata: defaultMetadata, states: make([]State, 0, len(states))}
	for i := len(states) - 1; i >= 0; i-- {
		s := states[i]
		if s.IsNull() {
			continue
		}
		if s.Metadata == nil {
			s.Metadata = defaultMetadata
		}
		f.states = append(f.states, s)
	}
	return f
}

// advanceRequest records the pop/push intent of the most recent Advance
// call, per spec.md §4.9 step f.
type advanceRequest struct {
	popFrames int
	pushFrame *Frame
}

// TransitionFunc is called once per loop iteration before a state dispatch,
// with the previous and about-to-run next state. It may return a
// transitional state to run instead of next this iteration, without
// popping/advancing the stack.
type TransitionFunc func(h *HSP, prev, next State, data any) (transitional State, use bool)

// Transition pairs a TransitionFunc with opaque data threaded through every
// call (mirroring spec.md's {fn, data} transition record).
type Transition struct {
	Fn   TransitionFunc
	Data any
}

// HSP owns the frame stack and the transient execution state a StateFunc
// may mutate via Advance/Abort while it runs.
type HSP struct {
	frames []Frame

	executing  bool
	current    State
	abortCode  status.Code
	advance    advanceRequest
	hasAdvance bool

	// frameConsumed is true when the state dispatched this iteration was
	// the last one in its frame, i.e. popOne already removed that frame.
	// applyAdvance needs this to avoid double-discarding the frame below.
	frameConsumed bool
}

// New constructs an inert HSP; call Execute to run it.
func New() *HSP { return &HSP{} }

// CurrentState returns the top-of-top-frame state, or the null State if the
// HSP is inert or its stack is empty. While a state function is executing
// (spec.md §3/§4.9: "the current state is the top-of-top-frame"), that state
// has already been popped off the stack by the driver loop, so CurrentState
// reports the in-flight state recorded by Execute instead of re-reading the
// (now stale) stack top.
func (h *HSP) CurrentState() State {
	if h == nil {
		return State{}
	}
	if h.executing {
		return h.current
	}
	if len(h.frames) == 0 {
		return State{}
	}
	top := h.frames[len(h.frames)-1]
	if len(top.states) == 0 {
		return State{}
	}
	return top.states[len(top.states)-1]
}

// StackFrames returns the current frame count.
func (h *HSP) StackFrames() int {
	if h == nil {
		return 0
	}
	return len(h.frames)
}

// Advance records an advance request: pop popFrames frames (0 = none, 1 =
// rest of current frame, k≥2 = additionally k-1 whole frames), then push
// pushFrame if non-nil. A no-op unless called from within a state function
// of a currently executing HSP; only the most recent call in a given state
// dispatch takes effect.
func (h *HSP) Advance(popFrames int, pushFrame *Frame) {
	if h == nil || !h.executing {
		return
	}
	h.advance = advanceRequest{popFrames: popFrames, pushFrame: pushFrame}
	h.hasAdvance = true
}

// Abort records an abort request with the given code. A no-op unless called
// from within a state function of a currently executing HSP.
func (h *HSP) Abort(code status.Code) {
	if h == nil || !h.executing {
		return
	}
	h.abortCode = code
}

// Execute runs the HSP per spec.md §4.9: push a single-state frame holding
// entryState, then loop applying transition and dispatching states until
// the stack empties or a state function aborts.
func (h *HSP) Execute(entryState State, transition Transition) status.Code {
	h.frames = append(h.frames, NewFrame(entryState.Metadata, entryState))

	var prev State
	for {
		next := h.CurrentState()

		var current State
		useTransitional := false
		if transition.Fn != nil {
			if t, use := transition.Fn(h, prev, next, transition.Data); use {
				current = t
				useTransitional = true
			}
		}

		if !useTransitional {
			if len(h.frames) == 0 {
				return status.Success
			}
			current, h.frameConsumed = h.popOne()
		} else {
			h.frameConsumed = false
		}

		if current.IsNull() {
			// Nothing to dispatch this iteration (can happen if a
			// transitional state is itself null); treat as a normal exit
			// when the stack is also empty.
			if len(h.frames) == 0 && !useTransitional {
				return status.Success
			}
			prev = current
			continue
		}

		h.executing = true
		h.current = current
		h.abortCode = status.Success
		h.hasAdvance = false
		current.Function(h)
		h.executing = false
		h.current = State{}

		if h.abortCode.IsError() {
			h.teardownAll()
			return h.abortCode
		}

		if h.hasAdvance {
			h.applyAdvance(h.advance)
		}

		prev = current
	}
}

// popOne removes and returns the top state of the top frame, popping the
// frame itself if it becomes empty. The second return reports whether the
// frame the state came from was removed as a result.
func (h *HSP) popOne() (State, bool) {
	if len(h.frames) == 0 {
		return State{}, false
	}
	top := &h.frames[len(h.frames)-1]
	if len(top.states) == 0 {
		h.frames = h.frames[:len(h.frames)-1]
		return h.popOne()
	}
	s := top.states[len(top.states)-1]
	top.states = top.states[:len(top.states)-1]
	if len(top.states) == 0 {
		h.frames = h.frames[:len(h.frames)-1]
		return s, true
	}
	return s, false
}

// applyAdvance implements spec.md §4.9 step f's pop-count semantics: 0 pops
// nothing (the state that just ran was already popped by Execute's loop, so
// "nothing further" is correct); 1 discards the remainder of the current
// frame; k≥2 additionally discards k-1 whole frames.
func (h *HSP) applyAdvance(req advanceRequest) {
	if req.popFrames > 0 {
		// If the current frame wasn't already removed by popOne (it still
		// has sibling states left), discarding it counts as the "1".
		extraWholeFrames := req.popFrames - 1
		if !h.frameConsumed && len(h.frames) > 0 {
			h.frames = h.frames[:len(h.frames)-1]
		}
		if extraWholeFrames > 0 {
			if extraWholeFrames > len(h.frames) {
				extraWholeFrames = len(h.frames)
			}
			h.frames = h.frames[:len(h.frames)-extraWholeFrames]
		}
	}

	if req.pushFrame != nil && len(req.pushFrame.states) > 0 {
		h.frames = append(h.frames, *req.pushFrame)
	}
}

func (h *HSP) teardownAll() {
	h.frames = nil
}
