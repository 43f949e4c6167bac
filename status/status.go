// Package status implements the signed status-code taxonomy shared by every
// archipelago component: negative values are errors (high bits identify the
// owning module, low 16 bits carry error-specific info), zero is success, and
// positive values are context- or instruction-specific conditions such as
// "key missing" (+1) or "key exists" (+2).
package status

import "fmt"

// Code is a signed status value. See the package doc for the sign taxonomy.
type Code int32

// Success is the zero status.
const Success Code = 0

// Context-/instruction-specific positive conditions (spec.md §4.7, §7).
const (
	// KeyMissing indicates a referenced registry key does not exist.
	KeyMissing Code = 1
	// KeyExists indicates a registry key that was expected to be absent
	// already exists.
	KeyExists Code = 2
)

// Module identifies the subsystem that produced a negative (error) code, and
// occupies the high bits of the code alongside a low-16-bit Kind.
type Module uint16

const (
	ModuleCore Module = iota
	ModuleRefCount
	ModuleMemory
	ModuleQueue
	ModuleThreadGroup
	ModuleContext
	ModuleRegistry
	ModuleInstruction
	ModuleHSP
	ModuleInput
	ModuleLog
	ModuleSignal
	ModuleCmd
)

// Kind enumerates the standard error kinds of spec.md §7.
type Kind uint16

const (
	// Failure is a generic failure; any positive status surfaced by a callee
	// that must be treated as an error is normalised to this kind.
	Failure Kind = iota + 1
	// Misuse indicates bad arguments from the caller.
	Misuse
	// Interface indicates a null v-table function was invoked.
	Interface
	// KeyErr indicates a bad parameter name.
	KeyErr
	// ValueErr indicates a bad parameter value.
	ValueErr
	// NoMemory indicates allocation failure.
	NoMemory
	// Resource indicates an underlying OS call failed.
	Resource
	// NotImplemented indicates an unsupported operation.
	NotImplemented
)

const moduleShift = 16

// Make packs a module and kind into a negative Code.
func Make(m Module, k Kind) Code {
	return -Code(uint32(m)<<moduleShift | uint32(k))
}

// Module extracts the owning module from a negative code. Zero for
// non-negative codes.
func (c Code) Module() Module {
	if c >= 0 {
		return 0
	}
	return Module(uint32(-c) >> moduleShift)
}

// Kind extracts the error kind from a negative code. Zero for non-negative
// codes.
func (c Code) Kind() Kind {
	if c >= 0 {
		return 0
	}
	return Kind(uint32(-c) & 0xFFFF)
}

// IsError reports whether c is a negative (aborting) status.
func (c Code) IsError() bool { return c < 0 }

// IsSuccess reports whether c is the zero status.
func (c Code) IsSuccess() bool { return c == Success }

// IsCondition reports whether c is a positive, context-specific condition.
func (c Code) IsCondition() bool { return c > 0 }

func (k Kind) String() string {
	switch k {
	case Failure:
		return "FAILURE"
	case Misuse:
		return "MISUSE"
	case Interface:
		return "INTERFACE"
	case KeyErr:
		return "KEY"
	case ValueErr:
		return "VALUE"
	case NoMemory:
		return "NO_MEMORY"
	case Resource:
		return "RESOURCE"
	case NotImplemented:
		return "NOT_IMPLEMENTED"
	default:
		return fmt.Sprintf("KIND(%d)", int(k))
	}
}

func (m Module) String() string {
	switch m {
	case ModuleCore:
		return "core"
	case ModuleRefCount:
		return "refcount"
	case ModuleMemory:
		return "memory"
	case ModuleQueue:
		return "lfqueue"
	case ModuleThreadGroup:
		return "threadgroup"
	case ModuleContext:
		return "context"
	case ModuleRegistry:
		return "registry"
	case ModuleInstruction:
		return "instruction"
	case ModuleHSP:
		return "hsp"
	case ModuleInput:
		return "input"
	case ModuleLog:
		return "applog"
	case ModuleSignal:
		return "appsignal"
	case ModuleCmd:
		return "cmd"
	default:
		return fmt.Sprintf("module(%d)", int(m))
	}
}

func (c Code) String() string {
	switch {
	case c == Success:
		return "OK"
	case c > 0:
		return fmt.Sprintf("+%d", int32(c))
	default:
		return fmt.Sprintf("%s/%s", c.Module(), c.Kind())
	}
}

// Error adapts a negative Code to the standard error interface, so status
// codes compose with errors.Is/errors.As at call sites that want a Go error.
type Error struct {
	Code  Code
	Cause error
}

// Err wraps c as an *Error. Returns nil if c is not negative.
func (c Code) Err() error {
	if c >= 0 {
		return nil
	}
	return &Error{Code: c}
}

// Wrap wraps c as an *Error with an underlying cause. Returns nil if c is not
// negative.
func (c Code) Wrap(cause error) error {
	if c >= 0 {
		return nil
	}
	return &Error{Code: c, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("archipelago: %s: %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("archipelago: %s", e.Code)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
