// Package instruction implements the twelve-opcode instruction interpreter
// of spec.md §3/§4.8: a singly-linked instruction list executed against a
// context registry, with strict/lenient abort policy and reverse-order
// teardown on abort.
package instruction

import (
	"fmt"

	"github.com/ivanp7/archipelago-sub002/archctx"
	"github.com/ivanp7/archipelago-sub002/paramlist"
	"github.com/ivanp7/archipelago-sub002/refcount"
	"github.com/ivanp7/archipelago-sub002/registry"
	"github.com/ivanp7/archipelago-sub002/status"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

// Opcode identifies one of the twelve instruction variants of spec.md §4.8
// (NOOP plus the eleven registry operations).
type Opcode int

const (
	NOOP Opcode = iota
	DELETE
	COPY
	INIT_PARAMETERS
	INIT_POINTER
	INIT_ARRAY
	INIT_FROM_CONTEXT
	INIT_FROM_SLOT
	SET_TO_VALUE
	SET_TO_CONTEXT_DATA
	SET_TO_CONTEXT_SLOT
	ACT
)

func (o Opcode) String() string {
	switch o {
	case NOOP:
		return "NOOP"
	case DELETE:
		return "DELETE"
	case COPY:
		return "COPY"
	case INIT_PARAMETERS:
		return "INIT_PARAMETERS"
	case INIT_POINTER:
		return "INIT_POINTER"
	case INIT_ARRAY:
		return "INIT_ARRAY"
	case INIT_FROM_CONTEXT:
		return "INIT_FROM_CONTEXT"
	case INIT_FROM_SLOT:
		return "INIT_FROM_SLOT"
	case SET_TO_VALUE:
		return "SET_TO_VALUE"
	case SET_TO_CONTEXT_DATA:
		return "SET_TO_CONTEXT_DATA"
	case SET_TO_CONTEXT_SLOT:
		return "SET_TO_CONTEXT_SLOT"
	case ACT:
		return "ACT"
	default:
		return fmt.Sprintf("opcode(%d)", int(o))
	}
}

// Params carries an instruction's parameter-list field: exactly one of
// Static (embedded in the input image) or DynamicKey (looked up in the
// registry) may be set. Both set is a Misuse error; neither set resolves to
// an empty parameter list.
type Params struct {
	Static     *paramlist.List
	DynamicKey string
}

func (p Params) hasStatic() bool  { return p.Static != nil }
func (p Params) hasDynamic() bool { return p.DynamicKey != "" }

// Instruction is one node of the instruction list: a tagged union selected
// by Op, plus a Next link.
type Instruction struct {
	Op Opcode

	Key         string
	OriginalKey string // COPY

	DParams Params // INIT_PARAMETERS / INIT_FROM_CONTEXT / INIT_FROM_SLOT / ACT

	Value typedptr.Pointer // INIT_POINTER / SET_TO_VALUE

	NumElements uintptr        // INIT_ARRAY
	ArrayFlags  typedptr.Flags // INIT_ARRAY

	InterfaceOriginKey  string       // INIT_FROM_CONTEXT / INIT_FROM_SLOT
	InterfaceOriginSlot archctx.Slot // INIT_FROM_SLOT

	Slot       archctx.Slot // SET_TO_VALUE / SET_TO_CONTEXT_DATA / SET_TO_CONTEXT_SLOT
	SourceKey  string       // SET_TO_CONTEXT_DATA / SET_TO_CONTEXT_SLOT
	SourceSlot archctx.Slot // SET_TO_CONTEXT_SLOT

	Action string // ACT

	Next *Instruction
}

// List is a singly-linked instruction list, traversed once per Run.
type List struct {
	Head *Instruction
}

// resolveParams resolves an instruction's Params field against the
// registry, per spec.md §4.8. Returns status.Misuse if both Static and
// DynamicKey are set (see SPEC_FULL.md Open Question 2).
//
// DynamicKey names a context whose empty slot (Slot{}) yields the whole
// *paramlist.List as its Data: both the "pointer" built-in (wrapping a list
// explicitly constructed that way, the cmd/archihost "params" publishing
// convention) and the "parameters" built-in (archctx.ParametersInterface's
// Get, which special-cases the empty slot the same way) satisfy this.
func resolveParams(r *registry.Registry, p Params) (paramlist.List, status.Code) {
	switch {
	case p.hasStatic() && p.hasDynamic():
		return paramlist.List{}, status.Make(status.ModuleInstruction, status.Misuse)
	case p.hasStatic():
		return *p.Static, status.Success
	case p.hasDynamic():
		c, code := r.Context(p.DynamicKey)
		if code.IsError() {
			return paramlist.List{}, code
		}
		box, getCode := c.GetSlot(archctx.Slot{})
		if getCode.IsError() {
			return paramlist.List{}, getCode
		}
		if box.Data == nil {
			return paramlist.List{}, status.Make(status.ModuleInstruction, status.ValueErr)
		}
		return *(*paramlist.List)(box.Data), status.Success
	default:
		return paramlist.List{}, status.Success
	}
}

// Interpreter runs a List against a Registry. StaticRef is the
// static-storage handle of the input image the list came from; Run does not
// attach it to any Pointer, so Pointers taken from sparams or from
// instruction fields reach contexts with whatever RefCount they already
// carry.
type Interpreter struct {
	Registry  *registry.Registry
	Strict    bool
	StaticRef *refcount.Handle

	// OnCondition is called for each +1/+2 condition encountered in
	// lenient mode, carrying the instruction and its status, before
	// execution continues. May be nil.
	OnCondition func(instr *Instruction, code status.Code)
}

// Run walks list, executing each instruction against the interpreter's
// registry. A negative status always aborts (tearing the registry down in
// reverse insertion order). A positive status (+1/+2) aborts only in strict
// mode; in lenient mode it is reported via OnCondition and execution
// continues.
func (in *Interpreter) Run(list List) status.Code {
	for instr := list.Head; instr != nil; instr = instr.Next {
		code := in.execOne(instr)
		switch {
		case code.IsError():
			in.Registry.Teardown()
			return code
		case code.IsCondition():
			if in.OnCondition != nil {
				in.OnCondition(instr, code)
			}
			if in.Strict {
				in.Registry.Teardown()
				return code
			}
		}
	}
	return status.Success
}

func (in *Interpreter) execOne(instr *Instruction) status.Code {
	r := in.Registry
	switch instr.Op {
	case NOOP:
		return status.Success

	case DELETE:
		return r.Delete(instr.Key)

	case COPY:
		return r.Copy(instr.Key, instr.OriginalKey)

	case INIT_PARAMETERS:
		params, code := resolveParams(r, instr.DParams)
		if code.IsError() {
			return code
		}
		return r.InitParameters(instr.Key, params)

	case INIT_POINTER:
		return r.InitPointer(instr.Key, instr.Value)

	case INIT_ARRAY:
		return r.InitArray(instr.Key, instr.NumElements, instr.ArrayFlags)

	case INIT_FROM_CONTEXT:
		params, code := resolveParams(r, instr.DParams)
		if code.IsError() {
			return code
		}
		return r.InitFromContext(instr.Key, instr.InterfaceOriginKey, params)

	case INIT_FROM_SLOT:
		params, code := resolveParams(r, instr.DParams)
		if code.IsError() {
			return code
		}
		return r.InitFromSlot(instr.Key, instr.InterfaceOriginKey, instr.InterfaceOriginSlot, params)

	case SET_TO_VALUE:
		return r.SetToValue(instr.Key, instr.Slot, instr.Value)

	case SET_TO_CONTEXT_DATA:
		return r.SetToContextData(instr.Key, instr.SourceKey, instr.Slot)

	case SET_TO_CONTEXT_SLOT:
		return r.SetToContextSlot(instr.Key, instr.Slot, instr.SourceKey, instr.SourceSlot)

	case ACT:
		params, code := resolveParams(r, instr.DParams)
		if code.IsError() {
			return code
		}
		return r.Act(instr.Key, instr.Action, params)

	default:
		return status.Make(status.ModuleInstruction, status.Misuse)
	}
}
