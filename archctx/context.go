// Package archctx implements the context interface v-table and Context
// wrapper of spec.md §3/§4.6: a fixed set of five operations (init, final,
// get, set, act) that every user-extensible behaviour in the runtime is
// built from, plus the built-in contexts (parameters, pointer, array,
// memory, memory_mapping) of §4.7.
package archctx

import (
	"github.com/ivanp7/archipelago-sub002/paramlist"
	"github.com/ivanp7/archipelago-sub002/refcount"
	"github.com/ivanp7/archipelago-sub002/status"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

// Slot addresses a single value a context exposes: a name plus an optional
// index vector, covering both single-valued and multi-indexed slots.
type Slot struct {
	Name    string
	Indices []uintptr
}

// InitFunc constructs a context's public/private state from params.
type InitFunc func(params paramlist.List) (public, private typedptr.Pointer, code status.Code)

// FinalFunc tears down a context's state. Called iff the matching InitFunc
// succeeded.
type FinalFunc func(public, private typedptr.Pointer)

// GetFunc reads a slot.
type GetFunc func(public, private typedptr.Pointer, slot Slot) (value typedptr.Pointer, code status.Code)

// SetFunc writes a slot.
type SetFunc func(public, private typedptr.Pointer, slot Slot, value typedptr.Pointer) status.Code

// ActFunc performs a named action.
type ActFunc func(public, private typedptr.Pointer, action string, indices []uintptr, params paramlist.List) status.Code

// Interface is the v-table of spec.md §3/§4.6. A nil Get, Set or Act makes
// the corresponding Context operation fail with status.NotImplemented; a nil
// Init makes Initialize fail with status.Interface; a nil Final is skipped.
type Interface struct {
	Init  InitFunc
	Final FinalFunc
	Get   GetFunc
	Set   SetFunc
	Act   ActFunc
}

// Context wraps an Interface with the public/private state it produced, and
// a reference count whose destructor runs Final then releases the
// interface's own reference — matching spec.md §4.6 step 3 exactly.
type Context struct {
	iface    Interface
	public   typedptr.Pointer
	private  typedptr.Pointer
	ifaceRef *refcount.Handle
	selfRef  *refcount.Handle
}

// Initialize builds a Context: increments iface's ref count, calls
// iface.Init(params), and on success packages a ref count whose destructor
// invokes iface.Final then releases the interface reference.
func Initialize(iface Interface, ifaceRef *refcount.Handle, params paramlist.List) (*Context, status.Code) {
	if iface.Init == nil {
		return nil, status.Make(status.ModuleContext, status.Interface)
	}
	ifaceRef.Increment()

	public, private, code := iface.Init(params)
	if code.IsError() {
		ifaceRef.Decrement()
		return nil, code
	}

	c := &Context{iface: iface, public: public, private: private, ifaceRef: ifaceRef}
	c.selfRef = refcount.Alloc(func(any) {
		if c.iface.Final != nil {
			c.iface.Final(c.public, c.private)
		}
		c.ifaceRef.Decrement()
	}, c)
	return c, status.Success
}

// Finalize decrements the Context's own ref count, possibly running Final.
func (c *Context) Finalize() {
	if c == nil {
		return
	}
	c.selfRef.Decrement()
}

// Retain increments the Context's own ref count and returns c, for callers
// that file the same Context under more than one name (e.g. registry.Copy):
// each such name must hold its own share of selfRef so that each name's
// independent Finalize only releases its share, rather than racing the
// other name's Finalize to run Final twice.
func (c *Context) Retain() *Context {
	c.selfRef.Increment()
	return c
}

// Public returns the context's public Pointer, the value handed out to
// callers elsewhere in the runtime (e.g. registry.Get).
func (c *Context) Public() typedptr.Pointer { return c.public }

// GetSlot forwards to the interface's Get, or NotImplemented if nil.
func (c *Context) GetSlot(slot Slot) (typedptr.Pointer, status.Code) {
	if c.iface.Get == nil {
		return typedptr.Pointer{}, status.Make(status.ModuleContext, status.NotImplemented)
	}
	return c.iface.Get(c.public, c.private, slot)
}

// SetSlot forwards to the interface's Set, or NotImplemented if nil.
func (c *Context) SetSlot(slot Slot, value typedptr.Pointer) status.Code {
	if c.iface.Set == nil {
		return status.Make(status.ModuleContext, status.NotImplemented)
	}
	return c.iface.Set(c.public, c.private, slot, value)
}

// Act forwards to the interface's Act, or NotImplemented if nil.
func (c *Context) Act(action string, indices []uintptr, params paramlist.List) status.Code {
	if c.iface.Act == nil {
		return status.Make(status.ModuleContext, status.NotImplemented)
	}
	return c.iface.Act(c.public, c.private, action, indices, params)
}

// CopySlot implements spec.md §4.6: dst.Set(dstSlot, src.Get(srcSlot)).
func CopySlot(dst *Context, dstSlot Slot, src *Context, srcSlot Slot) status.Code {
	value, code := src.GetSlot(srcSlot)
	if code.IsError() {
		return code
	}
	return dst.SetSlot(dstSlot, value)
}
