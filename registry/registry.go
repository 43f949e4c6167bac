// Package registry implements the context registry of spec.md §3/§4.7: a
// name→Context map with one method per registry mutator, backing the
// instruction interpreter's opcodes. Get exposes a stored context's public
// Pointer and Set is refused. The Registry itself is not an
// archctx.Context: it has no Interface of its own, and its Act forwards an
// action to a stored context rather than dispatching the mutators by name.
package registry

import (
	"unsafe"

	"github.com/ivanp7/archipelago-sub002/archctx"
	"github.com/ivanp7/archipelago-sub002/paramlist"
	"github.com/ivanp7/archipelago-sub002/refcount"
	"github.com/ivanp7/archipelago-sub002/status"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

// Registry is a name→Context map. Keys are unique; insertion order is
// tracked only so Teardown can release contexts in reverse insertion order,
// per spec.md §4.8's abort-teardown rule.
type Registry struct {
	contexts map[string]*archctx.Context
	order    []string
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{contexts: make(map[string]*archctx.Context)}
}

// Get returns the named context's public Pointer. Returns status.KeyMissing
// (a positive condition) if name is absent.
func (r *Registry) Get(name string) (typedptr.Pointer, status.Code) {
	c, ok := r.contexts[name]
	if !ok {
		return typedptr.Pointer{}, status.KeyMissing
	}
	return c.Public(), status.Success
}

// Context returns the named *archctx.Context directly, for callers (the
// instruction interpreter) that need to invoke GetSlot/SetSlot/Act on it
// rather than just read its public value.
func (r *Registry) Context(name string) (*archctx.Context, status.Code) {
	c, ok := r.contexts[name]
	if !ok {
		return nil, status.KeyMissing
	}
	return c, status.Success
}

// Set is forbidden on the registry's own self-hosted slot namespace, per
// spec.md §4.7.
func (r *Registry) Set(string, typedptr.Pointer) status.Code {
	return status.Make(status.ModuleRegistry, status.NotImplemented)
}

// insert records a freshly constructed context under key, enforcing key
// uniqueness (+2 if key already exists).
func (r *Registry) insert(key string, c *archctx.Context) status.Code {
	if _, exists := r.contexts[key]; exists {
		c.Finalize()
		return status.KeyExists
	}
	r.contexts[key] = c
	r.order = append(r.order, key)
	return status.Success
}

// Delete removes and finalises the named context. +1 if key is missing.
func (r *Registry) Delete(key string) status.Code {
	c, ok := r.contexts[key]
	if !ok {
		return status.KeyMissing
	}
	delete(r.contexts, key)
	r.removeFromOrder(key)
	c.Finalize()
	return status.Success
}

func (r *Registry) removeFromOrder(key string) {
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// Copy duplicates the context found under originalKey into key. +2 if key
// exists; +1 if originalKey does not. The copy shares the original's
// interface and ref-counted state rather than re-running Init.
func (r *Registry) Copy(key, originalKey string) status.Code {
	src, ok := r.contexts[originalKey]
	if !ok {
		return status.KeyMissing
	}
	if _, exists := r.contexts[key]; exists {
		return status.KeyExists
	}
	r.contexts[key] = src.Retain()
	r.order = append(r.order, key)
	return status.Success
}

// InitParameters implements the INIT_PARAMETERS opcode at the registry API
// level: builds a "parameters" context under key from params.
func (r *Registry) InitParameters(key string, params paramlist.List) status.Code {
	c, code := archctx.Initialize(archctx.ParametersInterface, refcount.Alloc(nil, nil), params)
	if code.IsError() {
		return code
	}
	return r.insert(key, c)
}

// InitPointer implements the INIT_POINTER opcode: builds a "pointer"
// context under key wrapping value.
func (r *Registry) InitPointer(key string, value typedptr.Pointer) status.Code {
	params := paramlist.List{}.Prepend("value", value)
	c, code := archctx.Initialize(archctx.PointerInterface, refcount.Alloc(nil, nil), params)
	if code.IsError() {
		return code
	}
	return r.insert(key, c)
}

// InitArray implements the INIT_ARRAY opcode: builds an "array" context
// under key with numElements null-initialised slots, tagged with flags (the
// opcode's archi_pointer_attributes_t "flags" field per
// original_source/include/archi_exe/instruction.typ.h).
func (r *Registry) InitArray(key string, numElements uintptr, flags typedptr.Flags) status.Code {
	n := numElements
	f := flags
	params := paramlist.List{}.
		Prepend("num_elements", typedptr.Data1(unsafe.Pointer(&n), unsafe.Sizeof(n))).
		Prepend("flags", typedptr.Data1(unsafe.Pointer(&f), unsafe.Sizeof(f)))
	c, code := archctx.Initialize(archctx.ArrayInterface, refcount.Alloc(nil, nil), params)
	if code.IsError() {
		return code
	}
	return r.insert(key, c)
}

// InitFromContext implements the INIT_FROM_CONTEXT opcode: builds a new
// context under key whose interface is the public value found under
// originKey, initialised with params.
func (r *Registry) InitFromContext(key, originKey string, params paramlist.List) status.Code {
	originCtx, ok := r.contexts[originKey]
	if !ok {
		return status.KeyMissing
	}
	iface, code := interfaceFromValue(originCtx.Public())
	if code.IsError() {
		return code
	}
	c, code := archctx.Initialize(iface, refcount.Alloc(nil, nil), params)
	if code.IsError() {
		return code
	}
	return r.insert(key, c)
}

// InitFromSlot implements the INIT_FROM_SLOT opcode: reads the interface
// value from a named slot of originKey's context, then initialises like
// InitFromContext.
func (r *Registry) InitFromSlot(key, originKey string, slot archctx.Slot, params paramlist.List) status.Code {
	originCtx, ok := r.contexts[originKey]
	if !ok {
		return status.KeyMissing
	}
	value, code := originCtx.GetSlot(slot)
	if code.IsError() {
		return code
	}
	iface, code := interfaceFromValue(value)
	if code.IsError() {
		return code
	}
	c, code := archctx.Initialize(iface, refcount.Alloc(nil, nil), params)
	if code.IsError() {
		return code
	}
	return r.insert(key, c)
}

// SetToValue implements SET_TO_VALUE: key.slot = value. +1 if key is
// missing.
func (r *Registry) SetToValue(key string, slot archctx.Slot, value typedptr.Pointer) status.Code {
	c, ok := r.contexts[key]
	if !ok {
		return status.KeyMissing
	}
	return c.SetSlot(slot, value)
}

// SetToContextData implements SET_TO_CONTEXT_DATA: key.slot = sourceKey's
// public Pointer. +1 if either key is missing.
func (r *Registry) SetToContextData(key, sourceKey string, slot archctx.Slot) status.Code {
	src, ok := r.contexts[sourceKey]
	if !ok {
		return status.KeyMissing
	}
	dst, ok := r.contexts[key]
	if !ok {
		return status.KeyMissing
	}
	return dst.SetSlot(slot, src.Public())
}

// SetToContextSlot implements SET_TO_CONTEXT_SLOT: key.slot =
// sourceKey.sourceSlot, i.e. archctx.CopySlot. +1 if either key is missing.
func (r *Registry) SetToContextSlot(key string, slot archctx.Slot, sourceKey string, sourceSlot archctx.Slot) status.Code {
	src, ok := r.contexts[sourceKey]
	if !ok {
		return status.KeyMissing
	}
	dst, ok := r.contexts[key]
	if !ok {
		return status.KeyMissing
	}
	return archctx.CopySlot(dst, slot, src, sourceSlot)
}

// Act implements the ACT opcode: forwards action/params to key's context.
// +1 if key is missing.
func (r *Registry) Act(key, action string, params paramlist.List) status.Code {
	c, ok := r.contexts[key]
	if !ok {
		return status.KeyMissing
	}
	return c.Act(action, nil, params)
}

// Teardown finalises every remaining context in reverse insertion order,
// matching spec.md §4.8's abort-teardown rule.
func (r *Registry) Teardown() {
	for i := len(r.order) - 1; i >= 0; i-- {
		key := r.order[i]
		if c, ok := r.contexts[key]; ok {
			delete(r.contexts, key)
			c.Finalize()
		}
	}
	r.order = nil
}

// interfaceFromValue expects value to carry an archctx.Interface boxed as a
// function-flagged Pointer (the convention used when a context exposes its
// own interface, e.g. for plugin-supplied contexts).
func interfaceFromValue(value typedptr.Pointer) (archctx.Interface, status.Code) {
	if !value.IsFunction() {
		return archctx.Interface{}, status.Make(status.ModuleRegistry, status.ValueErr)
	}
	iface, ok := value.Func.(archctx.Interface)
	if !ok {
		return archctx.Interface{}, status.Make(status.ModuleRegistry, status.ValueErr)
	}
	return iface, status.Success
}
