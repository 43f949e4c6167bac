package archctx

import (
	"unsafe"

	"github.com/ivanp7/archipelago-sub002/memory"
	"github.com/ivanp7/archipelago-sub002/paramlist"
	"github.com/ivanp7/archipelago-sub002/status"
	"github.com/ivanp7/archipelago-sub002/typedptr"
)

// ParametersInterface builds the "parameters" built-in context of spec.md
// §4.7: its private state is the parameter list passed to Init, and its
// slots are the list's nodes, addressed by name.
var ParametersInterface = Interface{
	Init: func(params paramlist.List) (public, private typedptr.Pointer, code status.Code) {
		box := &paramlist.List{Head: params.Head}
		return typedptr.Pointer{}, typedptr.Data1(unsafe.Pointer(box), unsafe.Sizeof(*box)), status.Success
	},
	Get: func(_, private typedptr.Pointer, slot Slot) (typedptr.Pointer, status.Code) {
		box := (*paramlist.List)(private.Data)
		// The empty slot (no name, no indices) exposes the whole list as a
		// single value, the same shape a "pointer" context wraps a
		// *paramlist.List in — so a dparams_key instruction field (see
		// instruction.resolveParams) can name either kind of context
		// interchangeably.
		if slot.Name == "" && len(slot.Indices) == 0 {
			return typedptr.Data1(unsafe.Pointer(box), unsafe.Sizeof(*box)), status.Success
		}
		value, ok := box.Get(slot.Name)
		if !ok {
			return typedptr.Pointer{}, status.KeyMissing
		}
		return value, status.Success
	},
}

// PointerInterface builds the "pointer" built-in context: it wraps a single
// raw Pointer supplied via the "value" init parameter.
var PointerInterface = Interface{
	Init: func(params paramlist.List) (public, private typedptr.Pointer, code status.Code) {
		value, ok := params.Get("value")
		if !ok {
			return typedptr.Pointer{}, typedptr.Pointer{}, status.Make(status.ModuleContext, status.KeyErr)
		}
		return value, typedptr.Pointer{}, status.Success
	},
	Get: func(public, _ typedptr.Pointer, _ Slot) (typedptr.Pointer, status.Code) {
		return public, status.Success
	},
	Set: func(_, _ typedptr.Pointer, _ Slot, _ typedptr.Pointer) status.Code {
		// The wrapped Pointer is immutable once constructed (spec.md §5);
		// only a fresh "pointer" context may rebind it.
		return status.Make(status.ModuleContext, status.NotImplemented)
	},
}

// arrayState is the private state of an "array" context: a fixed-size slice
// of null Pointers, indexed by the single Slot.Indices[0] element, plus the
// flags the INIT_ARRAY opcode was given (spec.md §4.8's "flags" field,
// original_source's archi_pointer_attributes_t). No array operation
// currently inspects flags; it is retained on the state so a future Get/Set
// tightening has it available without another opcode/ABI change.
type arrayState struct {
	elements []typedptr.Pointer
	flags    typedptr.Flags
}

// ArrayInterface builds the "array" built-in context: a fixed-size array of
// Pointer values initialised to null, addressed by index.
var ArrayInterface = Interface{
	Init: func(params paramlist.List) (public, private typedptr.Pointer, code status.Code) {
		countPtr, ok := params.Get("num_elements")
		if !ok {
			return typedptr.Pointer{}, typedptr.Pointer{}, status.Make(status.ModuleContext, status.KeyErr)
		}
		count := *(*uintptr)(countPtr.Data)
		var flags typedptr.Flags
		if flagsPtr, ok := params.Get("flags"); ok && flagsPtr.Data != nil {
			flags = *(*typedptr.Flags)(flagsPtr.Data)
		}
		state := &arrayState{elements: make([]typedptr.Pointer, count), flags: flags}
		return typedptr.Pointer{}, typedptr.Data1(unsafe.Pointer(state), unsafe.Sizeof(*state)), status.Success
	},
	Get: func(_, private typedptr.Pointer, slot Slot) (typedptr.Pointer, status.Code) {
		state := (*arrayState)(private.Data)
		idx, code := arrayIndex(state, slot)
		if code.IsError() {
			return typedptr.Pointer{}, code
		}
		return state.elements[idx], status.Success
	},
	Set: func(_, private typedptr.Pointer, slot Slot, value typedptr.Pointer) status.Code {
		state := (*arrayState)(private.Data)
		idx, code := arrayIndex(state, slot)
		if code.IsError() {
			return code
		}
		state.elements[idx] = value
		return status.Success
	},
}

func arrayIndex(state *arrayState, slot Slot) (uintptr, status.Code) {
	if len(slot.Indices) != 1 {
		return 0, status.Make(status.ModuleContext, status.Misuse)
	}
	idx := slot.Indices[0]
	if idx >= uintptr(len(state.elements)) {
		return 0, status.Make(status.ModuleContext, status.ValueErr)
	}
	return idx, status.Success
}

// memoryState is the private state of a "memory" context: the allocator
// plus every region it has handed out via the "alloc" action, addressable
// afterwards through Get so a caller can retrieve the allocated Pointer
// (Act itself, per spec.md §4.6, returns only a status).
type memoryState struct {
	alloc   memory.Heap
	regions []*memory.Info
}

// MemoryInterface builds the "memory" built-in context: it owns a
// memory.Allocator and exposes alloc/free as Act operations ("alloc",
// "free"), per spec.md §4.3/§4.7. A successful "alloc" appends its region to
// the context's private state; the region's Pointer is then reachable via
// Get with a single index naming its allocation order, and "free" releases
// it by that same index.
var MemoryInterface = Interface{
	Init: func(params paramlist.List) (public, private typedptr.Pointer, code status.Code) {
		state := &memoryState{alloc: memory.NewHeap()}
		return typedptr.Pointer{}, typedptr.Data1(unsafe.Pointer(state), unsafe.Sizeof(*state)), status.Success
	},
	Get: func(_, private typedptr.Pointer, slot Slot) (typedptr.Pointer, status.Code) {
		state := (*memoryState)(private.Data)
		if len(slot.Indices) != 1 {
			return typedptr.Pointer{}, status.Make(status.ModuleContext, status.Misuse)
		}
		idx := slot.Indices[0]
		if idx >= uintptr(len(state.regions)) || state.regions[idx] == nil {
			return typedptr.Pointer{}, status.Make(status.ModuleContext, status.ValueErr)
		}
		return state.regions[idx].Pointer, status.Success
	},
	Act: func(_, private typedptr.Pointer, action string, indices []uintptr, params paramlist.List) status.Code {
		state := (*memoryState)(private.Data)
		switch action {
		case "alloc":
			countPtr, _ := params.Get("count")
			sizePtr, _ := params.Get("size")
			if countPtr.Data == nil || sizePtr.Data == nil {
				return status.Make(status.ModuleContext, status.KeyErr)
			}
			info, code := state.alloc.Alloc(typedptr.Layout{
				Count: *(*uintptr)(countPtr.Data),
				Size:  *(*uintptr)(sizePtr.Data),
			})
			if code.IsError() {
				return code
			}
			state.regions = append(state.regions, info)
			return code
		case "free":
			if len(indices) != 1 {
				return status.Make(status.ModuleContext, status.Misuse)
			}
			idx := indices[0]
			if idx >= uintptr(len(state.regions)) || state.regions[idx] == nil {
				return status.Make(status.ModuleContext, status.ValueErr)
			}
			code := state.alloc.Free(state.regions[idx])
			if code.IsError() {
				return code
			}
			state.regions[idx] = nil
			return code
		default:
			return status.Make(status.ModuleContext, status.NotImplemented)
		}
	},
}

// memoryMappingState is the private state of a "memory_mapping" context: an
// open file descriptor's resulting mapping, held via memory.Info.
type memoryMappingState struct {
	alloc memory.Heap
	info  *memory.Info
}

// MemoryMappingInterface builds the "memory_mapping" built-in context: it
// maps a file descriptor supplied via init params ("fd", "offset", "length",
// "writable") and exposes the mapped region as its public Pointer.
var MemoryMappingInterface = Interface{
	Init: func(params paramlist.List) (public, private typedptr.Pointer, code status.Code) {
		fdPtr, ok := params.Get("fd")
		if !ok {
			return typedptr.Pointer{}, typedptr.Pointer{}, status.Make(status.ModuleContext, status.KeyErr)
		}
		lengthPtr, ok := params.Get("length")
		if !ok {
			return typedptr.Pointer{}, typedptr.Pointer{}, status.Make(status.ModuleContext, status.KeyErr)
		}
		var offset int64
		if offPtr, ok := params.Get("offset"); ok {
			offset = *(*int64)(offPtr.Data)
		}
		writable := false
		if wPtr, ok := params.Get("writable"); ok {
			writable = *(*bool)(wPtr.Data)
		}

		alloc := memory.NewHeap()
		info, mcode := alloc.Map(*(*int)(fdPtr.Data), offset, *(*uintptr)(lengthPtr.Data), writable)
		if mcode.IsError() {
			return typedptr.Pointer{}, typedptr.Pointer{}, mcode
		}
		state := &memoryMappingState{alloc: alloc, info: info}
		return info.Pointer, typedptr.Data1(unsafe.Pointer(state), unsafe.Sizeof(*state)), status.Success
	},
	Final: func(_, private typedptr.Pointer) {
		state := (*memoryMappingState)(private.Data)
		state.alloc.Unmap(state.info)
	},
}
