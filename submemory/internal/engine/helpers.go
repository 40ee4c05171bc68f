package engine

import (
	"github.com/wippyai/wasm-submemory/submemory/internal/codegen"
	"github.com/wippyai/wasm-submemory/wasm"
)

// HelperBuilder constructs the bookkeeping functions.
//
// These functions address physical memory directly: the headroom page
// counts, the relocated image and raw submemory regions. They are never
// passed through the rewriter.
type HelperBuilder struct {
	layout  Layout
	globals GlobalIndices
}

// NewHelperBuilder creates a builder for the given layout and globals.
func NewHelperBuilder(layout Layout, globals GlobalIndices) *HelperBuilder {
	return &HelperBuilder{layout: layout, globals: globals}
}

func i32Locals(n uint32) []wasm.LocalEntry {
	return []wasm.LocalEntry{{Count: n, ValType: wasm.ValI32}}
}

// emitBaseOf pushes FirstBase + index*SubmemorySize for the index in local idx.
func (h *HelperBuilder) emitBaseOf(em *codegen.Emitter, idx uint32) {
	em.LocalGet(idx).
		I32Const(int32(uint32(h.layout.SubmemorySize))).
		I32Mul().
		I32Const(int32(h.layout.FirstBase())).
		I32Add()
}

// BuildSelect creates select_submemory(index: i32).
//
// Sets index and points base at the submemory's region.
func (h *HelperBuilder) BuildSelect() wasm.FuncBody {
	em := codegen.NewEmitter()
	em.LocalGet(0).GlobalSet(h.globals.Index)
	h.emitBaseOf(em, 0)
	em.GlobalSet(h.globals.Base)
	em.End()
	return wasm.FuncBody{Code: em.Bytes()}
}

// BuildAdd creates add_submemory() -> (index: i32, base: i32), or
// add_submemory() -> index: i32 when withBase is false.
//
// Grows physical memory by one submemory, copies the initial image into
// the new region and records its page count. Returns -1 in every result
// without touching count when the headroom is full or growth fails.
//
// Locals: 0 = base address, 1 = pages before growth.
func (h *HelperBuilder) BuildAdd(withBase bool) wasm.FuncBody {
	const (
		base = 0
		prev = 1
	)
	em := codegen.NewEmitter()

	fail := func() {
		em.I32Const(-1)
		if withBase {
			em.I32Const(-1)
		}
		em.Return()
	}

	// bookkeeping array full
	em.GlobalGet(h.globals.Count).
		I32Const(MaxSubmemories).
		I32GeU().
		If(codegen.BlockVoid)
	fail()
	em.End()

	// prev = memory.grow(pages per submemory)
	em.I32Const(int32(h.layout.SubmemoryPages())).
		MemoryGrow().
		LocalTee(prev).
		I32Const(-1).
		I32Eq().
		If(codegen.BlockVoid)
	fail()
	em.End()

	// base = prev * PAGE
	em.LocalGet(prev).I32Const(PageSize).I32Mul().LocalSet(base)

	// memory.copy(base, image, image size)
	em.LocalGet(base).
		I32Const(int32(h.layout.ImageBase())).
		I32Const(int32(h.layout.ImageSize())).
		MemoryCopy()

	// pages[count] = initial pages
	em.GlobalGet(h.globals.Count).
		I32Const(SlotSize).
		I32Mul().
		I32Const(int32(h.layout.InitialPages)).
		I32Store(0)

	em.GlobalGet(h.globals.Count)
	if withBase {
		em.LocalGet(base)
	}
	em.GlobalGet(h.globals.Count).I32Const(1).I32Add().GlobalSet(h.globals.Count)
	em.End()

	return wasm.FuncBody{Locals: i32Locals(2), Code: em.Bytes()}
}

// BuildReset creates reset_submemory(index: i32).
//
// Restores an allocated submemory to its freshly added state: the initial
// image is copied back, the rest of the region is zeroed and the page
// count is reset. Traps on an index that was never allocated. base and
// index are left unchanged.
//
// Locals: 0 = index (param), 1 = region address.
func (h *HelperBuilder) BuildReset() wasm.FuncBody {
	const (
		index  = 0
		region = 1
	)
	em := codegen.NewEmitter()

	em.LocalGet(index).
		GlobalGet(h.globals.Count).
		I32GeU().
		If(codegen.BlockVoid).Unreachable().End()

	h.emitBaseOf(em, index)
	em.LocalTee(region).
		I32Const(int32(h.layout.ImageBase())).
		I32Const(int32(h.layout.ImageSize())).
		MemoryCopy()

	em.LocalGet(region).
		I32Const(int32(h.layout.ImageSize())).
		I32Add().
		I32Const(0).
		I32Const(int32(uint32(h.layout.SubmemorySize) - h.layout.ImageSize())).
		MemoryFill()

	em.LocalGet(index).
		I32Const(SlotSize).
		I32Mul().
		I32Const(int32(h.layout.InitialPages)).
		I32Store(0)
	em.End()

	return wasm.FuncBody{Locals: i32Locals(1), Code: em.Bytes()}
}

// BuildSetBase creates set_base(base: i32).
func (h *HelperBuilder) BuildSetBase() wasm.FuncBody {
	em := codegen.NewEmitter()
	em.LocalGet(0).GlobalSet(h.globals.Base).End()
	return wasm.FuncBody{Code: em.Bytes()}
}

// BuildVirtualSize creates the memory.size replacement: pages[index].
func (h *HelperBuilder) BuildVirtualSize() wasm.FuncBody {
	em := codegen.NewEmitter()
	em.GlobalGet(h.globals.Index).
		I32Const(SlotSize).
		I32Mul().
		I32Load(0).
		End()
	return wasm.FuncBody{Code: em.Bytes()}
}

// BuildVirtualGrow creates the memory.grow replacement.
//
// Adds delta to pages[index] and returns the previous count. With bounded
// set, a request that would exceed the submemory size returns -1 and
// leaves the count unchanged.
//
// Locals: 0 = delta (param), 1 = slot address, 2 = previous pages.
func (h *HelperBuilder) BuildVirtualGrow(bounded bool) wasm.FuncBody {
	const (
		delta = 0
		slot  = 1
		prev  = 2
	)
	em := codegen.NewEmitter()

	em.GlobalGet(h.globals.Index).
		I32Const(SlotSize).
		I32Mul().
		LocalTee(slot).
		I32Load(0).
		LocalSet(prev)

	if bounded {
		// delta > capacity - prev, written to avoid wrapping prev + delta
		em.LocalGet(delta).
			I32Const(int32(h.layout.SubmemoryPages())).
			LocalGet(prev).
			I32Sub().
			I32GtU().
			If(codegen.BlockVoid).
			I32Const(-1).
			Return().
			End()
	}

	em.LocalGet(slot).
		LocalGet(prev).
		LocalGet(delta).
		I32Add().
		I32Store(0)
	em.LocalGet(prev).End()

	return wasm.FuncBody{Locals: i32Locals(2), Code: em.Bytes()}
}

var (
	sigI32      = wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}
	sigToI32    = wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}
	sigToI32I32 = wasm.FuncType{Results: []wasm.ValType{wasm.ValI32, wasm.ValI32}}
	sigI32ToI32 = wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}
)

// synthesize adds the policy's bookkeeping functions and exports and
// returns how memory.size and memory.grow are to be rewritten.
func (e *Engine) synthesize(m *wasm.Module, layout Layout, globals GlobalIndices) memoryOps {
	h := NewHelperBuilder(layout, globals)
	add := func(sig wasm.FuncType, body wasm.FuncBody) uint32 {
		return m.AddFunction(m.AddType(sig), body)
	}

	if !layout.Policy.SelfAllocating() {
		m.AddExport(ExportSetBase, wasm.KindFunc, add(sigI32, h.BuildSetBase()))
		return fixedMemory{pages: layout.SubmemoryPages()}
	}

	m.AddExport(ExportSelect, wasm.KindFunc, add(sigI32, h.BuildSelect()))
	if layout.Policy == PolicySelectIndex {
		m.AddExport(ExportAdd, wasm.KindFunc, add(sigToI32, h.BuildAdd(false)))
	} else {
		m.AddExport(ExportAdd, wasm.KindFunc, add(sigToI32I32, h.BuildAdd(true)))
	}
	if e.resetExport {
		m.AddExport(ExportReset, wasm.KindFunc, add(sigI32, h.BuildReset()))
	}

	return virtualMemory{
		sizeFn: add(sigToI32, h.BuildVirtualSize()),
		growFn: add(sigI32ToI32, h.BuildVirtualGrow(e.boundedGrow)),
	}
}
