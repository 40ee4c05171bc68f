package engine

import (
	"github.com/wippyai/wasm-submemory/wasm"
)

// GlobalIndices holds the indices of the control globals added to the module.
type GlobalIndices struct {
	Base  uint32 // translation base address of the active submemory
	Index uint32 // active submemory index
	Count uint32 // submemories allocated so far
}

// CountMutableGlobals counts mutable globals, imported and defined.
func CountMutableGlobals(m *wasm.Module) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == wasm.KindGlobal && imp.Desc.Global != nil && imp.Desc.Global.Mutable {
			n++
		}
	}
	for _, g := range m.Globals {
		if g.Type.Mutable {
			n++
		}
	}
	return n
}

// addGlobals appends base, index and count as mutable i32 globals
// initialized to zero.
func addGlobals(m *wasm.Module) GlobalIndices {
	add := func() uint32 {
		return m.AddGlobal(wasm.Global{
			Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true},
			Init: wasm.I32ConstExpr(0),
		})
	}
	var g GlobalIndices
	g.Base = add()
	g.Index = add()
	g.Count = add()
	return g
}
