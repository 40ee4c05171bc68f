package wasm

// Module is a parsed core WebAssembly module. Every slice mirrors one
// section; a nil slice means the section was absent.
type Module struct {
	Start     *uint32
	DataCount *uint32

	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // type index per defined function
	Tables   []TableType
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Elements []Element
	Code     []FuncBody
	Data     []DataSegment

	CustomSections []CustomSection
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// ValType is a value type byte.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// Import is an imported function, table, memory, or global.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an import. Kind selects which field is set.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// TableType describes a table.
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// Limits are the size bounds of a table or memory, in elements or pages.
type Limits struct {
	Max      *uint64
	Min      uint64
	Shared   bool
	Memory64 bool
}

// GlobalType is a global's value type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global is a defined global with its constant initializer.
type Global struct {
	Type GlobalType
	Init []byte // init expression including the trailing end
}

// Export is an exported item. Kind uses the Kind* constants.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Element is an element segment.
// Flags select the encoding:
//   - bit 0: passive or declarative (no offset)
//   - bit 1: explicit table index (active) or declarative (passive)
//   - bit 2: elements are expressions instead of function indices
type Element struct {
	Offset   []byte
	FuncIdxs []uint32
	Exprs    [][]byte
	Flags    uint32
	TableIdx uint32
	ElemKind byte
	Type     ValType
}

// FuncBody is a function's local declarations and instruction bytes.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // includes the final end opcode
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is a data segment.
// Flags select the encoding:
//   - 0: active, memory 0, offset expression
//   - 1: passive
//   - 2: active, explicit memory index, offset expression
type DataSegment struct {
	Offset []byte
	Init   []byte
	Flags  uint32
	MemIdx uint32
}

// IsPassive reports whether the segment is only reachable through memory.init.
func (d *DataSegment) IsPassive() bool {
	return d.Flags == 1
}

// CustomSection is a named custom section.
type CustomSection struct {
	Name string
	Data []byte
}

func (m *Module) numImported(kind byte) int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == kind {
			count++
		}
	}
	return count
}

// NumImportedFuncs returns the number of imported functions.
func (m *Module) NumImportedFuncs() int { return m.numImported(KindFunc) }

// NumImportedGlobals returns the number of imported globals.
func (m *Module) NumImportedGlobals() int { return m.numImported(KindGlobal) }

// NumImportedMemories returns the number of imported memories.
func (m *Module) NumImportedMemories() int { return m.numImported(KindMemory) }

// NumImportedTables returns the number of imported tables.
func (m *Module) NumImportedTables() int { return m.numImported(KindTable) }

// FuncTypeIndex returns the type index of function funcIdx, which may be
// imported or defined.
func (m *Module) FuncTypeIndex(funcIdx uint32) (uint32, bool) {
	n := uint32(0)
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if n == funcIdx {
			return imp.Desc.TypeIdx, true
		}
		n++
	}
	local := funcIdx - n
	if funcIdx < n || int(local) >= len(m.Funcs) {
		return 0, false
	}
	return m.Funcs[local], true
}

// GetFuncType returns the signature of function funcIdx, or nil.
func (m *Module) GetFuncType(funcIdx uint32) *FuncType {
	typeIdx, ok := m.FuncTypeIndex(funcIdx)
	if !ok || int(typeIdx) >= len(m.Types) {
		return nil
	}
	return &m.Types[typeIdx]
}

// AddType returns the index of an equal type, appending ft if none exists.
func (m *Module) AddType(ft FuncType) uint32 {
	for i := range m.Types {
		if m.Types[i].Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// AddFunction appends a defined function and returns its function index.
func (m *Module) AddFunction(typeIdx uint32, body FuncBody) uint32 {
	m.Funcs = append(m.Funcs, typeIdx)
	m.Code = append(m.Code, body)
	return uint32(m.NumImportedFuncs() + len(m.Funcs) - 1)
}

// AddGlobal appends a defined global and returns its global index.
func (m *Module) AddGlobal(g Global) uint32 {
	m.Globals = append(m.Globals, g)
	return uint32(m.NumImportedGlobals() + len(m.Globals) - 1)
}

// AddExport appends an export.
func (m *Module) AddExport(name string, kind byte, idx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
}

// FindExport returns the export with the given name, or nil.
func (m *Module) FindExport(name string) *Export {
	for i := range m.Exports {
		if m.Exports[i].Name == name {
			return &m.Exports[i]
		}
	}
	return nil
}

// FindCustomSection returns the first custom section with the given name.
func (m *Module) FindCustomSection(name string) *CustomSection {
	for i := range m.CustomSections {
		if m.CustomSections[i].Name == name {
			return &m.CustomSections[i]
		}
	}
	return nil
}

// NumLocals returns the number of declared locals in a body, excluding
// parameters.
func (b *FuncBody) NumLocals() uint32 {
	var n uint32
	for _, l := range b.Locals {
		n += l.Count
	}
	return n
}

// AddLocal declares one more local of type vt and returns its index
// relative to the first declared local (add the parameter count to get
// the local index used by instructions).
func (b *FuncBody) AddLocal(vt ValType) uint32 {
	idx := b.NumLocals()
	if n := len(b.Locals); n > 0 && b.Locals[n-1].ValType == vt {
		b.Locals[n-1].Count++
	} else {
		b.Locals = append(b.Locals, LocalEntry{Count: 1, ValType: vt})
	}
	return idx
}
