package wasm

import (
	"github.com/wippyai/wasm-submemory/wasm/internal/binary"
)

// Encode serializes the module. Sections are emitted in canonical order,
// empty sections are omitted, and custom sections are appended last.
func (m *Module) Encode() []byte {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	sections := []struct {
		write func(*binary.Writer)
		id    byte
		emit  bool
	}{
		{m.writeTypes, SectionType, len(m.Types) > 0},
		{m.writeImports, SectionImport, len(m.Imports) > 0},
		{m.writeFuncs, SectionFunction, len(m.Funcs) > 0},
		{m.writeTables, SectionTable, len(m.Tables) > 0},
		{m.writeMemories, SectionMemory, len(m.Memories) > 0},
		{m.writeGlobals, SectionGlobal, len(m.Globals) > 0},
		{m.writeExports, SectionExport, len(m.Exports) > 0},
		{m.writeStart, SectionStart, m.Start != nil},
		{m.writeElements, SectionElement, len(m.Elements) > 0},
		{m.writeDataCount, SectionDataCount, m.DataCount != nil},
		{m.writeCode, SectionCode, len(m.Code) > 0},
		{m.writeData, SectionData, len(m.Data) > 0},
	}
	for _, s := range sections {
		if !s.emit {
			continue
		}
		sec := binary.NewWriter()
		s.write(sec)
		writeSection(w, s.id, sec.Bytes())
	}

	for _, cs := range m.CustomSections {
		sec := binary.NewWriter()
		sec.WriteName(cs.Name)
		sec.WriteBytes(cs.Data)
		writeSection(w, SectionCustom, sec.Bytes())
	}
	return w.Bytes()
}

func writeSection(w *binary.Writer, id byte, content []byte) {
	w.Byte(id)
	w.WriteU32(uint32(len(content)))
	w.WriteBytes(content)
}

func (m *Module) writeTypes(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Types)))
	for _, ft := range m.Types {
		w.Byte(FuncTypeByte)
		writeValTypes(w, ft.Params)
		writeValTypes(w, ft.Results)
	}
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func (m *Module) writeImports(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		w.WriteName(imp.Module)
		w.WriteName(imp.Name)
		w.Byte(imp.Desc.Kind)
		switch imp.Desc.Kind {
		case KindFunc:
			w.WriteU32(imp.Desc.TypeIdx)
		case KindTable:
			writeTableType(w, *imp.Desc.Table)
		case KindMemory:
			writeLimits(w, imp.Desc.Memory.Limits)
		case KindGlobal:
			writeGlobalType(w, *imp.Desc.Global)
		}
	}
}

func (m *Module) writeFuncs(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Funcs)))
	for _, typeIdx := range m.Funcs {
		w.WriteU32(typeIdx)
	}
}

func (m *Module) writeTables(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Tables)))
	for _, t := range m.Tables {
		writeTableType(w, t)
	}
}

func (m *Module) writeMemories(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Memories)))
	for _, mem := range m.Memories {
		writeLimits(w, mem.Limits)
	}
}

func (m *Module) writeGlobals(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Globals)))
	for _, g := range m.Globals {
		writeGlobalType(w, g.Type)
		w.WriteBytes(g.Init)
	}
}

func (m *Module) writeExports(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Exports)))
	for _, exp := range m.Exports {
		w.WriteName(exp.Name)
		w.Byte(exp.Kind)
		w.WriteU32(exp.Idx)
	}
}

func (m *Module) writeStart(w *binary.Writer) {
	w.WriteU32(*m.Start)
}

func (m *Module) writeElements(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Elements)))
	for _, elem := range m.Elements {
		w.WriteU32(elem.Flags)
		active := elem.Flags&0x01 == 0
		if active && elem.Flags&0x02 != 0 {
			w.WriteU32(elem.TableIdx)
		}
		if active {
			w.WriteBytes(elem.Offset)
		}
		usesExprs := elem.Flags&0x04 != 0
		if elem.Flags&0x03 != 0 {
			if usesExprs {
				w.Byte(byte(elem.Type))
			} else {
				w.Byte(elem.ElemKind)
			}
		}
		if usesExprs {
			w.WriteU32(uint32(len(elem.Exprs)))
			for _, expr := range elem.Exprs {
				w.WriteBytes(expr)
			}
		} else {
			w.WriteU32(uint32(len(elem.FuncIdxs)))
			for _, idx := range elem.FuncIdxs {
				w.WriteU32(idx)
			}
		}
	}
}

func (m *Module) writeDataCount(w *binary.Writer) {
	w.WriteU32(*m.DataCount)
}

func (m *Module) writeCode(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Code)))
	for _, body := range m.Code {
		b := binary.NewWriter()
		b.WriteU32(uint32(len(body.Locals)))
		for _, l := range body.Locals {
			b.WriteU32(l.Count)
			b.Byte(byte(l.ValType))
		}
		b.WriteBytes(body.Code)
		w.WriteU32(uint32(b.Len()))
		w.WriteBytes(b.Bytes())
	}
}

func (m *Module) writeData(w *binary.Writer) {
	w.WriteU32(uint32(len(m.Data)))
	for _, seg := range m.Data {
		w.WriteU32(seg.Flags)
		if seg.Flags == 2 {
			w.WriteU32(seg.MemIdx)
		}
		if seg.Flags != 1 {
			w.WriteBytes(seg.Offset)
		}
		w.WriteU32(uint32(len(seg.Init)))
		w.WriteBytes(seg.Init)
	}
}

func writeLimits(w *binary.Writer, l Limits) {
	var flags byte
	if l.Max != nil {
		flags |= LimitsHasMax
	}
	if l.Shared {
		flags |= LimitsShared
	}
	if l.Memory64 {
		flags |= LimitsMemory64
	}
	w.Byte(flags)
	w.WriteU64(l.Min)
	if l.Max != nil {
		w.WriteU64(*l.Max)
	}
}

func writeTableType(w *binary.Writer, t TableType) {
	w.Byte(byte(t.ElemType))
	writeLimits(w, t.Limits)
}

func writeGlobalType(w *binary.Writer, g GlobalType) {
	w.Byte(byte(g.ValType))
	if g.Mutable {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
}
