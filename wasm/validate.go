package wasm

import (
	"errors"
	"fmt"
)

// ValidationError reports a structural problem found by Validate.
type ValidationError struct {
	Section string
	Index   int
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("wasm: invalid %s %d: %s", e.Section, e.Index, e.Reason)
}

// Validate checks index references across sections. It does not type-check
// function bodies; it guarantees that every index the module mentions at
// section level resolves.
func (m *Module) Validate() error {
	var errs []error
	numTypes := uint32(len(m.Types))
	numFuncs := uint32(m.NumImportedFuncs() + len(m.Funcs))
	numGlobals := uint32(m.NumImportedGlobals() + len(m.Globals))
	numMemories := uint32(m.NumImportedMemories() + len(m.Memories))
	numTables := uint32(m.NumImportedTables() + len(m.Tables))

	fail := func(section string, idx int, format string, args ...any) {
		errs = append(errs, &ValidationError{Section: section, Index: idx, Reason: fmt.Sprintf(format, args...)})
	}

	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && imp.Desc.TypeIdx >= numTypes {
			fail("import", i, "type index %d out of range", imp.Desc.TypeIdx)
		}
	}
	for i, typeIdx := range m.Funcs {
		if typeIdx >= numTypes {
			fail("function", i, "type index %d out of range", typeIdx)
		}
	}
	if len(m.Funcs) != len(m.Code) {
		fail("code", len(m.Code), "%d bodies for %d functions", len(m.Code), len(m.Funcs))
	}

	seen := make(map[string]bool, len(m.Exports))
	for i, exp := range m.Exports {
		if seen[exp.Name] {
			fail("export", i, "duplicate name %q", exp.Name)
		}
		seen[exp.Name] = true
		var limit uint32
		switch exp.Kind {
		case KindFunc:
			limit = numFuncs
		case KindTable:
			limit = numTables
		case KindMemory:
			limit = numMemories
		case KindGlobal:
			limit = numGlobals
		}
		if exp.Idx >= limit {
			fail("export", i, "%q index %d out of range", exp.Name, exp.Idx)
		}
	}

	if m.Start != nil && *m.Start >= numFuncs {
		fail("start", 0, "function index %d out of range", *m.Start)
	}
	for i, elem := range m.Elements {
		for _, f := range elem.FuncIdxs {
			if f >= numFuncs {
				fail("element", i, "function index %d out of range", f)
			}
		}
	}
	for i, seg := range m.Data {
		if !seg.IsPassive() && seg.MemIdx >= numMemories {
			fail("data", i, "memory index %d out of range", seg.MemIdx)
		}
	}
	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		fail("data count", 0, "declares %d segments, found %d", *m.DataCount, len(m.Data))
	}
	for i, mem := range m.Memories {
		if !mem.Limits.Memory64 && mem.Limits.Min > MemoryMaxPages32 {
			fail("memory", i, "minimum %d pages exceeds %d", mem.Limits.Min, MemoryMaxPages32)
		}
	}
	return errors.Join(errs...)
}
