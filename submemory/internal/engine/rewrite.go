package engine

import (
	"github.com/wippyai/wasm-submemory/errors"
	"github.com/wippyai/wasm-submemory/submemory/internal/codegen"
	"github.com/wippyai/wasm-submemory/wasm"
)

// RewriteStats counts the instructions a rewrite replaced.
type RewriteStats struct {
	Loads  int
	Stores int
	Sizes  int
	Grows  int
}

// Total is the number of replaced instructions.
func (s RewriteStats) Total() int {
	return s.Loads + s.Stores + s.Sizes + s.Grows
}

func (s *RewriteStats) add(o RewriteStats) {
	s.Loads += o.Loads
	s.Stores += o.Stores
	s.Sizes += o.Sizes
	s.Grows += o.Grows
}

// rewriter confines the memory accesses of function bodies to the
// submemory selected by the base global.
type rewriter struct {
	mem  memoryOps
	mask int32
	base uint32
}

func newRewriter(layout Layout, globals GlobalIndices, mem memoryOps) *rewriter {
	return &rewriter{
		mem:  mem,
		mask: int32(layout.Mask()),
		base: globals.Base,
	}
}

// funcRewrite is the state of one function being rewritten.
type funcRewrite struct {
	rw        *rewriter
	em        *codegen.Emitter
	scratch   map[wasm.ValType]uint32
	locals    []wasm.LocalEntry
	stats     RewriteStats
	funcIdx   uint32
	numParams uint32
}

// rewriteBody returns a rewritten copy of body. body itself is not
// modified, so a failure leaves the function untouched.
func (r *rewriter) rewriteBody(funcIdx, numParams uint32, body wasm.FuncBody) (wasm.FuncBody, RewriteStats, error) {
	instrs, err := wasm.DecodeInstructions(body.Code)
	if err != nil {
		return body, RewriteStats{}, errors.New(errors.PhaseRewrite, errors.KindInvalidData).
			Path(errors.FuncPath(funcIdx)).
			Detail("decode body").
			Cause(err).
			Build()
	}

	f := &funcRewrite{
		rw:        r,
		em:        codegen.NewEmitter(),
		locals:    append([]wasm.LocalEntry(nil), body.Locals...),
		funcIdx:   funcIdx,
		numParams: numParams,
	}
	for _, instr := range instrs {
		if err := f.instr(instr); err != nil {
			return body, RewriteStats{}, err
		}
	}

	return wasm.FuncBody{Locals: f.locals, Code: f.em.Bytes()}, f.stats, nil
}

// instr emits the replacement for one instruction.
func (f *funcRewrite) instr(instr wasm.Instruction) error {
	switch {
	case wasm.IsLoad(instr.Opcode):
		return f.load(instr)
	case wasm.IsStore(instr.Opcode):
		return f.store(instr)
	}

	switch instr.Opcode {
	case wasm.OpMemorySize:
		if err := f.checkMemIdx(instr, instr.Imm.(wasm.MemoryIdxImm).MemIdx); err != nil {
			return err
		}
		f.rw.mem.size(f.em)
		f.stats.Sizes++
		return nil

	case wasm.OpMemoryGrow:
		if err := f.checkMemIdx(instr, instr.Imm.(wasm.MemoryIdxImm).MemIdx); err != nil {
			return err
		}
		if !f.rw.mem.grow(f.em) {
			return errors.UnsupportedInstruction(f.funcIdx, instr.Name())
		}
		f.stats.Grows++
		return nil

	case wasm.OpPrefixMisc:
		switch instr.Imm.(wasm.MiscImm).SubOpcode {
		case wasm.MiscMemoryInit, wasm.MiscMemoryCopy, wasm.MiscMemoryFill:
			return errors.UnsupportedInstruction(f.funcIdx, instr.Name())
		}

	case wasm.OpPrefixSIMD:
		imm := instr.Imm.(wasm.SIMDImm)
		if imm.MemArg != nil {
			if isSIMDStore(imm.SubOpcode) {
				return errors.UnsupportedStoreKind(f.funcIdx, instr.Name())
			}
			return errors.UnsupportedInstruction(f.funcIdx, instr.Name())
		}

	case wasm.OpPrefixAtomic:
		if instr.Imm.(wasm.AtomicImm).SubOpcode != wasm.AtomicFence {
			return errors.UnsupportedInstruction(f.funcIdx, instr.Name())
		}
	}

	f.em.EmitInstr(instr)
	return nil
}

// emitAddress turns the dynamic address on the stack into
// ((addr + offset) & mask) + base.
func (f *funcRewrite) emitAddress(offset uint64) {
	f.em.I32Const(int32(uint32(offset))).
		I32Add().
		I32Const(f.rw.mask).
		I32And().
		GlobalGet(f.rw.base).
		I32Add()
}

func (f *funcRewrite) load(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.MemoryImm)
	if err := f.checkMemIdx(instr, imm.MemIdx); err != nil {
		return err
	}
	f.emitAddress(imm.Offset)
	f.em.Load(instr.Opcode, imm.Align, 0)
	f.stats.Loads++
	return nil
}

// store parks the value in the scratch local for its kind while the
// address underneath it is translated.
func (f *funcRewrite) store(instr wasm.Instruction) error {
	imm := instr.Imm.(wasm.MemoryImm)
	if err := f.checkMemIdx(instr, imm.MemIdx); err != nil {
		return err
	}
	vt, ok := storeValType(instr.Opcode)
	if !ok {
		return errors.UnsupportedStoreKind(f.funcIdx, instr.Name())
	}
	local := f.scratchLocal(vt)

	f.em.LocalSet(local)
	f.emitAddress(imm.Offset)
	f.em.LocalGet(local)
	f.em.Store(instr.Opcode, imm.Align, 0)
	f.stats.Stores++
	return nil
}

// scratchLocal returns the function's scratch local for vt, declaring it
// on first use.
func (f *funcRewrite) scratchLocal(vt wasm.ValType) uint32 {
	if idx, ok := f.scratch[vt]; ok {
		return idx
	}
	if f.scratch == nil {
		f.scratch = make(map[wasm.ValType]uint32, 4)
	}
	body := wasm.FuncBody{Locals: f.locals}
	idx := f.numParams + body.AddLocal(vt)
	f.locals = body.Locals
	f.scratch[vt] = idx
	return idx
}

func (f *funcRewrite) checkMemIdx(instr wasm.Instruction, memIdx uint32) error {
	if memIdx != 0 {
		return errors.New(errors.PhaseRewrite, errors.KindUnsupported).
			Path(errors.FuncPath(f.funcIdx)).
			Detail("unsupported instruction: %s on memory %d", instr.Name(), memIdx).
			Build()
	}
	return nil
}

// storeValType maps a store opcode to the value kind it consumes. Narrow
// stores share the scratch local of their full-width kind.
func storeValType(op byte) (wasm.ValType, bool) {
	switch op {
	case wasm.OpI32Store, wasm.OpI32Store8, wasm.OpI32Store16:
		return wasm.ValI32, true
	case wasm.OpI64Store, wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		return wasm.ValI64, true
	case wasm.OpF32Store:
		return wasm.ValF32, true
	case wasm.OpF64Store:
		return wasm.ValF64, true
	}
	return 0, false
}

func isSIMDStore(sub uint32) bool {
	return sub == wasm.SimdV128Store ||
		(sub >= wasm.SimdV128Store8Lane && sub <= wasm.SimdV128Store64Lane)
}
