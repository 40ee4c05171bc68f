package codegen

import (
	"github.com/wippyai/wasm-submemory/wasm"
)

// Block types accepted by Block, Loop and If.
const (
	BlockVoid = wasm.BlockTypeVoid
	BlockI32  = wasm.BlockTypeI32
	BlockI64  = wasm.BlockTypeI64
	BlockF32  = wasm.BlockTypeF32
	BlockF64  = wasm.BlockTypeF64
)

// Natural alignments (log2 bytes) for i32 and i64 accesses.
const (
	AlignI32 uint32 = 2
	AlignI64 uint32 = 3
)

// Emitter builds a function body's instruction bytes. Every method appends
// one instruction and returns the emitter for chaining.
type Emitter struct {
	buf []byte
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{buf: make([]byte, 0, 64)}
}

// Bytes returns the emitted bytes. The slice aliases the emitter's buffer.
func (e *Emitter) Bytes() []byte {
	return e.buf
}

// Copy returns an independent copy of the emitted bytes.
func (e *Emitter) Copy() []byte {
	out := make([]byte, len(e.buf))
	copy(out, e.buf)
	return out
}

// Len returns the number of emitted bytes.
func (e *Emitter) Len() int {
	return len(e.buf)
}

// Reset discards everything emitted so far, keeping the buffer.
func (e *Emitter) Reset() {
	e.buf = e.buf[:0]
}

// Raw appends pre-encoded bytes.
func (e *Emitter) Raw(b []byte) *Emitter {
	e.buf = append(e.buf, b...)
	return e
}

// EmitInstr appends a decoded instruction.
func (e *Emitter) EmitInstr(instr wasm.Instruction) *Emitter {
	e.buf = wasm.AppendInstruction(e.buf, instr)
	return e
}

// EmitInstrs appends a sequence of decoded instructions.
func (e *Emitter) EmitInstrs(instrs []wasm.Instruction) *Emitter {
	for i := range instrs {
		e.buf = wasm.AppendInstruction(e.buf, instrs[i])
	}
	return e
}

func (e *Emitter) op(b byte) *Emitter {
	e.buf = append(e.buf, b)
	return e
}

func (e *Emitter) opU32(b byte, v uint32) *Emitter {
	e.buf = append(e.buf, b)
	e.buf = wasm.AppendLEB128u(e.buf, v)
	return e
}

// Control flow

func (e *Emitter) Unreachable() *Emitter { return e.op(wasm.OpUnreachable) }
func (e *Emitter) Nop() *Emitter         { return e.op(wasm.OpNop) }
func (e *Emitter) Else() *Emitter        { return e.op(wasm.OpElse) }
func (e *Emitter) End() *Emitter         { return e.op(wasm.OpEnd) }
func (e *Emitter) Return() *Emitter      { return e.op(wasm.OpReturn) }
func (e *Emitter) Drop() *Emitter        { return e.op(wasm.OpDrop) }

func (e *Emitter) Block(bt int64) *Emitter {
	e.buf = append(e.buf, wasm.OpBlock)
	e.buf = wasm.AppendLEB128s64(e.buf, bt)
	return e
}

func (e *Emitter) Loop(bt int64) *Emitter {
	e.buf = append(e.buf, wasm.OpLoop)
	e.buf = wasm.AppendLEB128s64(e.buf, bt)
	return e
}

func (e *Emitter) If(bt int64) *Emitter {
	e.buf = append(e.buf, wasm.OpIf)
	e.buf = wasm.AppendLEB128s64(e.buf, bt)
	return e
}

func (e *Emitter) Br(label uint32) *Emitter   { return e.opU32(wasm.OpBr, label) }
func (e *Emitter) BrIf(label uint32) *Emitter { return e.opU32(wasm.OpBrIf, label) }
func (e *Emitter) Call(fn uint32) *Emitter    { return e.opU32(wasm.OpCall, fn) }

// Variables

func (e *Emitter) LocalGet(idx uint32) *Emitter  { return e.opU32(wasm.OpLocalGet, idx) }
func (e *Emitter) LocalSet(idx uint32) *Emitter  { return e.opU32(wasm.OpLocalSet, idx) }
func (e *Emitter) LocalTee(idx uint32) *Emitter  { return e.opU32(wasm.OpLocalTee, idx) }
func (e *Emitter) GlobalGet(idx uint32) *Emitter { return e.opU32(wasm.OpGlobalGet, idx) }
func (e *Emitter) GlobalSet(idx uint32) *Emitter { return e.opU32(wasm.OpGlobalSet, idx) }

// Constants

func (e *Emitter) I32Const(v int32) *Emitter {
	e.buf = append(e.buf, wasm.OpI32Const)
	e.buf = wasm.AppendLEB128s(e.buf, v)
	return e
}

func (e *Emitter) I64Const(v int64) *Emitter {
	e.buf = append(e.buf, wasm.OpI64Const)
	e.buf = wasm.AppendLEB128s64(e.buf, v)
	return e
}

// i32 arithmetic and comparison

func (e *Emitter) I32Eqz() *Emitter { return e.op(wasm.OpI32Eqz) }
func (e *Emitter) I32Eq() *Emitter  { return e.op(wasm.OpI32Eq) }
func (e *Emitter) I32Ne() *Emitter  { return e.op(wasm.OpI32Ne) }
func (e *Emitter) I32LtU() *Emitter { return e.op(wasm.OpI32LtU) }
func (e *Emitter) I32GtU() *Emitter { return e.op(wasm.OpI32GtU) }
func (e *Emitter) I32GeU() *Emitter { return e.op(wasm.OpI32GeU) }
func (e *Emitter) I32Add() *Emitter { return e.op(wasm.OpI32Add) }
func (e *Emitter) I32Sub() *Emitter { return e.op(wasm.OpI32Sub) }
func (e *Emitter) I32Mul() *Emitter { return e.op(wasm.OpI32Mul) }
func (e *Emitter) I32And() *Emitter { return e.op(wasm.OpI32And) }
func (e *Emitter) I32Or() *Emitter  { return e.op(wasm.OpI32Or) }
func (e *Emitter) I32Shl() *Emitter { return e.op(wasm.OpI32Shl) }

// Memory

// Load emits a scalar load with the given memarg on memory 0.
func (e *Emitter) Load(op byte, align uint32, offset uint64) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: op, Imm: wasm.MemoryImm{Align: align, Offset: offset}})
}

// Store emits a scalar store with the given memarg on memory 0.
func (e *Emitter) Store(op byte, align uint32, offset uint64) *Emitter {
	return e.EmitInstr(wasm.Instruction{Opcode: op, Imm: wasm.MemoryImm{Align: align, Offset: offset}})
}

func (e *Emitter) I32Load(offset uint64) *Emitter {
	return e.Load(wasm.OpI32Load, AlignI32, offset)
}

func (e *Emitter) I32Store(offset uint64) *Emitter {
	return e.Store(wasm.OpI32Store, AlignI32, offset)
}

func (e *Emitter) MemorySize() *Emitter { return e.opU32(wasm.OpMemorySize, 0) }
func (e *Emitter) MemoryGrow() *Emitter { return e.opU32(wasm.OpMemoryGrow, 0) }

// MemoryCopy emits memory.copy within memory 0: [dst, src, n] -> [].
func (e *Emitter) MemoryCopy() *Emitter {
	return e.EmitInstr(wasm.Instruction{
		Opcode: wasm.OpPrefixMisc,
		Imm:    wasm.MiscImm{SubOpcode: wasm.MiscMemoryCopy, Operands: []uint32{0, 0}},
	})
}

// MemoryFill emits memory.fill on memory 0: [dst, val, n] -> [].
func (e *Emitter) MemoryFill() *Emitter {
	return e.EmitInstr(wasm.Instruction{
		Opcode: wasm.OpPrefixMisc,
		Imm:    wasm.MiscImm{SubOpcode: wasm.MiscMemoryFill, Operands: []uint32{0}},
	})
}
