package wasm

import (
	"fmt"
	"math"

	"github.com/wippyai/wasm-submemory/wasm/internal/binary"
)

// Instruction is one decoded instruction: its opcode and typed immediate.
// Imm is nil for instructions without immediates.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// BlockImm is the block type of block, loop, and if: a negative value
// type code (see BlockType*) or a non-negative type index.
type BlockImm struct {
	Type int64
}

// BranchImm is the label of br and br_if.
type BranchImm struct {
	LabelIdx uint32
}

// BrTableImm is the label table of br_table.
type BrTableImm struct {
	Labels  []uint32
	Default uint32
}

// CallImm is the target of call and return_call.
type CallImm struct {
	FuncIdx uint32
}

// CallIndirectImm is the signature and table of call_indirect.
type CallIndirectImm struct {
	TypeIdx  uint32
	TableIdx uint32
}

// LocalImm is the local of local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm is the global of global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// TableImm is the table of table.get and table.set.
type TableImm struct {
	TableIdx uint32
}

// MemoryImm is a memarg. Align is the log2 alignment with the
// multi-memory bit already stripped.
type MemoryImm struct {
	Offset uint64
	Align  uint32
	MemIdx uint32
}

// MemoryIdxImm is the memory of memory.size and memory.grow.
type MemoryIdxImm struct {
	MemIdx uint32
}

// I32Imm is the operand of i32.const.
type I32Imm struct {
	Value int32
}

// I64Imm is the operand of i64.const.
type I64Imm struct {
	Value int64
}

// F32Imm is the operand of f32.const as raw bits.
type F32Imm struct {
	Bits uint32
}

// F64Imm is the operand of f64.const as raw bits.
type F64Imm struct {
	Bits uint64
}

// RefNullImm is the heap type of ref.null.
type RefNullImm struct {
	HeapType int64
}

// RefFuncImm is the function of ref.func.
type RefFuncImm struct {
	FuncIdx uint32
}

// SelectTypeImm is the result types of typed select.
type SelectTypeImm struct {
	Types []ValType
}

// MiscImm is a 0xFC-prefixed instruction and its index operands.
type MiscImm struct {
	Operands  []uint32
	SubOpcode uint32
}

// SIMDImm is a 0xFD-prefixed instruction. At most the fields required
// by SubOpcode are set.
type SIMDImm struct {
	MemArg    *MemoryImm
	LaneIdx   *byte
	V128Bytes []byte
	SubOpcode uint32
}

// AtomicImm is a 0xFE-prefixed instruction. MemArg is nil for atomic.fence.
type AtomicImm struct {
	MemArg    *MemoryImm
	SubOpcode uint32
}

// IsLoad reports whether op is a scalar load (i32.load through i64.load32_u).
func IsLoad(op byte) bool {
	return op >= OpI32Load && op <= OpI64Load32U
}

// IsStore reports whether op is a scalar store (i32.store through i64.store32).
func IsStore(op byte) bool {
	return op >= OpI32Store && op <= OpI64Store32
}

// MemArg returns the memarg of a scalar load or store.
func (i Instruction) MemArg() (MemoryImm, bool) {
	imm, ok := i.Imm.(MemoryImm)
	return imm, ok
}

// DecodeInstructions decodes a flat instruction sequence. Structured
// control instructions appear in order with their matching else and end.
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := binary.NewReader(code)
	instrs := make([]Instruction, 0, len(code)/2)
	for r.Len() > 0 {
		at := r.Position()
		instr, err := decodeInstruction(r)
		if err != nil {
			return nil, fmt.Errorf("instruction at offset %d: %w", at, err)
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func decodeInstruction(r *binary.Reader) (Instruction, error) {
	op, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	instr := Instruction{Opcode: op}

	switch {
	case op == OpBlock || op == OpLoop || op == OpIf:
		bt, err := r.ReadS33()
		if err != nil {
			return instr, err
		}
		instr.Imm = BlockImm{Type: bt}

	case op == OpBr || op == OpBrIf:
		l, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = BranchImm{LabelIdx: l}

	case op == OpBrTable:
		n, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		if int(n) > r.Len() {
			return instr, fmt.Errorf("br_table: %d labels exceed remaining input", n)
		}
		labels := make([]uint32, n)
		for j := range labels {
			if labels[j], err = r.ReadU32(); err != nil {
				return instr, err
			}
		}
		def, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = BrTableImm{Labels: labels, Default: def}

	case op == OpCall || op == OpReturnCall:
		f, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = CallImm{FuncIdx: f}

	case op == OpCallIndirect || op == OpReturnCallIndirect:
		typeIdx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		tableIdx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = CallIndirectImm{TypeIdx: typeIdx, TableIdx: tableIdx}

	case op == OpSelectType:
		n, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		data, err := r.ReadBytes(int(n))
		if err != nil {
			return instr, err
		}
		types := make([]ValType, n)
		for j, b := range data {
			types[j] = ValType(b)
		}
		instr.Imm = SelectTypeImm{Types: types}

	case op >= OpLocalGet && op <= OpLocalTee:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = LocalImm{LocalIdx: idx}

	case op == OpGlobalGet || op == OpGlobalSet:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = GlobalImm{GlobalIdx: idx}

	case op == OpTableGet || op == OpTableSet:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = TableImm{TableIdx: idx}

	case IsLoad(op) || IsStore(op):
		ma, err := readMemArg(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = ma

	case op == OpMemorySize || op == OpMemoryGrow:
		idx, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = MemoryIdxImm{MemIdx: idx}

	case op == OpI32Const:
		v, err := r.ReadS32()
		if err != nil {
			return instr, err
		}
		instr.Imm = I32Imm{Value: v}

	case op == OpI64Const:
		v, err := r.ReadS64()
		if err != nil {
			return instr, err
		}
		instr.Imm = I64Imm{Value: v}

	case op == OpF32Const:
		v, err := r.ReadU32LE()
		if err != nil {
			return instr, err
		}
		instr.Imm = F32Imm{Bits: v}

	case op == OpF64Const:
		v, err := r.ReadU64LE()
		if err != nil {
			return instr, err
		}
		instr.Imm = F64Imm{Bits: v}

	case op == OpRefNull:
		ht, err := r.ReadS33()
		if err != nil {
			return instr, err
		}
		instr.Imm = RefNullImm{HeapType: ht}

	case op == OpRefFunc:
		f, err := r.ReadU32()
		if err != nil {
			return instr, err
		}
		instr.Imm = RefFuncImm{FuncIdx: f}

	case op == OpPrefixMisc:
		imm, err := decodeMiscImmediate(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	case op == OpPrefixSIMD:
		imm, err := decodeSIMDImmediate(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	case op == OpPrefixAtomic:
		imm, err := decodeAtomicImmediate(r)
		if err != nil {
			return instr, err
		}
		instr.Imm = imm

	case hasNoImmediate(op):

	default:
		return instr, fmt.Errorf("unknown opcode 0x%02x", op)
	}
	return instr, nil
}

func hasNoImmediate(op byte) bool {
	switch op {
	case OpUnreachable, OpNop, OpElse, OpEnd, OpReturn, OpDrop, OpSelect, OpRefIsNull:
		return true
	}
	return op >= OpI32Eqz && op <= opNumericLast
}

// miscOperandCount is the number of LEB128 index operands following each
// 0xFC sub-opcode.
func miscOperandCount(sub uint32) (int, bool) {
	switch {
	case sub <= MiscI64TruncSatF64U:
		return 0, true
	case sub == MiscMemoryInit, sub == MiscMemoryCopy, sub == MiscTableInit, sub == MiscTableCopy:
		return 2, true
	case sub == MiscDataDrop, sub == MiscMemoryFill, sub == MiscElemDrop,
		sub == MiscTableGrow, sub == MiscTableSize, sub == MiscTableFill:
		return 1, true
	}
	return 0, false
}

func decodeMiscImmediate(r *binary.Reader) (MiscImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return MiscImm{}, err
	}
	n, ok := miscOperandCount(sub)
	if !ok {
		return MiscImm{}, fmt.Errorf("unknown 0xfc sub-opcode %d", sub)
	}
	imm := MiscImm{SubOpcode: sub}
	if n > 0 {
		imm.Operands = make([]uint32, n)
		for j := range imm.Operands {
			if imm.Operands[j], err = r.ReadU32(); err != nil {
				return MiscImm{}, err
			}
		}
	}
	return imm, nil
}

func simdHasMemArg(sub uint32) bool {
	return sub <= SimdV128Store ||
		(sub >= SimdV128Load8Lane && sub <= SimdV128Load64Zero)
}

func simdHasLane(sub uint32) bool {
	return (sub >= SimdI8x16ExtractLaneS && sub <= SimdF64x2ReplaceLane) ||
		(sub >= SimdV128Load8Lane && sub <= SimdV128Store64Lane)
}

func decodeSIMDImmediate(r *binary.Reader) (SIMDImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return SIMDImm{}, err
	}
	imm := SIMDImm{SubOpcode: sub}
	if simdHasMemArg(sub) {
		ma, err := readMemArg(r)
		if err != nil {
			return SIMDImm{}, err
		}
		imm.MemArg = &ma
	}
	if sub == SimdV128Const || sub == SimdI8x16Shuffle {
		if imm.V128Bytes, err = r.ReadBytes(16); err != nil {
			return SIMDImm{}, err
		}
	}
	if simdHasLane(sub) {
		lane, err := r.ReadByte()
		if err != nil {
			return SIMDImm{}, err
		}
		imm.LaneIdx = &lane
	}
	return imm, nil
}

func decodeAtomicImmediate(r *binary.Reader) (AtomicImm, error) {
	sub, err := r.ReadU32()
	if err != nil {
		return AtomicImm{}, err
	}
	if sub == AtomicFence {
		if _, err := r.ReadByte(); err != nil {
			return AtomicImm{}, err
		}
		return AtomicImm{SubOpcode: sub}, nil
	}
	if sub > AtomicI64RMW32CmpxchgU || (sub > AtomicFence && sub < AtomicI32Load) {
		return AtomicImm{}, fmt.Errorf("unknown 0xfe sub-opcode %d", sub)
	}
	ma, err := readMemArg(r)
	if err != nil {
		return AtomicImm{}, err
	}
	return AtomicImm{SubOpcode: sub, MemArg: &ma}, nil
}

func readMemArg(r *binary.Reader) (MemoryImm, error) {
	align, err := r.ReadU32()
	if err != nil {
		return MemoryImm{}, err
	}
	var memIdx uint32
	if align&MemArgMultiMemory != 0 {
		align &^= MemArgMultiMemory
		if memIdx, err = r.ReadU32(); err != nil {
			return MemoryImm{}, err
		}
	}
	offset, err := r.ReadU64()
	if err != nil {
		return MemoryImm{}, err
	}
	return MemoryImm{Align: align, MemIdx: memIdx, Offset: offset}, nil
}

func appendMemArg(dst []byte, imm MemoryImm) []byte {
	if imm.MemIdx != 0 {
		dst = AppendLEB128u(dst, imm.Align|MemArgMultiMemory)
		dst = AppendLEB128u(dst, imm.MemIdx)
	} else {
		dst = AppendLEB128u(dst, imm.Align)
	}
	return AppendLEB128u64(dst, imm.Offset)
}

// EncodeInstructions encodes instrs back to bytes.
func EncodeInstructions(instrs []Instruction) []byte {
	var out []byte
	for i := range instrs {
		out = AppendInstruction(out, instrs[i])
	}
	return out
}

// AppendInstruction appends the encoding of instr to dst.
func AppendInstruction(dst []byte, instr Instruction) []byte {
	dst = append(dst, instr.Opcode)
	switch imm := instr.Imm.(type) {
	case nil:
	case BlockImm:
		dst = AppendLEB128s64(dst, imm.Type)
	case BranchImm:
		dst = AppendLEB128u(dst, imm.LabelIdx)
	case BrTableImm:
		dst = AppendLEB128u(dst, uint32(len(imm.Labels)))
		for _, l := range imm.Labels {
			dst = AppendLEB128u(dst, l)
		}
		dst = AppendLEB128u(dst, imm.Default)
	case CallImm:
		dst = AppendLEB128u(dst, imm.FuncIdx)
	case CallIndirectImm:
		dst = AppendLEB128u(dst, imm.TypeIdx)
		dst = AppendLEB128u(dst, imm.TableIdx)
	case SelectTypeImm:
		dst = AppendLEB128u(dst, uint32(len(imm.Types)))
		for _, t := range imm.Types {
			dst = append(dst, byte(t))
		}
	case LocalImm:
		dst = AppendLEB128u(dst, imm.LocalIdx)
	case GlobalImm:
		dst = AppendLEB128u(dst, imm.GlobalIdx)
	case TableImm:
		dst = AppendLEB128u(dst, imm.TableIdx)
	case MemoryImm:
		dst = appendMemArg(dst, imm)
	case MemoryIdxImm:
		dst = AppendLEB128u(dst, imm.MemIdx)
	case I32Imm:
		dst = AppendLEB128s(dst, imm.Value)
	case I64Imm:
		dst = AppendLEB128s64(dst, imm.Value)
	case F32Imm:
		dst = append(dst, byte(imm.Bits), byte(imm.Bits>>8), byte(imm.Bits>>16), byte(imm.Bits>>24))
	case F64Imm:
		for shift := 0; shift < 64; shift += 8 {
			dst = append(dst, byte(imm.Bits>>shift))
		}
	case RefNullImm:
		dst = AppendLEB128s64(dst, imm.HeapType)
	case RefFuncImm:
		dst = AppendLEB128u(dst, imm.FuncIdx)
	case MiscImm:
		dst = AppendLEB128u(dst, imm.SubOpcode)
		for _, o := range imm.Operands {
			dst = AppendLEB128u(dst, o)
		}
	case SIMDImm:
		dst = AppendLEB128u(dst, imm.SubOpcode)
		if imm.MemArg != nil {
			dst = appendMemArg(dst, *imm.MemArg)
		}
		dst = append(dst, imm.V128Bytes...)
		if imm.LaneIdx != nil {
			dst = append(dst, *imm.LaneIdx)
		}
	case AtomicImm:
		dst = AppendLEB128u(dst, imm.SubOpcode)
		if imm.MemArg != nil {
			dst = appendMemArg(dst, *imm.MemArg)
		} else {
			dst = append(dst, 0x00)
		}
	default:
		panic(fmt.Sprintf("wasm: unknown immediate type %T", instr.Imm))
	}
	return dst
}

// F32Const builds an f32.const instruction.
func F32Const(v float32) Instruction {
	return Instruction{Opcode: OpF32Const, Imm: F32Imm{Bits: math.Float32bits(v)}}
}

// F64Const builds an f64.const instruction.
func F64Const(v float64) Instruction {
	return Instruction{Opcode: OpF64Const, Imm: F64Imm{Bits: math.Float64bits(v)}}
}
