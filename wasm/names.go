package wasm

import "fmt"

var opNames = map[byte]string{
	OpUnreachable: "unreachable", OpNop: "nop", OpBlock: "block", OpLoop: "loop",
	OpIf: "if", OpElse: "else", OpEnd: "end", OpBr: "br", OpBrIf: "br_if",
	OpBrTable: "br_table", OpReturn: "return", OpCall: "call",
	OpCallIndirect: "call_indirect", OpReturnCall: "return_call",
	OpReturnCallIndirect: "return_call_indirect", OpDrop: "drop",
	OpSelect: "select", OpSelectType: "select", OpLocalGet: "local.get",
	OpLocalSet: "local.set", OpLocalTee: "local.tee", OpGlobalGet: "global.get",
	OpGlobalSet: "global.set", OpTableGet: "table.get", OpTableSet: "table.set",

	OpI32Load: "i32.load", OpI64Load: "i64.load", OpF32Load: "f32.load",
	OpF64Load: "f64.load", OpI32Load8S: "i32.load8_s", OpI32Load8U: "i32.load8_u",
	OpI32Load16S: "i32.load16_s", OpI32Load16U: "i32.load16_u",
	OpI64Load8S: "i64.load8_s", OpI64Load8U: "i64.load8_u",
	OpI64Load16S: "i64.load16_s", OpI64Load16U: "i64.load16_u",
	OpI64Load32S: "i64.load32_s", OpI64Load32U: "i64.load32_u",
	OpI32Store: "i32.store", OpI64Store: "i64.store", OpF32Store: "f32.store",
	OpF64Store: "f64.store", OpI32Store8: "i32.store8", OpI32Store16: "i32.store16",
	OpI64Store8: "i64.store8", OpI64Store16: "i64.store16", OpI64Store32: "i64.store32",
	OpMemorySize: "memory.size", OpMemoryGrow: "memory.grow",

	OpI32Const: "i32.const", OpI64Const: "i64.const", OpF32Const: "f32.const",
	OpF64Const: "f64.const", OpI32Eqz: "i32.eqz", OpI32Eq: "i32.eq", OpI32Ne: "i32.ne",
	OpI32LtU: "i32.lt_u", OpI32GtU: "i32.gt_u", OpI32GeU: "i32.ge_u",
	OpI32Add: "i32.add", OpI32Sub: "i32.sub", OpI32Mul: "i32.mul",
	OpI32And: "i32.and", OpI32Or: "i32.or", OpI32Shl: "i32.shl",
	OpI64Add: "i64.add", OpF32Add: "f32.add", OpF64Add: "f64.add",

	OpRefNull: "ref.null", OpRefIsNull: "ref.is_null", OpRefFunc: "ref.func",
}

var miscNames = map[uint32]string{
	MiscMemoryInit: "memory.init", MiscDataDrop: "data.drop",
	MiscMemoryCopy: "memory.copy", MiscMemoryFill: "memory.fill",
	MiscTableInit: "table.init", MiscElemDrop: "elem.drop",
	MiscTableCopy: "table.copy", MiscTableGrow: "table.grow",
	MiscTableSize: "table.size", MiscTableFill: "table.fill",
}

var simdMemNames = [...]string{
	"v128.load", "v128.load8x8_s", "v128.load8x8_u", "v128.load16x4_s",
	"v128.load16x4_u", "v128.load32x2_s", "v128.load32x2_u", "v128.load8_splat",
	"v128.load16_splat", "v128.load32_splat", "v128.load64_splat", "v128.store",
}

var simdLaneMemNames = [...]string{
	"v128.load8_lane", "v128.load16_lane", "v128.load32_lane", "v128.load64_lane",
	"v128.store8_lane", "v128.store16_lane", "v128.store32_lane", "v128.store64_lane",
	"v128.load32_zero", "v128.load64_zero",
}

var atomicRMWOps = [...]string{"add", "sub", "and", "or", "xor", "xchg"}

var atomicWidths = [...]string{
	"i32", "i64", "i32.rmw8", "i32.rmw16", "i64.rmw8", "i64.rmw16", "i64.rmw32",
}

var atomicLoadStore = [...]string{
	"i32.atomic.load", "i64.atomic.load", "i32.atomic.load8_u", "i32.atomic.load16_u",
	"i64.atomic.load8_u", "i64.atomic.load16_u", "i64.atomic.load32_u",
	"i32.atomic.store", "i64.atomic.store", "i32.atomic.store8", "i32.atomic.store16",
	"i64.atomic.store8", "i64.atomic.store16", "i64.atomic.store32",
}

// Name returns the text-format mnemonic of the instruction. Prefixed
// instructions without a known mnemonic are rendered as prefix and
// sub-opcode.
func (i Instruction) Name() string {
	switch imm := i.Imm.(type) {
	case MiscImm:
		if imm.SubOpcode <= MiscI64TruncSatF64U {
			return fmt.Sprintf("trunc_sat.%d", imm.SubOpcode)
		}
		if n, ok := miscNames[imm.SubOpcode]; ok {
			return n
		}
		return fmt.Sprintf("0xfc %d", imm.SubOpcode)
	case SIMDImm:
		return simdName(imm.SubOpcode)
	case AtomicImm:
		return atomicName(imm.SubOpcode)
	}
	if n, ok := opNames[i.Opcode]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", i.Opcode)
}

func simdName(sub uint32) string {
	switch {
	case sub <= SimdV128Store:
		return simdMemNames[sub]
	case sub == SimdV128Const:
		return "v128.const"
	case sub == SimdI8x16Shuffle:
		return "i8x16.shuffle"
	case sub >= SimdV128Load8Lane && sub <= SimdV128Load64Zero:
		return simdLaneMemNames[sub-SimdV128Load8Lane]
	}
	return fmt.Sprintf("simd 0x%02x", sub)
}

func atomicName(sub uint32) string {
	switch {
	case sub == AtomicNotify:
		return "memory.atomic.notify"
	case sub == AtomicWait32:
		return "memory.atomic.wait32"
	case sub == AtomicWait64:
		return "memory.atomic.wait64"
	case sub == AtomicFence:
		return "atomic.fence"
	case sub >= AtomicI32Load && sub <= AtomicI64Store32:
		return atomicLoadStore[sub-AtomicI32Load]
	case sub >= AtomicRMWFirst && sub < AtomicRMWCmpxchgFirst:
		n := sub - AtomicRMWFirst
		op := atomicRMWOps[n/uint32(len(atomicWidths))]
		width := atomicWidths[n%uint32(len(atomicWidths))]
		return atomicRMWName(width, op)
	case sub >= AtomicRMWCmpxchgFirst && sub <= AtomicI64RMW32CmpxchgU:
		return atomicRMWName(atomicWidths[sub-AtomicRMWCmpxchgFirst], "cmpxchg")
	}
	return fmt.Sprintf("atomic 0x%02x", sub)
}

// atomicRMWName renders e.g. "i32.atomic.rmw.add" or "i64.atomic.rmw8.add_u".
func atomicRMWName(width, op string) string {
	switch width {
	case "i32", "i64":
		return width + ".atomic.rmw." + op
	}
	// width is "i32.rmw8" style: split the value type from the rmw part.
	return width[:3] + ".atomic." + width[4:] + "." + op + "_u"
}
