package wasm

// I32ConstExpr returns the init expression "i32.const v; end".
func I32ConstExpr(v int32) []byte {
	return append(AppendLEB128s([]byte{OpI32Const}, v), OpEnd)
}

// EvalI32ConstExpr returns v if expr is exactly "i32.const v; end".
// Expressions reading a global or using extended-const arithmetic are
// reported as not constant.
func EvalI32ConstExpr(expr []byte) (int32, bool) {
	instrs, err := DecodeInstructions(expr)
	if err != nil || len(instrs) != 2 {
		return 0, false
	}
	if instrs[0].Opcode != OpI32Const || instrs[1].Opcode != OpEnd {
		return 0, false
	}
	return instrs[0].Imm.(I32Imm).Value, true
}
