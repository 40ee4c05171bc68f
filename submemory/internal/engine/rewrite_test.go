package engine

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-submemory/wasm"
)

func testRewriter() *rewriter {
	layout := Layout{SubmemorySize: 1 << 20, InitialPages: 1}
	return newRewriter(layout, GlobalIndices{Base: 7, Index: 8, Count: 9}, virtualMemory{sizeFn: 10, growFn: 11})
}

// address is the masked translation emitted in front of every access.
func address(offset int32) []wasm.Instruction {
	return []wasm.Instruction{
		i32c(offset), op(wasm.OpI32Add),
		i32c(1<<20 - 1), op(wasm.OpI32And),
		globalGet(7), op(wasm.OpI32Add),
	}
}

func concat(parts ...[]wasm.Instruction) []wasm.Instruction {
	var out []wasm.Instruction
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestRewriteBody_Load(t *testing.T) {
	body := wasm.FuncBody{Code: wasm.EncodeInstructions([]wasm.Instruction{
		localGet(0), memOp(wasm.OpI64Load16U, 1, 12), op(wasm.OpDrop), op(wasm.OpEnd),
	})}

	got, stats, err := testRewriter().rewriteBody(0, 1, body)
	if err != nil {
		t.Fatal(err)
	}
	want := concat(
		[]wasm.Instruction{localGet(0)},
		address(12),
		[]wasm.Instruction{memOp(wasm.OpI64Load16U, 1, 0), op(wasm.OpDrop), op(wasm.OpEnd)},
	)
	if !bytes.Equal(got.Code, wasm.EncodeInstructions(want)) {
		t.Errorf("rewritten load mismatch:\n got %x\nwant %x", got.Code, wasm.EncodeInstructions(want))
	}
	if stats.Loads != 1 || stats.Total() != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(got.Locals) != 0 {
		t.Errorf("loads should not add locals: %+v", got.Locals)
	}
}

func TestRewriteBody_StoresShareScratch(t *testing.T) {
	// One parameter and two declared i32 locals: scratch locals start at 3.
	body := wasm.FuncBody{
		Locals: []wasm.LocalEntry{{Count: 2, ValType: wasm.ValI32}},
		Code: wasm.EncodeInstructions([]wasm.Instruction{
			localGet(0), localGet(1), memOp(wasm.OpI32Store, 2, 4),
			localGet(0), wasm.F64Const(1.5), memOp(wasm.OpF64Store, 3, 8),
			localGet(0), localGet(2), memOp(wasm.OpI32Store8, 0, 0),
			op(wasm.OpEnd),
		}),
	}

	got, stats, err := testRewriter().rewriteBody(0, 1, body)
	if err != nil {
		t.Fatal(err)
	}

	want := concat(
		[]wasm.Instruction{localGet(0), localGet(1), localSet(3)},
		address(4),
		[]wasm.Instruction{localGet(3), memOp(wasm.OpI32Store, 2, 0)},

		[]wasm.Instruction{localGet(0), wasm.F64Const(1.5), localSet(4)},
		address(8),
		[]wasm.Instruction{localGet(4), memOp(wasm.OpF64Store, 3, 0)},

		[]wasm.Instruction{localGet(0), localGet(2), localSet(3)},
		address(0),
		[]wasm.Instruction{localGet(3), memOp(wasm.OpI32Store8, 0, 0)},

		[]wasm.Instruction{op(wasm.OpEnd)},
	)
	if !bytes.Equal(got.Code, wasm.EncodeInstructions(want)) {
		t.Errorf("rewritten stores mismatch:\n got %x\nwant %x", got.Code, wasm.EncodeInstructions(want))
	}

	wantLocals := []wasm.LocalEntry{{Count: 3, ValType: wasm.ValI32}, {Count: 1, ValType: wasm.ValF64}}
	if len(got.Locals) != len(wantLocals) {
		t.Fatalf("locals = %+v, want %+v", got.Locals, wantLocals)
	}
	for i := range wantLocals {
		if got.Locals[i] != wantLocals[i] {
			t.Errorf("local %d = %+v, want %+v", i, got.Locals[i], wantLocals[i])
		}
	}
	if stats.Stores != 3 {
		t.Errorf("stores = %d, want 3", stats.Stores)
	}

	// The input body keeps its declarations.
	if body.Locals[0].Count != 2 || len(body.Locals) != 1 {
		t.Errorf("input locals mutated: %+v", body.Locals)
	}
}

func TestRewriteBody_ScratchPerFunction(t *testing.T) {
	rw := testRewriter()
	body := wasm.FuncBody{Code: wasm.EncodeInstructions([]wasm.Instruction{
		i32c(0), i32c(1), memOp(wasm.OpI32Store, 2, 0), op(wasm.OpEnd),
	})}

	for i := uint32(0); i < 2; i++ {
		got, _, err := rw.rewriteBody(i, 0, body)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Locals) != 1 || got.Locals[0].Count != 1 {
			t.Errorf("func %d locals = %+v", i, got.Locals)
		}
	}
}

func TestRewriteBody_MemorySizeGrow(t *testing.T) {
	body := wasm.FuncBody{Code: wasm.EncodeInstructions([]wasm.Instruction{
		{Opcode: wasm.OpMemorySize, Imm: wasm.MemoryIdxImm{}},
		{Opcode: wasm.OpMemoryGrow, Imm: wasm.MemoryIdxImm{}},
		op(wasm.OpEnd),
	})}

	got, stats, err := testRewriter().rewriteBody(0, 0, body)
	if err != nil {
		t.Fatal(err)
	}
	want := wasm.EncodeInstructions([]wasm.Instruction{call(10), call(11), op(wasm.OpEnd)})
	if !bytes.Equal(got.Code, want) {
		t.Errorf("got %x, want %x", got.Code, want)
	}
	if stats.Sizes != 1 || stats.Grows != 1 {
		t.Errorf("stats = %+v", stats)
	}

	fixed := newRewriter(Layout{SubmemorySize: 1 << 20}, GlobalIndices{}, fixedMemory{pages: 16})
	sizeOnly := wasm.FuncBody{Code: wasm.EncodeInstructions([]wasm.Instruction{
		{Opcode: wasm.OpMemorySize, Imm: wasm.MemoryIdxImm{}}, op(wasm.OpEnd),
	})}
	got, _, err = fixed.rewriteBody(0, 0, sizeOnly)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Code, wasm.EncodeInstructions([]wasm.Instruction{i32c(16), op(wasm.OpEnd)})) {
		t.Errorf("fixed size = %x", got.Code)
	}
	if _, _, err := fixed.rewriteBody(0, 0, body); err == nil {
		t.Error("memory.grow should be rejected with a fixed size")
	}
}

func TestRewriteBody_FailureKeepsBody(t *testing.T) {
	body := wasm.FuncBody{
		Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI64}},
		Code: wasm.EncodeInstructions([]wasm.Instruction{
			i32c(0), i32c(1), memOp(wasm.OpI32Store, 2, 0),
			i32c(0), i32c(0), i32c(0),
			{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryFill, Operands: []uint32{0}}},
			op(wasm.OpEnd),
		}),
	}
	orig := append([]byte(nil), body.Code...)

	got, _, err := testRewriter().rewriteBody(4, 0, body)
	if err == nil {
		t.Fatal("expected error")
	}
	if !bytes.Equal(got.Code, orig) || len(got.Locals) != 1 {
		t.Error("failed rewrite should return the original body")
	}
}

func TestRewriteBody_MultiMemoryRejected(t *testing.T) {
	body := wasm.FuncBody{Code: wasm.EncodeInstructions([]wasm.Instruction{
		i32c(0), {Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2, MemIdx: 1}}, op(wasm.OpDrop), op(wasm.OpEnd),
	})}
	if _, _, err := testRewriter().rewriteBody(0, 0, body); err == nil {
		t.Error("access to memory 1 should be rejected")
	}
}

func TestRewriteBody_OffsetWraps(t *testing.T) {
	// Offsets above 2^31 are emitted as their two's complement i32.
	body := wasm.FuncBody{Code: wasm.EncodeInstructions([]wasm.Instruction{
		i32c(0), memOp(wasm.OpI32Load, 2, 0xFFFFFFF0), op(wasm.OpDrop), op(wasm.OpEnd),
	})}
	got, _, err := testRewriter().rewriteBody(0, 0, body)
	if err != nil {
		t.Fatal(err)
	}
	instrs, err := wasm.DecodeInstructions(got.Code)
	if err != nil {
		t.Fatal(err)
	}
	if v := instrs[1].Imm.(wasm.I32Imm).Value; v != -16 {
		t.Errorf("offset const = %d, want -16", v)
	}
}

func TestStoreValType(t *testing.T) {
	tests := []struct {
		op   byte
		want wasm.ValType
	}{
		{wasm.OpI32Store, wasm.ValI32},
		{wasm.OpI32Store8, wasm.ValI32},
		{wasm.OpI32Store16, wasm.ValI32},
		{wasm.OpI64Store, wasm.ValI64},
		{wasm.OpI64Store8, wasm.ValI64},
		{wasm.OpI64Store16, wasm.ValI64},
		{wasm.OpI64Store32, wasm.ValI64},
		{wasm.OpF32Store, wasm.ValF32},
		{wasm.OpF64Store, wasm.ValF64},
	}
	for _, tt := range tests {
		got, ok := storeValType(tt.op)
		if !ok || got != tt.want {
			t.Errorf("storeValType(0x%02x) = %v, %v; want %v", tt.op, got, ok, tt.want)
		}
	}
	if _, ok := storeValType(wasm.OpI32Load); ok {
		t.Error("load opcode should not map to a store kind")
	}
}
