package engine

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-submemory/wasm"
)

func op(o byte) wasm.Instruction {
	return wasm.Instruction{Opcode: o}
}

func i32c(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func localGet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: idx}}
}

func localSet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: idx}}
}

func globalGet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: idx}}
}

func memOp(o byte, align uint32, offset uint64) wasm.Instruction {
	return wasm.Instruction{Opcode: o, Imm: wasm.MemoryImm{Align: align, Offset: offset}}
}

func call(fn uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: fn}}
}

var (
	i32 = []wasm.ValType{wasm.ValI32}

	sigNoneI32 = wasm.FuncType{Results: i32}
	sigI32I32  = wasm.FuncType{Params: i32, Results: i32}
	sigPoke    = wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}}
)

type testFunc struct {
	name   string
	sig    wasm.FuncType
	locals []wasm.LocalEntry
	code   []wasm.Instruction
}

// counterFunc increments the i32 at static offset 64 and returns it.
var counterFunc = testFunc{
	name: "entry",
	sig:  sigNoneI32,
	code: []wasm.Instruction{
		i32c(0),
		i32c(0), memOp(wasm.OpI32Load, 2, 64),
		i32c(1), op(wasm.OpI32Add),
		memOp(wasm.OpI32Store, 2, 64),
		i32c(0), memOp(wasm.OpI32Load, 2, 64),
	},
}

var sizeFunc = testFunc{
	name: "size",
	sig:  sigNoneI32,
	code: []wasm.Instruction{{Opcode: wasm.OpMemorySize, Imm: wasm.MemoryIdxImm{}}},
}

var growFunc = testFunc{
	name: "grow",
	sig:  sigI32I32,
	code: []wasm.Instruction{localGet(0), {Opcode: wasm.OpMemoryGrow, Imm: wasm.MemoryIdxImm{}}},
}

var peekFunc = testFunc{
	name: "peek",
	sig:  sigI32I32,
	code: []wasm.Instruction{localGet(0), memOp(wasm.OpI32Load, 2, 0)},
}

var pokeFunc = testFunc{
	name: "poke",
	sig:  sigPoke,
	code: []wasm.Instruction{localGet(0), localGet(1), memOp(wasm.OpI32Store, 2, 0)},
}

// buildModule returns a module with one memory of pages pages, exported
// as "memory", and the given functions exported by name.
func buildModule(pages uint64, funcs ...testFunc) *wasm.Module {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: pages}}},
	}
	m.AddExport("memory", wasm.KindMemory, 0)
	for _, f := range funcs {
		code := append(append([]wasm.Instruction(nil), f.code...), op(wasm.OpEnd))
		idx := m.AddFunction(m.AddType(f.sig), wasm.FuncBody{
			Locals: f.locals,
			Code:   wasm.EncodeInstructions(code),
		})
		m.AddExport(f.name, wasm.KindFunc, idx)
	}
	return m
}

// withData adds an active data segment at offset.
func withData(m *wasm.Module, offset int32, data []byte) *wasm.Module {
	m.Data = append(m.Data, wasm.DataSegment{Offset: wasm.I32ConstExpr(offset), Init: data})
	return m
}

func mustTransform(t *testing.T, m *wasm.Module, cfg Config) []byte {
	t.Helper()
	out, err := New(cfg).Transform(m.Encode())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	return out
}

type instance struct {
	t   *testing.T
	ctx context.Context
	mod api.Module
}

func instantiate(t *testing.T, bin []byte, limitPages uint32) *instance {
	t.Helper()
	ctx := context.Background()
	cfg := wazero.NewRuntimeConfigInterpreter()
	if limitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(limitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return &instance{t: t, ctx: ctx, mod: mod}
}

func (in *instance) callErr(name string, params ...int32) ([]int32, error) {
	fn := in.mod.ExportedFunction(name)
	if fn == nil {
		in.t.Fatalf("missing export %q", name)
	}
	raw := make([]uint64, len(params))
	for i, p := range params {
		raw[i] = api.EncodeI32(p)
	}
	res, err := fn.Call(in.ctx, raw...)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(res))
	for i, r := range res {
		out[i] = api.DecodeI32(r)
	}
	return out, nil
}

func (in *instance) call(name string, params ...int32) []int32 {
	in.t.Helper()
	out, err := in.callErr(name, params...)
	if err != nil {
		in.t.Fatalf("call %s: %v", name, err)
	}
	return out
}

func (in *instance) call1(name string, params ...int32) int32 {
	in.t.Helper()
	out := in.call(name, params...)
	if len(out) != 1 {
		in.t.Fatalf("%s returned %d values, want 1", name, len(out))
	}
	return out[0]
}
