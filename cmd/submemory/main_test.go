package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-submemory/submemory"
	"github.com/wippyai/wasm-submemory/wasm"
)

func writeModule(t *testing.T) string {
	t.Helper()
	m := &wasm.Module{Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}}
	idx := m.AddFunction(m.AddType(wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}}), wasm.FuncBody{
		Code: wasm.EncodeInstructions([]wasm.Instruction{
			{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
			{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2}},
			{Opcode: wasm.OpEnd},
		}),
	})
	m.AddExport("peek", wasm.KindFunc, idx)

	path := filepath.Join(t.TempDir(), "guest.wasm")
	if err := os.WriteFile(path, m.Encode(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	in := writeModule(t)
	opts := options{input: in, size: 1 << 18, policy: "select-index", reset: true}

	var out bytes.Buffer
	if err := run(&out, opts); err != nil {
		t.Fatal(err)
	}

	wantPath := strings.TrimSuffix(in, ".wasm") + ".submemory.wasm"
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	layout, err := submemory.ReadLayout(data)
	if err != nil {
		t.Fatal(err)
	}
	if layout.Policy != submemory.PolicySelectIndex || layout.SubmemorySize != 1<<18 {
		t.Errorf("layout = %+v", layout)
	}

	report := out.String()
	for _, want := range []string{"select-index", "262144 bytes (4 pages)", submemory.ExportReset} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	out.Reset()
	if err := inspect(&out, wantPath); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "peek(i32) -> i32") {
		t.Errorf("inspect output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), submemory.ExportAdd+"() -> i32 [submemory]") {
		t.Errorf("inspect should mark bookkeeping exports:\n%s", out.String())
	}
}

func TestRun_Errors(t *testing.T) {
	in := writeModule(t)
	var out bytes.Buffer

	if err := run(&out, options{input: in, size: 1 << 20, policy: "nope"}); err == nil {
		t.Error("unknown policy should fail")
	}
	if err := run(&out, options{input: in, size: 12345, policy: "select"}); err == nil {
		t.Error("bad size should fail")
	}
	if err := run(&out, options{input: filepath.Join(t.TempDir(), "missing.wasm")}); err == nil {
		t.Error("missing input should fail")
	}
	if err := inspect(&out, in); err == nil {
		t.Error("inspecting a module without a layout record should fail")
	}
}

func TestLoad(t *testing.T) {
	in := writeModule(t)
	opts := options{input: in, size: 1 << 20, policy: "select", output: filepath.Join(t.TempDir(), "out.wasm")}

	data, err := load(opts)
	if err != nil {
		t.Fatal(err)
	}
	if !submemory.IsRewritten(data) {
		t.Fatal("load should rewrite a plain module")
	}

	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		t.Fatal(err)
	}
	again, err := load(options{input: opts.output})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Error("a rewritten module should load unchanged")
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		value string
		typ   wasm.ValType
		want  uint64
	}{
		{"42", wasm.ValI32, 42},
		{"-1", wasm.ValI32, api.EncodeI32(-1)},
		{"0xffffffff", wasm.ValI32, 0xffffffff},
		{"-2", wasm.ValI64, api.EncodeI64(-2)},
		{"18446744073709551615", wasm.ValI64, math.MaxUint64},
		{"1.5", wasm.ValF32, api.EncodeF32(1.5)},
		{" 2.25 ", wasm.ValF64, api.EncodeF64(2.25)},
	}
	for _, tt := range tests {
		got, err := parseArg(tt.value, tt.typ)
		if err != nil || got != tt.want {
			t.Errorf("parseArg(%q, %s) = %#x, %v; want %#x", tt.value, tt.typ, got, err, tt.want)
		}
	}

	for _, bad := range []struct {
		value string
		typ   wasm.ValType
	}{
		{"x", wasm.ValI32},
		{"4294967296", wasm.ValI32},
		{"1.0", wasm.ValI64},
		{"1", wasm.ValV128},
	} {
		if _, err := parseArg(bad.value, bad.typ); err == nil {
			t.Errorf("parseArg(%q, %s) should fail", bad.value, bad.typ)
		}
	}
}

func TestFormatResults(t *testing.T) {
	got := formatResults(
		[]uint64{api.EncodeI32(-3), 7, api.EncodeF64(0.5)},
		[]wasm.ValType{wasm.ValI32, wasm.ValI64, wasm.ValF64},
	)
	if got != "-3, 7, 0.5" {
		t.Errorf("formatResults = %q", got)
	}
	if formatResults(nil, nil) != "(no results)" {
		t.Error("empty results")
	}
}

func TestOutputPath(t *testing.T) {
	if p := (options{input: "dir/a.wasm"}).outputPath(); p != "dir/a.submemory.wasm" {
		t.Errorf("default output = %s", p)
	}
	if p := (options{input: "a.wasm", output: "b.wasm"}).outputPath(); p != "b.wasm" {
		t.Errorf("explicit output = %s", p)
	}
}
