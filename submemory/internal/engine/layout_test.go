package engine

import (
	"testing"

	"github.com/wippyai/wasm-submemory/wasm"
)

func TestLayout_Addresses(t *testing.T) {
	l := Layout{SubmemorySize: 1 << 20, InitialPages: 3}

	if l.ImageBase() != 65536 {
		t.Errorf("ImageBase = %d", l.ImageBase())
	}
	if l.ImageSize() != 3*65536 {
		t.Errorf("ImageSize = %d", l.ImageSize())
	}
	if l.FirstBase() != 4*65536 {
		t.Errorf("FirstBase = %d", l.FirstBase())
	}
	if l.Base(2) != 4*65536+2<<20 {
		t.Errorf("Base(2) = %d", l.Base(2))
	}
	if l.Mask() != 0xFFFFF {
		t.Errorf("Mask = %#x", l.Mask())
	}
	if l.SubmemoryPages() != 16 {
		t.Errorf("SubmemoryPages = %d", l.SubmemoryPages())
	}
}

func TestLayout_EncodeDecode(t *testing.T) {
	want := Layout{Version: LayoutVersion, Policy: PolicyExternalBase, SubmemorySize: 1 << 31, InitialPages: 7}
	got, err := DecodeLayout(want.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeLayout_Errors(t *testing.T) {
	valid := Layout{Version: LayoutVersion, SubmemorySize: 1 << 20, InitialPages: 1}.Encode()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-1]},
		{"trailing", append(append([]byte(nil), valid...), 0)},
		{"version", Layout{Version: 2, SubmemorySize: 1 << 20}.Encode()},
		{"policy", Layout{Version: LayoutVersion, Policy: 7, SubmemorySize: 1 << 20}.Encode()},
		{"size", Layout{Version: LayoutVersion, SubmemorySize: 1000}.Encode()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeLayout(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidateSize(t *testing.T) {
	for _, size := range []uint64{1 << 16, 1 << 20, 1 << 31} {
		if err := ValidateSize(size); err != nil {
			t.Errorf("ValidateSize(%d) = %v", size, err)
		}
	}
	for _, size := range []uint64{0, 1, 1 << 15, 3 << 16, 1<<20 + 1, 1 << 32} {
		if err := ValidateSize(size); err == nil {
			t.Errorf("ValidateSize(%d) should fail", size)
		}
	}
}

func TestPlanLayout_RelocatesSegments(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 2}}},
		Data: []wasm.DataSegment{
			{Offset: wasm.I32ConstExpr(0), Init: []byte{1}},
			{Flags: 1, Init: []byte{2}},
			{Offset: wasm.I32ConstExpr(-1), Init: nil},
		},
	}

	initial, err := planLayout(m, 1<<20)
	if err == nil {
		t.Fatalf("offset 0xffffffff should overflow, got initial=%d", initial)
	}
	if off, _ := wasm.EvalI32ConstExpr(m.Data[0].Offset); off != 0 {
		t.Error("module mutated before every check passed")
	}

	m.Data = m.Data[:2]
	initial, err = planLayout(m, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if initial != 2 {
		t.Errorf("initial = %d, want 2", initial)
	}
	if off, _ := wasm.EvalI32ConstExpr(m.Data[0].Offset); off != Headroom {
		t.Errorf("active offset = %d, want %d", off, Headroom)
	}
	if m.Data[1].Offset != nil {
		t.Error("passive segment gained an offset")
	}
	if m.Memories[0].Limits.Min != 3 {
		t.Errorf("min = %d, want 3", m.Memories[0].Limits.Min)
	}
}

func TestPlanLayout_ImportedMemory(t *testing.T) {
	m := &wasm.Module{
		Imports: []wasm.Import{{
			Module: "env", Name: "memory",
			Desc: wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 1}}},
		}},
	}
	if _, err := planLayout(m, 1<<20); err == nil {
		t.Error("imported memory should be rejected")
	}
}
