package binary

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

func TestReader_ReadU32(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"zero", []byte{0x00}, 0},
		{"one byte", []byte{0x7f}, 127},
		{"two bytes", []byte{0x80, 0x01}, 128},
		{"page", []byte{0x80, 0x80, 0x04}, 65536},
		{"max", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, math.MaxUint32},
		{"redundant zero padding", []byte{0x80, 0x80, 0x00}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewReader(tt.input).ReadU32()
			if err != nil {
				t.Fatalf("ReadU32: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReader_ReadU32_Overflow(t *testing.T) {
	for _, input := range [][]byte{
		{0xff, 0xff, 0xff, 0xff, 0x1f},
		{0x80, 0x80, 0x80, 0x80, 0x80, 0x00},
	} {
		_, err := NewReader(input).ReadU32()
		if !errors.Is(err, ErrOverflow) {
			t.Errorf("input %x: expected ErrOverflow, got %v", input, err)
		}
	}
}

func TestReader_ReadS32(t *testing.T) {
	tests := []struct {
		input []byte
		want  int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0x40}, -64},
		{[]byte{0xff, 0xff, 0x03}, 65535},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, math.MinInt32},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x07}, math.MaxInt32},
	}
	for _, tt := range tests {
		got, err := NewReader(tt.input).ReadS32()
		if err != nil {
			t.Fatalf("input %x: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("input %x: got %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestReader_ReadS33_BlockType(t *testing.T) {
	got, err := NewReader([]byte{0x40}).ReadS33()
	if err != nil {
		t.Fatal(err)
	}
	if got != -64 {
		t.Errorf("got %d, want -64", got)
	}
}

func TestReader_Truncated(t *testing.T) {
	_, err := NewReader([]byte{0x80, 0x80}).ReadU32()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
	_, err = NewReader([]byte{0x01}).ReadBytes(2)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestReader_SubPositions(t *testing.T) {
	r := NewReader([]byte{0xaa, 0xbb, 0x01, 0x02, 0x03})
	if _, err := r.ReadBytes(2); err != nil {
		t.Fatal(err)
	}
	sub, err := r.Sub(3)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Position() != 2 {
		t.Errorf("sub position = %d, want 2", sub.Position())
	}
	if _, err := sub.ReadByte(); err != nil {
		t.Fatal(err)
	}
	if sub.Position() != 3 {
		t.Errorf("sub position after read = %d, want 3", sub.Position())
	}
	if r.Len() != 0 {
		t.Errorf("parent should be drained, %d bytes left", r.Len())
	}
}

func TestReader_ReadBytesCapacityLimited(t *testing.T) {
	input := []byte{1, 2, 3, 4}
	got, err := NewReader(input).ReadBytes(2)
	if err != nil {
		t.Fatal(err)
	}
	_ = append(got, 9)
	if input[2] != 3 {
		t.Error("append through ReadBytes result clobbered the input")
	}
}

func TestReader_ReadName(t *testing.T) {
	name, err := NewReader([]byte{0x03, 'a', 'b', 'c'}).ReadName()
	if err != nil {
		t.Fatal(err)
	}
	if name != "abc" {
		t.Errorf("got %q", name)
	}
	if _, err := NewReader([]byte{0x01, 0xff}).ReadName(); err == nil {
		t.Error("expected invalid UTF-8 error")
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU32(624485)
	w.WriteS32(-123456)
	w.WriteS64(math.MinInt64)
	w.WriteU64(math.MaxUint64)
	w.WriteName("memory")
	w.WriteU32LE(0x6d736100)

	r := NewReader(w.Bytes())
	if v, _ := r.ReadU32(); v != 624485 {
		t.Errorf("u32 = %d", v)
	}
	if v, _ := r.ReadS32(); v != -123456 {
		t.Errorf("s32 = %d", v)
	}
	if v, _ := r.ReadS64(); v != math.MinInt64 {
		t.Errorf("s64 = %d", v)
	}
	if v, _ := r.ReadU64(); v != math.MaxUint64 {
		t.Errorf("u64 = %d", v)
	}
	if v, _ := r.ReadName(); v != "memory" {
		t.Errorf("name = %q", v)
	}
	if v, _ := r.ReadU32LE(); v != 0x6d736100 {
		t.Errorf("u32le = %#x", v)
	}
	if r.Len() != 0 {
		t.Errorf("%d trailing bytes", r.Len())
	}
}

func TestAppendUnsigned_KnownEncoding(t *testing.T) {
	got := AppendUnsigned(nil, 624485)
	want := []byte{0xe5, 0x8e, 0x26}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestParseError(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	_, _ = r.ReadByte()
	err := r.WrapError("code section", io.EOF)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Position != 1 || pe.Section != "code section" {
		t.Errorf("unexpected parse error fields: %+v", pe)
	}
	if !errors.Is(err, io.EOF) {
		t.Error("ParseError should unwrap to its cause")
	}
}
