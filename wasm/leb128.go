package wasm

import (
	"github.com/wippyai/wasm-submemory/wasm/internal/binary"
)

// ErrOverflow is returned when a LEB128 value exceeds its bit width.
var ErrOverflow = binary.ErrOverflow

// AppendLEB128u appends the unsigned LEB128 encoding of v.
func AppendLEB128u(dst []byte, v uint32) []byte {
	return binary.AppendUnsigned(dst, uint64(v))
}

// AppendLEB128u64 appends the unsigned LEB128 encoding of v.
func AppendLEB128u64(dst []byte, v uint64) []byte {
	return binary.AppendUnsigned(dst, v)
}

// AppendLEB128s appends the signed LEB128 encoding of v.
func AppendLEB128s(dst []byte, v int32) []byte {
	return binary.AppendSigned(dst, int64(v))
}

// AppendLEB128s64 appends the signed LEB128 encoding of v.
func AppendLEB128s64(dst []byte, v int64) []byte {
	return binary.AppendSigned(dst, v)
}

// EncodeLEB128u encodes v as unsigned LEB128.
func EncodeLEB128u(v uint32) []byte {
	return AppendLEB128u(nil, v)
}

// EncodeLEB128s encodes v as signed LEB128.
func EncodeLEB128s(v int32) []byte {
	return AppendLEB128s(nil, v)
}

// DecodeLEB128u decodes an unsigned LEB128 uint32 from the front of buf and
// returns the value and the number of bytes consumed.
func DecodeLEB128u(buf []byte) (uint32, int, error) {
	r := binary.NewReader(buf)
	v, err := r.ReadU32()
	if err != nil {
		return 0, 0, err
	}
	return v, r.Position(), nil
}

// DecodeLEB128u64 decodes an unsigned LEB128 uint64 from the front of buf.
func DecodeLEB128u64(buf []byte) (uint64, int, error) {
	r := binary.NewReader(buf)
	v, err := r.ReadU64()
	if err != nil {
		return 0, 0, err
	}
	return v, r.Position(), nil
}
