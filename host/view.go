package host

import (
	"github.com/tetratelabs/wazero/api"

	wasmsubmemory "github.com/wippyai/wasm-submemory"
	"github.com/wippyai/wasm-submemory/errors"
	"github.com/wippyai/wasm-submemory/submemory"
)

var _ wasmsubmemory.SizedMemory = (*View)(nil)

// View adapts one submemory of a host's physical memory to
// wasmsubmemory.Memory. Offsets are submemory-relative and bounded by Size.
//
// A View reads physical memory directly and must not be used while a Call
// on the same host is running in another goroutine.
type View struct {
	mem   api.Memory
	base  uint32
	size  uint32
	slot  uint32
	paged bool
}

// Size returns the number of bytes the module currently sees in this
// submemory: its virtual page count under the self-allocating policies,
// the full submemory size otherwise.
func (v *View) Size() uint32 {
	if !v.paged {
		return v.size
	}
	pages, ok := v.mem.ReadUint32Le(v.slot)
	if !ok {
		return 0
	}
	bytes := uint64(pages) * submemory.PageSize
	if bytes > uint64(v.size) {
		return v.size
	}
	return uint32(bytes)
}

// Base returns the physical address the view starts at.
func (v *View) Base() uint32 {
	return v.base
}

// addr translates a submemory-relative range to a physical address.
func (v *View) addr(offset, length uint32) (uint32, error) {
	if uint64(offset)+uint64(length) > uint64(v.Size()) {
		return 0, errors.New(errors.PhaseHost, errors.KindInvalidInput).
			Value(offset).
			Detail("submemory access out of bounds: offset=%d, length=%d, size=%d", offset, length, v.Size()).
			Build()
	}
	return v.base + offset, nil
}

func outOfBounds(offset uint32) error {
	return errors.New(errors.PhaseHost, errors.KindRuntime).
		Value(offset).
		Detail("physical memory access out of bounds: offset=%d", offset).
		Build()
}

// Read returns a copy of length bytes at offset.
func (v *View) Read(offset uint32, length uint32) ([]byte, error) {
	p, err := v.addr(offset, length)
	if err != nil {
		return nil, err
	}
	data, ok := v.mem.Read(p, length)
	if !ok {
		return nil, outOfBounds(offset)
	}
	return append([]byte(nil), data...), nil
}

// Write writes data at offset.
func (v *View) Write(offset uint32, data []byte) error {
	p, err := v.addr(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	if !v.mem.Write(p, data) {
		return outOfBounds(offset)
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (v *View) ReadU8(offset uint32) (uint8, error) {
	p, err := v.addr(offset, 1)
	if err != nil {
		return 0, err
	}
	b, ok := v.mem.ReadByte(p)
	if !ok {
		return 0, outOfBounds(offset)
	}
	return b, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (v *View) ReadU16(offset uint32) (uint16, error) {
	p, err := v.addr(offset, 2)
	if err != nil {
		return 0, err
	}
	x, ok := v.mem.ReadUint16Le(p)
	if !ok {
		return 0, outOfBounds(offset)
	}
	return x, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (v *View) ReadU32(offset uint32) (uint32, error) {
	p, err := v.addr(offset, 4)
	if err != nil {
		return 0, err
	}
	x, ok := v.mem.ReadUint32Le(p)
	if !ok {
		return 0, outOfBounds(offset)
	}
	return x, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (v *View) ReadU64(offset uint32) (uint64, error) {
	p, err := v.addr(offset, 8)
	if err != nil {
		return 0, err
	}
	x, ok := v.mem.ReadUint64Le(p)
	if !ok {
		return 0, outOfBounds(offset)
	}
	return x, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (v *View) WriteU8(offset uint32, value uint8) error {
	p, err := v.addr(offset, 1)
	if err != nil {
		return err
	}
	if !v.mem.WriteByte(p, value) {
		return outOfBounds(offset)
	}
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (v *View) WriteU16(offset uint32, value uint16) error {
	p, err := v.addr(offset, 2)
	if err != nil {
		return err
	}
	if !v.mem.WriteUint16Le(p, value) {
		return outOfBounds(offset)
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (v *View) WriteU32(offset uint32, value uint32) error {
	p, err := v.addr(offset, 4)
	if err != nil {
		return err
	}
	if !v.mem.WriteUint32Le(p, value) {
		return outOfBounds(offset)
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (v *View) WriteU64(offset uint32, value uint64) error {
	p, err := v.addr(offset, 8)
	if err != nil {
		return err
	}
	if !v.mem.WriteUint64Le(p, value) {
		return outOfBounds(offset)
	}
	return nil
}
