package engine

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-submemory/errors"
	"github.com/wippyai/wasm-submemory/wasm"
)

// Physical layout constants.
const (
	PageSize = wasm.PageSize

	// Headroom is the reserved region at address 0 holding one i32 page
	// count per submemory.
	Headroom = PageSize

	// SlotSize is the width of one bookkeeping entry.
	SlotSize = 4

	// MaxSubmemories is the number of bookkeeping entries the headroom holds.
	MaxSubmemories = Headroom / SlotSize

	DefaultSubmemorySize uint64 = 1 << 20
	MaxSubmemorySize     uint64 = 1 << 31
)

// LayoutSection is the name of the custom section recording the layout of
// a rewritten module.
const LayoutSection = "submemory"

// LayoutVersion is the current layout record version.
const LayoutVersion uint32 = 1

// Layout describes the physical memory arrangement of a rewritten module:
//
//	[0, Headroom)              bookkeeping array
//	[Headroom, FirstBase)      relocated initial image
//	[FirstBase, ...)           submemories, SubmemorySize bytes each
type Layout struct {
	SubmemorySize uint64
	Version       uint32
	InitialPages  uint32
	Policy        Policy
}

// ImageBase is the physical address of the relocated initial image.
func (l Layout) ImageBase() uint32 {
	return Headroom
}

// ImageSize is the size in bytes of the original initial memory.
func (l Layout) ImageSize() uint32 {
	return l.InitialPages * PageSize
}

// FirstBase is the physical address of submemory 0.
func (l Layout) FirstBase() uint32 {
	return Headroom + l.ImageSize()
}

// Base returns the physical address of submemory index under the
// self-allocating policies.
func (l Layout) Base(index uint32) uint32 {
	return l.FirstBase() + index*uint32(l.SubmemorySize)
}

// Mask is the address mask applied to every rewritten access.
func (l Layout) Mask() uint32 {
	return uint32(l.SubmemorySize - 1)
}

// SubmemoryPages is the size of one submemory in pages.
func (l Layout) SubmemoryPages() uint32 {
	return uint32(l.SubmemorySize / PageSize)
}

// Encode serializes the layout as the payload of the layout custom section.
func (l Layout) Encode() []byte {
	var out []byte
	out = wasm.AppendLEB128u(out, l.Version)
	out = wasm.AppendLEB128u(out, uint32(l.Policy))
	out = wasm.AppendLEB128u64(out, l.SubmemorySize)
	out = wasm.AppendLEB128u(out, l.InitialPages)
	return out
}

// DecodeLayout parses a layout custom section payload.
func DecodeLayout(data []byte) (Layout, error) {
	var l Layout
	var fields [3]uint32
	pos := 0
	next := func(name string) (uint32, error) {
		v, n, err := wasm.DecodeLEB128u(data[pos:])
		if err != nil {
			return 0, errors.InvalidData(errors.PhaseLayout, []string{LayoutSection, name}, err.Error())
		}
		pos += n
		return v, nil
	}

	var err error
	if fields[0], err = next("version"); err != nil {
		return l, err
	}
	if fields[0] != LayoutVersion {
		return l, errors.InvalidData(errors.PhaseLayout, []string{LayoutSection},
			fmt.Sprintf("unknown layout version %d", fields[0]))
	}
	if fields[1], err = next("policy"); err != nil {
		return l, err
	}
	size, n, derr := wasm.DecodeLEB128u64(data[pos:])
	if derr != nil {
		return l, errors.InvalidData(errors.PhaseLayout, []string{LayoutSection, "size"}, derr.Error())
	}
	pos += n
	if fields[2], err = next("initial_pages"); err != nil {
		return l, err
	}
	if pos != len(data) {
		return l, errors.InvalidData(errors.PhaseLayout, []string{LayoutSection},
			fmt.Sprintf("%d trailing bytes", len(data)-pos))
	}

	l = Layout{
		Version:       fields[0],
		Policy:        Policy(fields[1]),
		SubmemorySize: size,
		InitialPages:  fields[2],
	}
	if !l.Policy.valid() {
		return Layout{}, errors.InvalidData(errors.PhaseLayout, []string{LayoutSection},
			fmt.Sprintf("unknown policy %d", fields[1]))
	}
	if err := ValidateSize(size); err != nil {
		return Layout{}, errors.InvalidData(errors.PhaseLayout, []string{LayoutSection}, err.Error())
	}
	return l, nil
}

// ValidateSize checks that size is a usable submemory size.
func ValidateSize(size uint64) error {
	switch {
	case size < PageSize:
		return errors.InvalidInput(errors.PhaseConfig, "submemory size %d is smaller than one page", size)
	case size > MaxSubmemorySize:
		return errors.InvalidInput(errors.PhaseConfig, "submemory size %d exceeds %d", size, MaxSubmemorySize)
	case size&(size-1) != 0:
		return errors.InvalidInput(errors.PhaseConfig, "submemory size %d is not a power of two", size)
	}
	return nil
}

// planLayout checks the memory preconditions, relocates active data
// segments past the headroom, clears the memory maximum and adds the
// headroom page. The module is only mutated once every check passed.
func planLayout(m *wasm.Module, size uint64) (uint32, error) {
	if m.NumImportedMemories() > 0 {
		return 0, errors.Precondition(errors.PhaseLayout, "imported memory is not supported")
	}
	switch len(m.Memories) {
	case 0:
		return 0, errors.NoMemory()
	case 1:
	default:
		return 0, errors.Precondition(errors.PhaseLayout, "module declares %d memories", len(m.Memories))
	}

	mem := &m.Memories[0]
	if mem.Limits.Memory64 {
		return 0, errors.Precondition(errors.PhaseLayout, "64-bit memory is not supported")
	}
	if mem.Limits.Shared {
		return 0, errors.Precondition(errors.PhaseLayout, "shared memory is not supported")
	}

	initial := mem.Limits.Min
	if initial*PageSize > size {
		return 0, errors.MemoryTooLarge(initial*PageSize, size)
	}

	offsets := make([]uint32, len(m.Data))
	for i := range m.Data {
		seg := &m.Data[i]
		if seg.IsPassive() {
			continue
		}
		c, ok := wasm.EvalI32ConstExpr(seg.Offset)
		if !ok {
			return 0, errors.RelativeDataSegment(i)
		}
		shifted := uint64(uint32(c)) + Headroom
		if shifted > math.MaxUint32 {
			return 0, errors.New(errors.PhaseLayout, errors.KindPrecondition).
				Path(fmt.Sprintf("data %d", i)).
				Detail("offset %d overflows after relocation", uint32(c)).
				Build()
		}
		offsets[i] = uint32(shifted)
	}

	for i := range m.Data {
		if m.Data[i].IsPassive() {
			continue
		}
		m.Data[i].Offset = wasm.I32ConstExpr(int32(offsets[i]))
	}
	mem.Limits.Max = nil
	mem.Limits.Min = initial + Headroom/PageSize

	Logger().Debug("planned layout",
		zap.Uint64("initial_pages", initial),
		zap.Uint64("submemory_size", size),
		zap.Int("data_segments", len(m.Data)))

	return uint32(initial), nil
}
