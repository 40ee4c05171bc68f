package wasmsubmemory

// Memory is a window onto WASM linear memory. Offsets are relative to the
// start of the window and accesses past its end fail.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer reports the current size of a memory window in bytes.
type MemorySizer interface {
	Size() uint32
}

// SizedMemory is a Memory that knows its own size.
type SizedMemory interface {
	Memory
	MemorySizer
}
