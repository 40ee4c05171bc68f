// Package submemory rewrites WebAssembly modules so that one instance can
// host many isolated copies of its linear memory.
//
// # Overview
//
// A rewritten module keeps a single physical memory, divided into
// fixed-size submemories. Every memory access the module performs is
// translated into whichever submemory is currently selected:
//
//	physical = ((addr + offset) & (size - 1)) + base
//
// The mask guarantees that no access escapes the selected submemory,
// regardless of the address the guest computes. memory.size and
// memory.grow are virtualized per submemory.
//
// # Layout
//
//	[0, 64 KiB)            bookkeeping: one i32 page count per submemory
//	[64 KiB, first)        relocated initial memory image
//	[first, ...)           submemories, size bytes each, in allocation order
//
// The layout is recorded in a "submemory" custom section and can be read
// back with ReadLayout.
//
// # Usage
//
//	out, err := submemory.Transform(wasmBytes, submemory.Config{
//	    SubmemorySize: 1 << 20,
//	    Policy:        submemory.PolicySelect,
//	})
//
// The host then calls add_submemory to allocate a submemory initialized
// from the image, and select_submemory before calling into the module.
// Package host drives this protocol on wazero.
//
// # Policies
//
//	PolicySelect        select_submemory(i32), add_submemory() -> (i32, i32)
//	PolicySelectIndex   select_submemory(i32), add_submemory() -> i32
//	PolicyExternalBase  set_base(i32); the host owns allocation
//
// # Limitations
//
// Modules must declare exactly one 32-bit, non-shared memory with absolute
// data segment offsets, and at most one mutable global. Bulk memory
// instructions other than data.drop, atomics, and SIMD memory access are
// rejected.
package submemory
