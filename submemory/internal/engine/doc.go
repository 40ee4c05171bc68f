// Package engine implements the submemory transformation.
//
// A rewritten module multiplexes many isolated memories ("submemories")
// inside its single linear memory. Physical memory is laid out as
//
//	[0, 64KiB)                      one i32 page count per submemory
//	[64KiB, 64KiB + image)          the module's original initial memory
//	[64KiB + image, ...)            submemories, SubmemorySize bytes each
//
// Every load and store of an original function is rewritten to
//
//	((addr + offset) & (SubmemorySize - 1)) + base
//
// where base is a global holding the physical start of the active
// submemory. memory.size and memory.grow are redirected to per-submemory
// page counts in the headroom, or replaced by a constant under
// PolicyExternalBase.
//
// # Pipeline
//
// Transform runs, in order: parse, precondition checks, layout planning
// (layout.go), global injection (globals.go), bookkeeping synthesis
// (helpers.go, policy.go), instruction rewriting (rewrite.go), and
// encoding. Any failure discards the module; no partial output is
// returned.
//
// Synthesized functions address physical memory and are never rewritten.
//
// This package is internal to the submemory transformer.
package engine
